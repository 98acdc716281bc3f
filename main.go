package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/setclip/setclip/api"
	"github.com/setclip/setclip/datastore"
	"github.com/setclip/setclip/payments"
	rh "github.com/setclip/setclip/route-handlers"
	"github.com/setclip/setclip/storage"
	"github.com/setclip/setclip/webhooks"
)

const (
	defaultPort         = "8080"
	defaultDatabaseURL  = "user=postgres password=password dbname=setclip host=localhost port=5432 sslmode=disable"
	defaultAppBaseURL   = "http://localhost:8080"
	defaultPriceCents   = 500
	defaultMaxDownloads = 3
	defaultDownloadTTL  = 48 * time.Hour
	dbPingTimeout       = 5 * time.Second
	shutdownTimeout     = 15 * time.Second
	dbMaxOpenConns      = 25
	dbMaxIdleConns      = 25
	dbConnMaxLifetime   = 5 * time.Minute
)

type config struct {
	port                string
	databaseURL         string
	appBaseURL          string
	stripeSecretKey     string
	stripeWebhookSecret string
	defaultPriceCents   int64
	maxDownloads        int
	downloadTTL         time.Duration
	downloadLinkBase    string
}

func main() {
	cfg := loadConfig()

	db, err := setupDatabase(cfg.databaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	clipRepo := datastore.NewClipRepository(db)
	purchaseRepo := datastore.NewPurchaseRepository(db)
	downloadLogRepo := datastore.NewDownloadLogRepository(db)

	// Payment provider is constructed once from configuration; a missing
	// key fails loudly here rather than on the first checkout.
	checkoutProvider := payments.NewStripeCheckoutProvider(cfg.stripeSecretKey)
	linkProvider := storage.NewPassthroughLinkProvider(cfg.downloadLinkBase)

	checkoutHandler := rh.NewCheckoutHandler(clipRepo, purchaseRepo, checkoutProvider, rh.CheckoutConfig{
		AppBaseURL:        cfg.appBaseURL,
		DefaultPriceCents: cfg.defaultPriceCents,
		MaxDownloads:      cfg.maxDownloads,
	})
	downloadHandler := rh.NewDownloadHandler(purchaseRepo, downloadLogRepo, linkProvider)
	clipHandler := rh.NewClipHandler(clipRepo)
	purchaseHandler := rh.NewPurchaseHandler(purchaseRepo)

	stripeWebhookHandler := webhooks.NewStripeWebhookHandler(
		purchaseRepo,
		cfg.stripeWebhookSecret,
		cfg.downloadTTL,
		cfg.maxDownloads,
	)

	apiRouter := api.SetupRoutes(checkoutHandler, downloadHandler, clipHandler, purchaseHandler)

	mainRouter := chi.NewRouter()
	mainRouter.Mount("/", apiRouter)

	mainRouter.Post("/webhooks/stripe", stripeWebhookHandler.HandleWebhook)

	startServer(cfg.port, mainRouter)
}

func loadConfig() config {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		dbURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}

	appBaseURL := os.Getenv("APP_BASE_URL")
	if appBaseURL == "" {
		appBaseURL = defaultAppBaseURL
		log.Println("WARNING: APP_BASE_URL not set, redirect links will point at " + defaultAppBaseURL)
	}

	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Println("WARNING: STRIPE_SECRET_KEY not set. Checkout session creation will fail at runtime.")
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET not set. Webhook deliveries will be rejected.")
	}

	priceCents := int64(defaultPriceCents)
	if raw := os.Getenv("CLIP_PRICE_CENTS"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			log.Printf("WARNING: Invalid CLIP_PRICE_CENTS %q, using default %d.", raw, defaultPriceCents)
		} else {
			priceCents = parsed
		}
	}

	maxDownloads := defaultMaxDownloads
	if raw := os.Getenv("MAX_DOWNLOADS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Printf("WARNING: Invalid MAX_DOWNLOADS %q, using default %d.", raw, defaultMaxDownloads)
		} else {
			maxDownloads = parsed
		}
	}

	downloadTTL := defaultDownloadTTL
	if raw := os.Getenv("DOWNLOAD_TTL_HOURS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Printf("WARNING: Invalid DOWNLOAD_TTL_HOURS %q, using default %s.", raw, defaultDownloadTTL)
		} else {
			downloadTTL = time.Duration(parsed) * time.Hour
		}
	}

	return config{
		port:                port,
		databaseURL:         dbURL,
		appBaseURL:          appBaseURL,
		stripeSecretKey:     stripeKey,
		stripeWebhookSecret: webhookSecret,
		defaultPriceCents:   priceCents,
		maxDownloads:        maxDownloads,
		downloadTTL:         downloadTTL,
		downloadLinkBase:    os.Getenv("DOWNLOAD_LINK_BASE"),
	}
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close unusable connection pool
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal // Block until signal received
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
