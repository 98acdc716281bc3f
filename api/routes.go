package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rh "github.com/setclip/setclip/route-handlers"
	"github.com/setclip/setclip/webutil"
)

const (
	apiBasePath       = "/api"
	clipsBasePath     = "/clips"
	checkoutBasePath  = "/checkout"
	downloadBasePath  = "/download"
	purchasesBasePath = "/purchases"
)

const (
	paramID        = "id"
	paramToken     = "token"
	paramSessionID = "sessionID"
)

func SetupRoutes(
	checkoutHandler *rh.CheckoutHandler,
	downloadHandler *rh.DownloadHandler,
	clipHandler *rh.ClipHandler,
	purchaseHandler *rh.PurchaseHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log every request
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set a timeout context for requests
	r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8))

	r.Route(apiBasePath, func(r chi.Router) {
		configureClipRoutes(r, clipHandler)
		configureCheckoutRoutes(r, checkoutHandler)
		configureDownloadRoutes(r, downloadHandler)
		configurePurchaseRoutes(r, purchaseHandler)
	})

	// Health check endpoint
	r.Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// --- Clip Routes (read-only presentation queries) ---
func configureClipRoutes(r chi.Router, handler *rh.ClipHandler) {
	r.Route(clipsBasePath, func(r chi.Router) {
		r.Get("/search", webutil.MakeHandler(handler.HandleSearchClips))
		r.Get(pathWithParam("", paramID), webutil.MakeHandler(handler.HandleGetClip))
	})
}

// --- Checkout Routes ---
func configureCheckoutRoutes(r chi.Router, handler *rh.CheckoutHandler) {
	r.Post(checkoutBasePath, webutil.MakeHandler(handler.HandleCreateCheckout))
}

// --- Download Routes ---
func configureDownloadRoutes(r chi.Router, handler *rh.DownloadHandler) {
	r.Get(pathWithParam(downloadBasePath, paramToken), webutil.MakeHandler(handler.HandleDownload))
}

// --- Purchase Routes (success-page polling) ---
func configurePurchaseRoutes(r chi.Router, handler *rh.PurchaseHandler) {
	r.Get(purchasesBasePath+"/session"+pathWithParam("", paramSessionID), webutil.MakeHandler(handler.HandleGetPurchaseBySession))
}

// --- Utility Functions ---

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// SetHeader is a middleware to set a response header.
func SetHeader(key, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(key, value)
			next.ServeHTTP(w, r)
		})
	}
}
