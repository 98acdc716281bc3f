package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/webutil"
)

const (
	headerStripeSignature = "Stripe-Signature"

	// Stripe webhook bodies are small; cap reads defensively.
	maxWebhookBodyBytes = 64 << 10

	metadataKeyClipID = "clip_id"
)

// PurchaseStore is the slice of the purchase repository the webhook
// handler needs to advance purchases out of pending.
type PurchaseStore interface {
	CreatePurchaseIfAbsent(ctx context.Context, purchase *models.Purchase) (bool, error)
	GetPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	CompletePurchaseBySessionID(ctx context.Context, sessionID string, completion models.PurchaseCompletion) (bool, error)
	MarkPurchaseFailedByPaymentIntent(ctx context.Context, paymentIntentID string) error
}

// StripeWebhookHandler is the only writer that moves a purchase out of
// pending. It authenticates every delivery against the shared webhook
// secret and acknowledges everything else, so Stripe does not retry
// events whose local handling merely hit a transient store failure.
type StripeWebhookHandler struct {
	purchases     PurchaseStore
	webhookSecret string
	downloadTTL   time.Duration
	maxDownloads  int

	now func() time.Time
}

func NewStripeWebhookHandler(purchases PurchaseStore, webhookSecret string, downloadTTL time.Duration, maxDownloads int) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		purchases:     purchases,
		webhookSecret: webhookSecret,
		downloadTTL:   downloadTTL,
		maxDownloads:  maxDownloads,
		now:           time.Now,
	}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	// The signature is computed over the exact bytes Stripe sent, so the
	// body must be read raw before any parsing.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Printf("ERROR: Failed to read webhook body: %v", err)
		webutil.RespondWithError(w, http.StatusBadRequest, "Unreadable request body")
		return
	}
	defer r.Body.Close()

	sig := r.Header.Get(headerStripeSignature)
	if sig == "" {
		log.Printf("WARN: Webhook delivery without %s header from %s", headerStripeSignature, r.RemoteAddr)
		webutil.RespondWithError(w, http.StatusBadRequest, "Missing signature")
		return
	}

	event, err := webhook.ConstructEvent(body, sig, h.webhookSecret)
	if err != nil {
		// Could be a replayed, tampered or misaddressed delivery. Worth a
		// louder log line than routine client errors.
		log.Printf("WARN: Webhook signature verification failed from %s: %v", r.RemoteAddr, err)
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		h.handleCheckoutCompleted(r.Context(), event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		h.handlePaymentFailed(r.Context(), event)
	default:
		// Not subscribed to anything else; ignore quietly.
	}

	// Internal store failures are logged above, never surfaced: a non-2xx
	// here would make Stripe redeliver an event we cannot act on any better
	// the second time.
	webutil.RespondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("ERROR: Failed to parse checkout session from event %s: %v", event.ID, err)
		return
	}

	clipID := session.Metadata[metadataKeyClipID]
	if clipID == "" {
		// Sessions are always created with clip_id metadata; a session
		// without it did not come from this service's checkout flow.
		log.Printf("WARN: No clip_id in metadata for session %s, skipping", session.ID)
		return
	}

	token, err := webutil.GenerateDownloadToken()
	if err != nil {
		log.Printf("ERROR: Failed to mint download token for session %s: %v", session.ID, err)
		return
	}

	now := h.now().UTC()
	completion := models.PurchaseCompletion{
		BuyerEmail:        customerEmail(&session),
		BuyerName:         customerName(&session),
		DownloadToken:     token,
		DownloadExpiresAt: now.Add(h.downloadTTL),
		CompletedAt:       now,
	}
	if session.PaymentIntent != nil {
		completion.StripePaymentIntentID = session.PaymentIntent.ID
	}

	completed, err := h.purchases.CompletePurchaseBySessionID(ctx, session.ID, completion)
	if err != nil {
		log.Printf("ERROR: Failed to update purchase for session %s: %v", session.ID, err)
		return
	}
	if completed {
		log.Printf("INFO: Purchase completed for clip %s (session %s)", clipID, session.ID)
		return
	}

	// No pending row matched. Either this event was already processed (a
	// redelivery, which must not mint a second credential) or the pending
	// insert at checkout time failed and the row never existed.
	existing, err := h.purchases.GetPurchaseBySessionID(ctx, session.ID)
	if err == nil && existing != nil {
		log.Printf("INFO: Session %s already processed (status %s), ignoring redelivery", session.ID, existing.Status)
		return
	}
	if err != nil && !isNotFound(err) {
		log.Printf("ERROR: Failed to look up purchase for session %s: %v", session.ID, err)
		return
	}

	h.reconstructPurchase(ctx, &session, clipID, completion)
}

// reconstructPurchase recreates the purchase row for a paid session whose
// pending insert was lost at checkout time, using the session's own
// line-item amount and metadata. The payment is real; the buyer must not
// lose their download over a dropped insert.
func (h *StripeWebhookHandler) reconstructPurchase(ctx context.Context, session *stripe.CheckoutSession, clipID string, completion models.PurchaseCompletion) {
	now := completion.CompletedAt
	purchase := &models.Purchase{
		ID:                      uuid.NewString(),
		ClipID:                  clipID,
		StripeCheckoutSessionID: session.ID,
		BuyerEmail:              completion.BuyerEmail,
		BuyerName:               completion.BuyerName,
		AmountCents:             session.AmountTotal,
		Currency:                strings.ToLower(string(session.Currency)),
		Status:                  models.PurchaseStatusCompleted,
		DownloadToken:           &completion.DownloadToken,
		DownloadExpiresAt:       &completion.DownloadExpiresAt,
		DownloadCount:           0,
		MaxDownloads:            h.maxDownloads,
		CreatedAt:               now,
		CompletedAt:             &now,
	}
	if completion.StripePaymentIntentID != "" {
		purchase.StripePaymentIntentID = &completion.StripePaymentIntentID
	}
	if purchase.Currency == "" {
		purchase.Currency = "usd"
	}

	// The conditional insert keeps concurrent deliveries of the same event
	// from reconstructing the purchase twice with two credentials.
	inserted, err := h.purchases.CreatePurchaseIfAbsent(ctx, purchase)
	if err != nil {
		log.Printf("ERROR: Failed to reconstruct purchase for session %s: %v", session.ID, err)
		return
	}
	if !inserted {
		log.Printf("INFO: Purchase for session %s already exists, skipping reconstruction", session.ID)
		return
	}
	log.Printf("WARN: Reconstructed missing purchase %s for paid session %s (clip %s)", purchase.ID, session.ID, clipID)
}

func (h *StripeWebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		log.Printf("ERROR: Failed to parse payment intent from event %s: %v", event.ID, err)
		return
	}

	if err := h.purchases.MarkPurchaseFailedByPaymentIntent(ctx, intent.ID); err != nil {
		log.Printf("ERROR: Failed to mark purchase failed for payment intent %s: %v", intent.ID, err)
	}
}

func customerEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails == nil {
		return ""
	}
	return session.CustomerDetails.Email
}

func customerName(session *stripe.CheckoutSession) *string {
	if session.CustomerDetails == nil || session.CustomerDetails.Name == "" {
		return nil
	}
	name := session.CustomerDetails.Name
	return &name
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || strings.Contains(err.Error(), "not found")
}
