package models

import "time"

// PurchaseStatus defines the set of allowed statuses for a Purchase.
// Transitions are forward-only: pending -> completed or pending -> failed.
// Refunded exists in the schema for manual back-office use; no code path
// here produces it.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// Purchase tracks one buyer's attempt to acquire one clip, from checkout
// session creation through download-credential exhaustion.
type Purchase struct {
	ID                      string         `json:"id"`
	ClipID                  string         `json:"clip_id"`
	StripeCheckoutSessionID string         `json:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string        `json:"stripe_payment_intent_id,omitempty"`
	BuyerEmail              string         `json:"buyer_email"`
	BuyerName               *string        `json:"buyer_name,omitempty"`
	AmountCents             int64          `json:"amount_cents"`
	Currency                string         `json:"currency"`
	Status                  PurchaseStatus `json:"status"`
	DownloadToken           *string        `json:"download_token,omitempty"`
	DownloadExpiresAt       *time.Time     `json:"download_expires_at,omitempty"`
	DownloadCount           int            `json:"download_count"`
	MaxDownloads            int            `json:"max_downloads"`
	CreatedAt               time.Time      `json:"created_at"`
	CompletedAt             *time.Time     `json:"completed_at,omitempty"`

	// Clip is populated on joined reads; nil otherwise.
	Clip *Clip `json:"clip,omitempty"`
}

// PurchaseCompletion carries the fields the webhook sets when a checkout
// session finishes. All values derive from the one Stripe event, so
// re-applying the same completion converges to the same row.
type PurchaseCompletion struct {
	BuyerEmail            string
	BuyerName             *string
	StripePaymentIntentID string
	DownloadToken         string
	DownloadExpiresAt     time.Time
	CompletedAt           time.Time
}
