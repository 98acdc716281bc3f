package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/setclip/setclip/models"
)

type PurchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// CreatePurchase inserts a new purchase row, the pending record made at
// checkout time.
func (r *PurchaseRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if _, err := uuid.Parse(purchase.ID); err != nil {
		return fmt.Errorf("invalid purchase ID format: %w", err)
	}
	if _, err := uuid.Parse(purchase.ClipID); err != nil {
		return fmt.Errorf("invalid clip ID format: %w", err)
	}

	_, err := r.db.ExecContext(ctx, purchaseInsert, purchaseInsertArgs(purchase)...)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

// CreatePurchaseIfAbsent inserts a purchase row unless one already exists
// for the same checkout session. Used by the webhook when it reconstructs
// a row for a paid session that was never recorded: two concurrent
// deliveries of the same event must not produce two rows with two
// credentials. Relies on the unique index on stripe_checkout_session_id.
// Returns false when another row won the insert.
func (r *PurchaseRepository) CreatePurchaseIfAbsent(ctx context.Context, purchase *models.Purchase) (bool, error) {
	if _, err := uuid.Parse(purchase.ID); err != nil {
		return false, fmt.Errorf("invalid purchase ID format: %w", err)
	}
	if _, err := uuid.Parse(purchase.ClipID); err != nil {
		return false, fmt.Errorf("invalid clip ID format: %w", err)
	}

	query := purchaseInsert + ` ON CONFLICT (stripe_checkout_session_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, purchaseInsertArgs(purchase)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert purchase: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not get rows affected for purchase insert: %w", err)
	}
	return rowsAffected > 0, nil
}

const purchaseInsert = `
	INSERT INTO purchases (
		id, clip_id, stripe_checkout_session_id, stripe_payment_intent_id,
		buyer_email, buyer_name, amount_cents, currency, status,
		download_token, download_expires_at, download_count, max_downloads,
		created_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

func purchaseInsertArgs(purchase *models.Purchase) []any {
	return []any{
		purchase.ID, purchase.ClipID, purchase.StripeCheckoutSessionID, purchase.StripePaymentIntentID,
		purchase.BuyerEmail, purchase.BuyerName, purchase.AmountCents, purchase.Currency, string(purchase.Status),
		purchase.DownloadToken, purchase.DownloadExpiresAt, purchase.DownloadCount, purchase.MaxDownloads,
		purchase.CreatedAt, purchase.CompletedAt,
	}
}

// GetPurchaseBySessionID fetches a purchase by its checkout session id,
// joined with its clip for display fields on the success page.
func (r *PurchaseRepository) GetPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	query := purchaseSelectJoinedWithClip + ` WHERE p.stripe_checkout_session_id = $1`
	return r.scanJoinedPurchase(r.db.QueryRowContext(ctx, query, sessionID), "session")
}

// GetPurchaseByDownloadToken fetches a purchase by its download credential,
// joined with its clip so the caller can resolve file variants.
func (r *PurchaseRepository) GetPurchaseByDownloadToken(ctx context.Context, token string) (*models.Purchase, error) {
	query := purchaseSelectJoinedWithClip + ` WHERE p.download_token = $1`
	return r.scanJoinedPurchase(r.db.QueryRowContext(ctx, query, token), "download token")
}

// CompletePurchaseBySessionID transitions a pending purchase to completed,
// setting buyer details and the freshly minted download credential. The
// status guard makes webhook redelivery a no-op: the credential is minted
// exactly once, at the pending -> completed transition. Returns false when
// no pending row matched the session id.
func (r *PurchaseRepository) CompletePurchaseBySessionID(ctx context.Context, sessionID string, completion models.PurchaseCompletion) (bool, error) {
	query := `
		UPDATE purchases
		SET status = $2, buyer_email = $3, buyer_name = $4, stripe_payment_intent_id = $5,
		    download_token = $6, download_expires_at = $7, completed_at = $8
		WHERE stripe_checkout_session_id = $1 AND status = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		sessionID, string(models.PurchaseStatusCompleted),
		completion.BuyerEmail, completion.BuyerName, completion.StripePaymentIntentID,
		completion.DownloadToken, completion.DownloadExpiresAt, completion.CompletedAt,
		string(models.PurchaseStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete purchase for session %s: %w", sessionID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Printf("WARN: Could not get rows affected for purchase completion (session %s): %v", sessionID, err)
		return false, nil
	}
	return rowsAffected > 0, nil
}

// MarkPurchaseFailedByPaymentIntent transitions a pending purchase to
// failed, matched by the payment intent id Stripe reports on the failed
// payment. Already-terminal rows are left untouched.
func (r *PurchaseRepository) MarkPurchaseFailedByPaymentIntent(ctx context.Context, paymentIntentID string) error {
	query := `
		UPDATE purchases
		SET status = $2
		WHERE stripe_payment_intent_id = $1 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		paymentIntentID, string(models.PurchaseStatusFailed), string(models.PurchaseStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark purchase failed for payment intent %s: %w", paymentIntentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected == 0 {
		log.Printf("INFO: No pending purchase matched failed payment intent %s", paymentIntentID)
	}
	return nil
}

// ConsumeDownload increments a purchase's download count, but only while
// the count is still below the allowed maximum. The guard and increment
// run as one conditional update so two concurrent redemptions of the last
// remaining download cannot both succeed. Returns false when the limit
// was already reached.
func (r *PurchaseRepository) ConsumeDownload(ctx context.Context, purchaseID string) (bool, error) {
	if _, err := uuid.Parse(purchaseID); err != nil {
		return false, fmt.Errorf("invalid purchase ID format: %w", err)
	}

	query := `
		UPDATE purchases
		SET download_count = download_count + 1
		WHERE id = $1 AND status = $2 AND download_count < max_downloads
	`
	result, err := r.db.ExecContext(ctx, query, purchaseID, string(models.PurchaseStatusCompleted))
	if err != nil {
		return false, fmt.Errorf("failed to consume download for purchase %s: %w", purchaseID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not get rows affected for download consumption: %w", err)
	}
	return rowsAffected > 0, nil
}

const purchaseSelectJoinedWithClip = `
	SELECT p.id, p.clip_id, p.stripe_checkout_session_id, p.stripe_payment_intent_id,
	       p.buyer_email, p.buyer_name, p.amount_cents, p.currency, p.status,
	       p.download_token, p.download_expires_at, p.download_count, p.max_downloads,
	       p.created_at, p.completed_at,
	       c.id, c.show_id, c.performer_name, c.set_number, c.duration_seconds,
	       c.original_path, c.social_path, c.social_subtitled_path, c.preview_path, c.srt_path,
	       c.price_cents, c.is_available, c.promo_allowed, c.created_at
	FROM purchases p
	JOIN clips c ON c.id = p.clip_id
`

func (r *PurchaseRepository) scanJoinedPurchase(row *sql.Row, lookup string) (*models.Purchase, error) {
	var purchase models.Purchase
	var clip models.Clip
	var statusStr string

	err := row.Scan(
		&purchase.ID, &purchase.ClipID, &purchase.StripeCheckoutSessionID, &purchase.StripePaymentIntentID,
		&purchase.BuyerEmail, &purchase.BuyerName, &purchase.AmountCents, &purchase.Currency, &statusStr,
		&purchase.DownloadToken, &purchase.DownloadExpiresAt, &purchase.DownloadCount, &purchase.MaxDownloads,
		&purchase.CreatedAt, &purchase.CompletedAt,
		&clip.ID, &clip.ShowID, &clip.PerformerName, &clip.SetNumber, &clip.DurationSeconds,
		&clip.OriginalPath, &clip.SocialPath, &clip.SocialSubtitledPath, &clip.PreviewPath, &clip.SRTPath,
		&clip.PriceCents, &clip.IsAvailable, &clip.PromoAllowed, &clip.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("purchase not found by %s: %w", lookup, err)
		}
		return nil, fmt.Errorf("failed to get purchase by %s: %w", lookup, err)
	}

	purchase.Status = models.PurchaseStatus(statusStr)
	purchase.Clip = &clip
	return &purchase, nil
}
