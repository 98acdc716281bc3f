package routehandlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/webutil"
)

// PurchaseReader is the read-only purchase access the success page's
// polling endpoint uses.
type PurchaseReader interface {
	GetPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
}

type PurchaseHandler struct {
	Purchases PurchaseReader
}

func NewPurchaseHandler(purchases PurchaseReader) *PurchaseHandler {
	return &PurchaseHandler{Purchases: purchases}
}

type purchaseStatusResponse struct {
	ID                string                `json:"id"`
	Status            models.PurchaseStatus `json:"status"`
	PerformerName     string                `json:"performer_name,omitempty"`
	AmountCents       int64                 `json:"amount_cents"`
	DownloadToken     *string               `json:"download_token,omitempty"`
	DownloadExpiresAt *time.Time            `json:"download_expires_at,omitempty"`
	MaxDownloads      int                   `json:"max_downloads"`
	AvailableVariants []models.FileVariant  `json:"available_variants,omitempty"`
}

// HandleGetPurchaseBySession serves the success page's poll loop. The
// webhook may land a moment after the buyer is redirected back, so the
// page retries on a still-pending (or still-missing) purchase; that retry
// budget lives client-side, not here.
func (h *PurchaseHandler) HandleGetPurchaseBySession(w http.ResponseWriter, r *http.Request) error {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		return webutil.ErrBadRequest("Session ID required")
	}

	purchase, err := h.Purchases.GetPurchaseBySessionID(r.Context(), sessionID)
	if err != nil {
		if isDatastoreNotFound(err) {
			return webutil.ErrNotFound("Purchase not found")
		}
		return fmt.Errorf("failed to retrieve purchase for session %s: %w", sessionID, err)
	}

	resp := purchaseStatusResponse{
		ID:           purchase.ID,
		Status:       purchase.Status,
		AmountCents:  purchase.AmountCents,
		MaxDownloads: purchase.MaxDownloads,
	}
	if purchase.Clip != nil {
		resp.PerformerName = purchase.Clip.PerformerName
		resp.AvailableVariants = availableVariants(purchase.Clip)
	}

	// The credential is only shared once payment has actually completed.
	if purchase.Status == models.PurchaseStatusCompleted {
		resp.DownloadToken = purchase.DownloadToken
		resp.DownloadExpiresAt = purchase.DownloadExpiresAt
	}

	webutil.RespondWithJSON(w, http.StatusOK, resp)
	return nil
}

func availableVariants(clip *models.Clip) []models.FileVariant {
	var variants []models.FileVariant
	for _, v := range []models.FileVariant{
		models.FileVariantOriginal,
		models.FileVariantSocial,
		models.FileVariantSocialSubtitled,
		models.FileVariantSRT,
	} {
		if clip.VariantPath(v) != nil {
			variants = append(variants, v)
		}
	}
	return variants
}
