package routehandlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/payments"
	"github.com/setclip/setclip/webutil"
)

// ClipGetter is the slice of the clip repository checkout needs.
type ClipGetter interface {
	GetClipByID(ctx context.Context, clipID string) (*models.Clip, error)
}

// PurchaseCreator records the pending purchase for a new checkout session.
type PurchaseCreator interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
}

// CheckoutConfig holds the tunables checkout needs, resolved once at startup.
type CheckoutConfig struct {
	AppBaseURL        string
	DefaultPriceCents int64
	MaxDownloads      int
}

type CheckoutHandler struct {
	Clips     ClipGetter
	Purchases PurchaseCreator
	Provider  payments.CheckoutProvider
	Config    CheckoutConfig
}

func NewCheckoutHandler(clips ClipGetter, purchases PurchaseCreator, provider payments.CheckoutProvider, cfg CheckoutConfig) *CheckoutHandler {
	return &CheckoutHandler{Clips: clips, Purchases: purchases, Provider: provider, Config: cfg}
}

type createCheckoutRequest struct {
	ClipID string `json:"clipId"`
}

type createCheckoutResponse struct {
	URL string `json:"url"`
}

// HandleCreateCheckout validates the requested clip, opens a hosted
// checkout session for it and records a pending purchase.
func (h *CheckoutHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) error {
	var req createCheckoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if req.ClipID == "" {
		return webutil.ErrBadRequest("Clip ID required")
	}
	if _, err := uuid.Parse(req.ClipID); err != nil {
		return webutil.ErrBadRequest("Invalid clip ID format")
	}

	clip, err := h.Clips.GetClipByID(r.Context(), req.ClipID)
	if err != nil {
		if isDatastoreNotFound(err) {
			return webutil.ErrNotFound("Clip not found")
		}
		return fmt.Errorf("failed to fetch clip %s for checkout: %w", req.ClipID, err)
	}

	if !clip.IsAvailable {
		return webutil.ErrBadRequest("Clip not available for purchase")
	}

	price := clip.PriceCents
	if price <= 0 {
		price = h.Config.DefaultPriceCents
	}

	session, err := h.Provider.CreateCheckoutSession(r.Context(), payments.CheckoutSessionRequest{
		ClipID:             clip.ID,
		ProductName:        fmt.Sprintf("Comedy Set - %s", clip.PerformerName),
		ProductDescription: checkoutDescription(clip),
		AmountCents:        price,
		SuccessURL:         h.Config.AppBaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:          h.Config.AppBaseURL + "/clip/" + clip.ID,
	})
	if err != nil {
		return webutil.ErrInternalServerWrap("checkout session creation failed", err)
	}

	purchase := &models.Purchase{
		ID:                      uuid.NewString(),
		ClipID:                  clip.ID,
		StripeCheckoutSessionID: session.ID,
		BuyerEmail:              "", // Unknown until the webhook reports completion
		AmountCents:             price,
		Currency:                "usd",
		Status:                  models.PurchaseStatusPending,
		DownloadCount:           0,
		MaxDownloads:            h.Config.MaxDownloads,
		CreatedAt:               time.Now().UTC(),
	}
	if err := h.Purchases.CreatePurchase(r.Context(), purchase); err != nil {
		// The session already exists upstream and cannot be rolled back
		// from here; the webhook reconstructs the row if payment lands.
		log.Printf("ERROR: Failed to create pending purchase for session %s: %v", session.ID, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, createCheckoutResponse{URL: session.URL})
	return nil
}

// checkoutDescription builds the hosted page's line-item description from
// the joined venue name and show date.
func checkoutDescription(clip *models.Clip) string {
	if clip.Show == nil || clip.Show.Venue == nil {
		return clip.PerformerName
	}
	return fmt.Sprintf("%s - %s", clip.Show.Venue.Name, clip.Show.ShowDate.Format("2006-01-02"))
}

// isDatastoreNotFound reports whether a repository error means the row is
// absent, in either its wrapped-sql.ErrNoRows or "not found" message form.
func isDatastoreNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || strings.Contains(err.Error(), "not found")
}
