package routehandlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/storage"
	"github.com/setclip/setclip/webutil"
)

const queryParamFileType = "type"

// PurchaseRedeemer is the slice of the purchase repository download
// redemption needs: credential lookup and race-free count consumption.
type PurchaseRedeemer interface {
	GetPurchaseByDownloadToken(ctx context.Context, token string) (*models.Purchase, error)
	ConsumeDownload(ctx context.Context, purchaseID string) (bool, error)
}

// DownloadAuditor appends the immutable redemption audit trail.
type DownloadAuditor interface {
	CreateDownloadLog(ctx context.Context, entry *models.DownloadLog) error
}

type DownloadHandler struct {
	Purchases PurchaseRedeemer
	Logs      DownloadAuditor
	Links     storage.LinkProvider

	now func() time.Time
}

func NewDownloadHandler(purchases PurchaseRedeemer, logs DownloadAuditor, links storage.LinkProvider) *DownloadHandler {
	return &DownloadHandler{Purchases: purchases, Logs: logs, Links: links, now: time.Now}
}

type downloadResponse struct {
	Message            string    `json:"message"`
	FilePath           string    `json:"filePath"`
	DownloadsRemaining int       `json:"downloadsRemaining"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// HandleDownload exchanges a download credential for one file variant of
// the purchased clip, enforcing expiry and the redemption count, and
// audits every successful redemption.
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) error {
	token := chi.URLParam(r, "token")
	if token == "" {
		return webutil.ErrNotFound("Invalid download link")
	}

	purchase, err := h.Purchases.GetPurchaseByDownloadToken(r.Context(), token)
	if err != nil {
		if isDatastoreNotFound(err) {
			return webutil.ErrNotFound("Invalid download link")
		}
		return fmt.Errorf("failed to look up purchase by download token: %w", err)
	}
	if purchase.Status != models.PurchaseStatusCompleted || purchase.DownloadExpiresAt == nil {
		return webutil.ErrNotFound("Invalid download link")
	}

	if !h.now().Before(*purchase.DownloadExpiresAt) {
		return webutil.ErrGone("Download link has expired")
	}

	if purchase.DownloadCount >= purchase.MaxDownloads {
		return webutil.ErrForbidden("Maximum downloads reached")
	}

	clip := purchase.Clip
	if clip == nil {
		return webutil.ErrNotFound("Clip not found")
	}

	variant := models.ParseFileVariant(r.URL.Query().Get(queryParamFileType))
	filePath := clip.VariantPath(variant)
	if filePath == nil {
		return webutil.ErrNotFound("File not available")
	}

	// The count guard re-runs inside this conditional update, so two
	// concurrent redemptions of the last remaining download cannot both
	// pass: the loser of the race gets the same LimitReached answer it
	// would have gotten above.
	consumed, err := h.Purchases.ConsumeDownload(r.Context(), purchase.ID)
	if err != nil {
		return fmt.Errorf("failed to consume download for purchase %s: %w", purchase.ID, err)
	}
	if !consumed {
		return webutil.ErrForbidden("Maximum downloads reached")
	}

	h.auditDownload(r, purchase, clip, variant)

	link, err := h.Links.DownloadLink(*filePath)
	if err != nil {
		// The redemption is already accounted for; fall back to the raw path.
		link = *filePath
	}

	webutil.RespondWithJSON(w, http.StatusOK, downloadResponse{
		Message:            "Download ready",
		FilePath:           link,
		DownloadsRemaining: purchase.MaxDownloads - purchase.DownloadCount - 1,
		ExpiresAt:          purchase.DownloadExpiresAt.UTC(),
	})
	return nil
}

// auditDownload appends the DownloadLog row for a redemption that passed
// all checks. Audit failures are logged, not surfaced: the buyer's
// download must not break over a lost log row.
func (h *DownloadHandler) auditDownload(r *http.Request, purchase *models.Purchase, clip *models.Clip, variant models.FileVariant) {
	entry := &models.DownloadLog{
		ID:         uuid.NewString(),
		PurchaseID: purchase.ID,
		ClipID:     clip.ID,
		IPAddress:  requesterIP(r),
		UserAgent:  requesterUserAgent(r),
		FileType:   variant,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.Logs.CreateDownloadLog(r.Context(), entry); err != nil {
		log.Printf("ERROR: Failed to write download log for purchase %s: %v", purchase.ID, err)
	}
}

func requesterIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For.
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func requesterUserAgent(r *http.Request) string {
	if ua := r.Header.Get(webutil.HeaderUserAgent); ua != "" {
		return ua
	}
	return "unknown"
}
