package routehandlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/webutil"
)

const queryParamSearch = "q"

// ClipSearcher is the read-only clip access the presentation endpoints use.
type ClipSearcher interface {
	GetClipByID(ctx context.Context, clipID string) (*models.Clip, error)
	SearchClipsByPerformer(ctx context.Context, query string) ([]models.ClipSearchResult, error)
}

type ClipHandler struct {
	Clips ClipSearcher
}

func NewClipHandler(clips ClipSearcher) *ClipHandler {
	return &ClipHandler{Clips: clips}
}

type clipSearchResponse struct {
	Query   string                    `json:"query"`
	Results []models.ClipSearchResult `json:"results"`
}

// HandleSearchClips serves the performer-name search behind the search
// page. An empty or fully-stripped query yields an empty result set, not
// an error.
func (h *ClipHandler) HandleSearchClips(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query().Get(queryParamSearch)

	results, err := h.Clips.SearchClipsByPerformer(r.Context(), query)
	if err != nil {
		return fmt.Errorf("failed to search clips for %q: %w", query, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, clipSearchResponse{Query: query, Results: results})
	return nil
}

// HandleGetClip serves a single clip joined with its show and venue for
// the clip page.
func (h *ClipHandler) HandleGetClip(w http.ResponseWriter, r *http.Request) error {
	clipID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(clipID); err != nil {
		return webutil.ErrBadRequest("Invalid clip ID format")
	}

	clip, err := h.Clips.GetClipByID(r.Context(), clipID)
	if err != nil {
		if isDatastoreNotFound(err) {
			return webutil.ErrNotFound("Clip not found")
		}
		return fmt.Errorf("failed to retrieve clip %s: %w", clipID, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, clip)
	return nil
}
