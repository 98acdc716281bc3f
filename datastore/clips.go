package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/setclip/setclip/models"
)

type ClipRepository struct {
	db *sql.DB
}

func NewClipRepository(db *sql.DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// GetClipByID fetches a clip joined with its show and venue, which the
// checkout and clip-page flows need for display text.
func (r *ClipRepository) GetClipByID(ctx context.Context, clipID string) (*models.Clip, error) {
	if _, err := uuid.Parse(clipID); err != nil {
		return nil, fmt.Errorf("invalid clip ID format: %w", err)
	}

	query := `
		SELECT c.id, c.show_id, c.performer_name, c.set_number, c.duration_seconds,
		       c.original_path, c.social_path, c.social_subtitled_path, c.preview_path, c.srt_path,
		       c.price_cents, c.is_available, c.promo_allowed, c.created_at,
		       s.id, s.venue_id, s.show_date, s.show_name,
		       v.id, v.name, v.slug, v.city, v.state
		FROM clips c
		JOIN shows s ON s.id = c.show_id
		JOIN venues v ON v.id = s.venue_id
		WHERE c.id = $1
	`

	var clip models.Clip
	var show models.Show
	var venue models.Venue

	row := r.db.QueryRowContext(ctx, query, clipID)
	err := row.Scan(
		&clip.ID, &clip.ShowID, &clip.PerformerName, &clip.SetNumber, &clip.DurationSeconds,
		&clip.OriginalPath, &clip.SocialPath, &clip.SocialSubtitledPath, &clip.PreviewPath, &clip.SRTPath,
		&clip.PriceCents, &clip.IsAvailable, &clip.PromoAllowed, &clip.CreatedAt,
		&show.ID, &show.VenueID, &show.ShowDate, &show.ShowName,
		&venue.ID, &venue.Name, &venue.Slug, &venue.City, &venue.State,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("clip not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get clip by ID: %w", err)
	}

	show.Venue = &venue
	clip.Show = &show
	return &clip, nil
}

// SearchClipsByPerformer queries the clip_search view for clips whose
// normalized performer name contains the normalized query, newest show
// first. An empty query returns no rows.
func (r *ClipRepository) SearchClipsByPerformer(ctx context.Context, query string) ([]models.ClipSearchResult, error) {
	normalized := NormalizeSearchQuery(query)
	if normalized == "" {
		return []models.ClipSearchResult{}, nil
	}

	sqlQuery := `
		SELECT id, performer_name, set_number, duration_seconds, price_cents,
		       is_available, promo_allowed, social_subtitled_path, preview_path,
		       show_date, show_name, venue_name, venue_slug
		FROM clip_search
		WHERE search_name ILIKE $1
		ORDER BY show_date DESC
	`

	rows, err := r.db.QueryContext(ctx, sqlQuery, "%"+normalized+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search clips: %w", err)
	}
	defer rows.Close()

	results := []models.ClipSearchResult{}
	for rows.Next() {
		var res models.ClipSearchResult
		err := rows.Scan(
			&res.ID, &res.PerformerName, &res.SetNumber, &res.DurationSeconds, &res.PriceCents,
			&res.IsAvailable, &res.PromoAllowed, &res.SocialSubtitledPath, &res.PreviewPath,
			&res.ShowDate, &res.ShowName, &res.VenueName, &res.VenueSlug,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip search row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clip search rows: %w", err)
	}

	return results, nil
}

// NormalizeSearchQuery lowercases the query and strips everything outside
// [a-z0-9 ], matching how the clip_search view's search_name is built.
func NormalizeSearchQuery(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
