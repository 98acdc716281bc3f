package models

import "time"

// FileVariant identifies one of the derived files produced for a clip
// by the offline processing pipeline.
type FileVariant string

const (
	FileVariantOriginal        FileVariant = "original"
	FileVariantSocial          FileVariant = "social"
	FileVariantSocialSubtitled FileVariant = "social_subtitled"
	FileVariantSRT             FileVariant = "srt"
)

// ParseFileVariant maps a request's "type" selector to a FileVariant.
// Unknown or empty selectors fall back to the subtitled social cut,
// which is what buyers almost always want.
func ParseFileVariant(s string) FileVariant {
	switch FileVariant(s) {
	case FileVariantOriginal, FileVariantSocial, FileVariantSocialSubtitled, FileVariantSRT:
		return FileVariant(s)
	default:
		return FileVariantSocialSubtitled
	}
}

// Clip is a purchasable video asset. Rows are created by the offline
// ingestion pipeline and are read-only to this service.
type Clip struct {
	ID                  string    `json:"id"`
	ShowID              string    `json:"show_id"`
	PerformerName       string    `json:"performer_name"`
	SetNumber           int       `json:"set_number"`
	DurationSeconds     *int      `json:"duration_seconds,omitempty"`
	OriginalPath        *string   `json:"original_path,omitempty"`
	SocialPath          *string   `json:"social_path,omitempty"`
	SocialSubtitledPath *string   `json:"social_subtitled_path,omitempty"`
	PreviewPath         *string   `json:"preview_path,omitempty"`
	SRTPath             *string   `json:"srt_path,omitempty"`
	PriceCents          int64     `json:"price_cents"`
	IsAvailable         bool      `json:"is_available"`
	PromoAllowed        bool      `json:"promo_allowed"`
	CreatedAt           time.Time `json:"created_at"`

	// Show is populated on joined reads; nil otherwise.
	Show *Show `json:"show,omitempty"`
}

// VariantPath returns the stored path for the given variant, or nil if
// that variant was never produced for this clip.
func (c *Clip) VariantPath(v FileVariant) *string {
	switch v {
	case FileVariantOriginal:
		return c.OriginalPath
	case FileVariantSocial:
		return c.SocialPath
	case FileVariantSocialSubtitled:
		return c.SocialSubtitledPath
	case FileVariantSRT:
		return c.SRTPath
	default:
		return nil
	}
}

// ClipSearchResult mirrors one row of the clip_search view, which joins
// clips with their show and venue and carries the normalized name the
// search endpoint matches against.
type ClipSearchResult struct {
	ID                  string    `json:"id"`
	PerformerName       string    `json:"performer_name"`
	SetNumber           int       `json:"set_number"`
	DurationSeconds     *int      `json:"duration_seconds,omitempty"`
	PriceCents          int64     `json:"price_cents"`
	IsAvailable         bool      `json:"is_available"`
	PromoAllowed        bool      `json:"promo_allowed"`
	SocialSubtitledPath *string   `json:"social_subtitled_path,omitempty"`
	PreviewPath         *string   `json:"preview_path,omitempty"`
	ShowDate            time.Time `json:"show_date"`
	ShowName            *string   `json:"show_name,omitempty"`
	VenueName           string    `json:"venue_name"`
	VenueSlug           string    `json:"venue_slug"`
}
