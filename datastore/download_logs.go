package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/setclip/setclip/models"
)

type DownloadLogRepository struct {
	db *sql.DB
}

func NewDownloadLogRepository(db *sql.DB) *DownloadLogRepository {
	return &DownloadLogRepository{db: db}
}

// CreateDownloadLog appends one redemption audit record. Rows are never
// updated or deleted.
func (r *DownloadLogRepository) CreateDownloadLog(ctx context.Context, entry *models.DownloadLog) error {
	if _, err := uuid.Parse(entry.ID); err != nil {
		return fmt.Errorf("invalid download log ID format: %w", err)
	}
	if _, err := uuid.Parse(entry.PurchaseID); err != nil {
		return fmt.Errorf("invalid purchase ID format: %w", err)
	}
	if _, err := uuid.Parse(entry.ClipID); err != nil {
		return fmt.Errorf("invalid clip ID format: %w", err)
	}

	query := `
		INSERT INTO download_logs (
			id, purchase_id, clip_id, ip_address, user_agent, file_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.PurchaseID, entry.ClipID,
		entry.IPAddress, entry.UserAgent, string(entry.FileType), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download log: %w", err)
	}
	return nil
}
