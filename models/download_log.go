package models

import "time"

// DownloadLog is the append-only audit record of one redemption attempt
// that located a valid purchase. Never updated or deleted.
type DownloadLog struct {
	ID         string      `json:"id"`
	PurchaseID string      `json:"purchase_id"`
	ClipID     string      `json:"clip_id"`
	IPAddress  string      `json:"ip_address"`
	UserAgent  string      `json:"user_agent"`
	FileType   FileVariant `json:"file_type"`
	CreatedAt  time.Time   `json:"created_at"`
}
