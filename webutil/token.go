package webutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// downloadTokenBytes is the entropy of a minted download token. 32 bytes
// hex-encodes to a 64-character token; collisions are not a practical concern.
const downloadTokenBytes = 32

// GenerateDownloadToken mints an opaque, high-entropy credential used to
// gate access to a completed purchase's files.
func GenerateDownloadToken() (string, error) {
	buf := make([]byte, downloadTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for download token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
