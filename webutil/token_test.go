package webutil

import (
	"regexp"
	"testing"
)

func TestGenerateDownloadToken(t *testing.T) {
	t.Parallel()

	hexToken := regexp.MustCompile(`^[0-9a-f]{64}$`)

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := GenerateDownloadToken()
		if err != nil {
			t.Fatalf("GenerateDownloadToken: %v", err)
		}
		if !hexToken.MatchString(token) {
			t.Fatalf("token %q is not 64 hex characters", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}
