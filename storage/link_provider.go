package storage

import (
	"fmt"
	"strings"
)

// LinkProvider turns a clip's stored file path into something a buyer can
// fetch. The production backend (signed URLs against the NAS/object
// store) plugs in here; redemption accounting does not depend on it.
type LinkProvider interface {
	DownloadLink(filePath string) (string, error)
}

// PassthroughLinkProvider returns the stored path unchanged, optionally
// prefixed with a public base. It is the default until signed-URL serving
// is wired up.
type PassthroughLinkProvider struct {
	basePath string
}

// NewPassthroughLinkProvider creates a PassthroughLinkProvider. An empty
// basePath means stored paths are returned as-is.
func NewPassthroughLinkProvider(basePath string) *PassthroughLinkProvider {
	return &PassthroughLinkProvider{basePath: strings.TrimSuffix(basePath, "/")}
}

func (p *PassthroughLinkProvider) DownloadLink(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}
	if p.basePath == "" {
		return filePath, nil
	}
	return p.basePath + "/" + strings.TrimPrefix(filePath, "/"), nil
}
