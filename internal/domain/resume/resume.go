// Package resume describes where a resume document comes from.
package resume

import (
	"strings"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Source is either a fetchable URL or inline document bytes.
type Source struct {
	URL      string
	Content  []byte
	MIMEType string
	Name     string
}

// Validate rejects sources that carry neither or both a URL and content.
func (s Source) Validate() error {
	hasURL := strings.TrimSpace(s.URL) != ""
	switch {
	case hasURL && len(s.Content) > 0:
		return domain.InvalidArgf("resume source has both url and content")
	case !hasURL && len(s.Content) == 0:
		return domain.InvalidArgf("resume source is empty")
	}
	return nil
}

// Ref is the provenance string stored on every chunk.
func (s Source) Ref() string {
	if s.URL != "" {
		return s.URL
	}
	if s.Name != "" {
		return s.Name
	}
	return "upload"
}
