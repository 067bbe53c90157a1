// Package format derives the desired response representation from
// the request path suffix or the Accept header.
package format

import (
	"strings"

	"paygate-service/domain"
)

var (
	renderedSuffixes  = []string{".html", ".htm"}
	canonicalSuffixes = []string{".md", ".markdown"}
)

// Resolve picks the representation for a request. Path suffix wins over
// content negotiation, negotiation wins over the default.
func Resolve(path string, accept string) domain.Format {
	for _, suffix := range renderedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return domain.FormatRendered
		}
	}
	for _, suffix := range canonicalSuffixes {
		if strings.HasSuffix(path, suffix) {
			return domain.FormatCanonical
		}
	}
	if strings.Contains(accept, "text/html") {
		return domain.FormatRendered
	}
	return domain.FormatCanonical
}

// Strip removes a recognized format suffix so both representations
// address the same logical resource.
func Strip(path string) (string, bool) {
	for _, suffix := range renderedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return strings.TrimSuffix(path, suffix), true
		}
	}
	for _, suffix := range canonicalSuffixes {
		if strings.HasSuffix(path, suffix) {
			return strings.TrimSuffix(path, suffix), true
		}
	}
	return path, false
}
