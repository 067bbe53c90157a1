package domain

type Format string

const (
	// FormatCanonical is the lightweight markup representation,
	// the source of truth for caching.
	FormatCanonical Format = "md"
	// FormatRendered is the HTML representation derived from the canonical one.
	FormatRendered Format = "html"
)

func (f Format) ContentType() string {
	if f == FormatRendered {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}
