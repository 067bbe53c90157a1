// Package render converts canonical markdown content into its HTML
// representation using a fixed page template.
package render

import (
	"bytes"
	"html/template"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
{{ .Content }}
</body>
</html>
`

type Renderer struct {
	markdown goldmark.Markdown
	page     *template.Template
}

func New() Renderer {
	return Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		page: template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// Render is a pure function of its input: the same canonical content always
// yields byte-identical output.
func (r Renderer) Render(canonical []byte) ([]byte, error) {
	body := bytes.Buffer{}
	err := r.markdown.Convert(canonical, &body)
	if err != nil {
		return nil, errors.WithMessage(err, "markdown convert")
	}

	page := bytes.Buffer{}
	err = r.page.Execute(&page, map[string]any{
		"Content": template.HTML(body.String()), //nolint:gosec
	})
	if err != nil {
		return nil, errors.WithMessage(err, "execute page template")
	}

	return page.Bytes(), nil
}
