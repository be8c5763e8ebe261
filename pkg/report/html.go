package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrRender wraps failures while producing report artifacts.
var ErrRender = errors.New("render report")

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; max-width: 1200px; margin: 0 auto; padding: 20px; color: #333; }
h1, h2, h3 { color: #2c3e50; margin-top: 2em; margin-bottom: 0.5em; }
h1 { border-bottom: 3px solid #3498db; padding-bottom: 10px; }
h2 { border-bottom: 2px solid #ecf0f1; padding-bottom: 5px; }
table { width: 100%; border-collapse: collapse; margin: 1em 0; font-size: 0.9em; }
th, td { border: 1px solid #ddd; padding: 8px 12px; text-align: left; }
th { background-color: #f8f9fa; font-weight: 600; }
tr:nth-child(even) { background-color: #f8f9fa; }
code { background-color: #f1f2f6; padding: 2px 4px; border-radius: 3px; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Title string
	Body  template.HTML
}

var markdownConverter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML converts the Markdown report into a standalone HTML page.
func RenderHTML(w io.Writer, title string, markdown []byte) error {
	var body bytes.Buffer

	convertErr := markdownConverter.Convert(markdown, &body)
	if convertErr != nil {
		return fmt.Errorf("%w: convert markdown: %w", ErrRender, convertErr)
	}

	err := pageTemplate.Execute(w, pageData{
		Title: title,
		Body:  template.HTML(body.String()), //nolint:gosec // produced by goldmark from our own Markdown
	})
	if err != nil {
		return fmt.Errorf("%w: write html: %w", ErrRender, err)
	}

	return nil
}
