package report

import (
	"bytes"
	"html"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const pageStyle = "body{font-family:system-ui,sans-serif;max-width:70rem;margin:2rem auto;padding:0 1rem;color:#1c1917}" +
	"table{border-collapse:collapse;width:100%;font-size:0.85rem}" +
	"th,td{border:1px solid #a8a29e;padding:0.3rem 0.45rem;text-align:left}" +
	"thead th{background:#f1f5f9}"

// HTML converts a Markdown report into a standalone HTML page.
func HTML(title, markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", eris.Wrap(err, "report: render markdown")
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + pageStyle + "</style></head><body>" +
		body.String() +
		"</body></html>", nil
}
