package service

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// htmlPolicy is the allow-list for rendered model output: headings,
// paragraphs, lists, emphasis, code, tables, links and images with safe
// attributes. Scripts and event handlers never survive it.
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").OnElements("p", "span", "div", "td", "th")
	p.AllowTables()
	return p
}()

// RenderSafeHTML converts model-produced markdown into sanitized HTML. When
// rendering fails the result is the escaped plain text, never the raw input:
// a renderer error must not become an injection path.
func RenderSafeHTML(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return htmlPolicy.Sanitize(buf.String())
}
