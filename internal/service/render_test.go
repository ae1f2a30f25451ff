package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSafeHTML_Markdown(t *testing.T) {
	html := RenderSafeHTML("**12 invoices** were issued")
	assert.Contains(t, html, "<strong>12 invoices</strong>")
}

func TestRenderSafeHTML_StripsScripts(t *testing.T) {
	html := RenderSafeHTML(`Total: 5<script>alert("x")</script>`)
	assert.NotContains(t, html, "<script")
	assert.NotContains(t, html, "alert")
	assert.Contains(t, html, "Total: 5")
}

func TestRenderSafeHTML_StripsEventHandlers(t *testing.T) {
	html := RenderSafeHTML(`<img src="x" onerror="steal()">`)
	assert.NotContains(t, html, "onerror")
	assert.NotContains(t, html, "steal")
}

func TestRenderSafeHTML_Tables(t *testing.T) {
	html := RenderSafeHTML("| Item | Qty |\n| --- | --- |\n| Pen | 3 |")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>Pen</td>")
}

func TestRenderSafeHTML_Links(t *testing.T) {
	html := RenderSafeHTML("[report](https://example.com/report)")
	assert.Contains(t, html, `href="https://example.com/report"`)

	html = RenderSafeHTML(`[bad](javascript:alert(1))`)
	assert.NotContains(t, html, "javascript:")
}
