package views

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// sanitizer strips anything from rendered Markdown that user generated content may not carry.
	sanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown converts Markdown to sanitized HTML nodes.
func renderMarkdown(src []byte) ([]*html.Node, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, err
	}
	clean := sanitizer.SanitizeReader(&buf)

	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	return html.ParseFragment(clean, ctx)
}
