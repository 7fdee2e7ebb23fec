package pages

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/beevik/etree"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// WriteSitemap writes an XML sitemap listing every literal path of the table, in declaration
// order, prefixed with baseURL. The catch-all is not listed.
func (t *Table) WriteSitemap(w io.Writer, baseURL string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	urlset := doc.CreateElement("urlset")
	urlset.CreateAttr("xmlns", sitemapNS)

	base := strings.TrimSuffix(baseURL, "/")
	for _, p := range t.Paths() {
		loc := urlset.CreateElement("url").CreateElement("loc")
		loc.SetText(base + p)
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write sitemap: %w", err)
	}
	return nil
}

// SitemapHandler serves the sitemap of t. The document is built once.
func SitemapHandler(t *Table, baseURL string) (http.Handler, error) {
	var buf bytes.Buffer
	if err := t.WriteSitemap(&buf, baseURL); err != nil {
		return nil, err
	}
	body := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write(body)
	}), nil
}
