package views

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/net/html"

	"github.com/dpotapov/toolsite/pages"
)

// StylesheetAsset is the asset name of the site stylesheet.
const StylesheetAsset = "site.css"

// RegisterAssets adds the site stylesheet to the registry.
func RegisterAssets(r *pages.AssetRegistry) error {
	css, err := fs.ReadFile(files, "assets/site.css")
	if err != nil {
		return err
	}
	return r.AddAsset(StylesheetAsset, css)
}

// Layout is the document shell shared by every page: head, site navigation and footer around
// the navigation's mount node.
type Layout struct {
	// Assets provides the stylesheet and live client links. It may be nil.
	Assets *pages.AssetRegistry

	// Live adds the live navigation client script.
	Live bool

	tmpl *Template
}

var (
	_ pages.Shell          = (*Layout)(nil)
	_ pages.DocumentTitler = (*Layout)(nil)
)

// NewLayout parses the layout template.
func NewLayout(assets *pages.AssetRegistry, live bool) (*Layout, error) {
	src, err := fs.ReadFile(templatesFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("load layout: %w", err)
	}
	t, err := ParseDocument("layout.html", src, contentFS)
	if err != nil {
		return nil, err
	}
	return &Layout{Assets: assets, Live: live, tmpl: t}, nil
}

// Wrap renders the layout with the navigation's mount node in place of the <c-slot> element.
func (l *Layout) Wrap(nav *pages.Navigation) (*html.Node, error) {
	doc, err := l.execute(nav)
	if err != nil {
		return nil, err
	}

	slot := findElement(doc, slotTag)
	if slot == nil {
		return nil, errors.New("layout.html: missing <c-slot>")
	}
	if nav.Node.Parent != nil {
		nav.Node.Parent.RemoveChild(nav.Node)
	}
	replaceNode(slot, []*html.Node{nav.Node})

	if l.Assets != nil {
		if head := findElement(doc, "head"); head != nil {
			if link := l.Assets.LinkNode(StylesheetAsset); link != nil {
				head.AppendChild(link)
			}
		}
		if l.Live {
			if body := findElement(doc, "body"); body != nil {
				if script := l.Assets.LinkNode(pages.LiveClientAsset); script != nil {
					body.AppendChild(script)
				}
			}
		}
	}

	return doc, nil
}

// DocumentTitle returns the text of the layout's <title> element for nav.
func (l *Layout) DocumentTitle(nav *pages.Navigation) string {
	doc, err := l.execute(nav)
	if err != nil {
		return nav.Title()
	}
	title := findElement(doc, "title")
	if title == nil {
		return nav.Title()
	}
	return textContent(title)
}

func (l *Layout) execute(nav *pages.Navigation) (*html.Node, error) {
	env := nav.Scope().Vars()
	env["page"] = map[string]any{"name": nav.Route.Name, "title": nav.Title()}
	env["status"] = nav.StatusCode()

	nodes, err := l.tmpl.Execute(env)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		} else {
			sb.WriteString(textContent(c))
		}
	}
	return sb.String()
}
