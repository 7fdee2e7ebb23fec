package views

import (
	"fmt"
	"io/fs"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dpotapov/toolsite/pages"
)

// Failure is the generic display rendered in place of a page that failed. With Debug set it also
// shows the captured error.
type Failure struct {
	Debug bool
	tmpl  *Template
}

var _ pages.View = (*Failure)(nil)

// NewFailure parses the failure template.
func NewFailure(debug bool) (*Failure, error) {
	src, err := fs.ReadFile(templatesFS, "failure.html")
	if err != nil {
		return nil, fmt.Errorf("load failure view: %w", err)
	}
	t, err := ParseFragment("failure.html", src, contentFS)
	if err != nil {
		return nil, err
	}
	return &Failure{Debug: debug, tmpl: t}, nil
}

func (f *Failure) Render(s *pages.Scope) (*html.Node, error) {
	nodes, err := f.tmpl.Execute(s.Vars())
	if err != nil {
		return nil, err
	}

	section := &html.Node{
		Type:     html.ElementNode,
		Data:     "section",
		DataAtom: atom.Section,
		Attr: []html.Attribute{
			{Key: "class", Val: "page page-failure"},
			{Key: "role", Val: "alert"},
		},
	}
	for _, n := range nodes {
		section.AppendChild(n)
	}

	if v, ok := s.Lookup("failure"); ok && f.Debug {
		if rf, ok := v.(*pages.RenderFailure); ok && rf != nil {
			pre := &html.Node{
				Type:     html.ElementNode,
				Data:     "pre",
				DataAtom: atom.Pre,
				Attr:     []html.Attribute{{Key: "class", Val: "failure-detail"}},
			}
			pre.AppendChild(&html.Node{Type: html.TextNode, Data: rf.Error()})
			section.AppendChild(pre)
		}
	}

	return section, nil
}
