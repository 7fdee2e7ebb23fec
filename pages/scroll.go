package pages

import (
	"context"
	"errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Scroller resets the viewport scroll position. The Router calls it exactly once per navigation,
// after the view is mounted, and never on re-renders.
type Scroller interface {
	ResetScroll(ctx context.Context, nav *Navigation) error
}

// ScrollerFunc adapts a function to the Scroller interface.
type ScrollerFunc func(ctx context.Context, nav *Navigation) error

func (f ScrollerFunc) ResetScroll(ctx context.Context, nav *Navigation) error { return f(ctx, nav) }

// scrollScript is the inline script the DocumentScroller appends to the mount node.
const scrollScript = "window.scrollTo(0, 0)"

// DocumentScroller resets the scroll position of a full page load by appending an inline script
// to the navigation's mount node.
var DocumentScroller Scroller = ScrollerFunc(func(_ context.Context, nav *Navigation) error {
	if nav.Node == nil {
		return errors.New("scroll reset: navigation has no mount node")
	}
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "data-scroll-reset", Val: ""}},
	}
	script.AppendChild(textNode(scrollScript))
	nav.Node.AppendChild(script)
	return nil
})
