package pages

import "golang.org/x/net/html"

// View is a renderable page unit. A view is mounted once per navigation and may be rendered
// several times while mounted.
type View interface {
	Render(s *Scope) (*html.Node, error)
}

// ViewFunc adapts a plain function to the View interface.
type ViewFunc func(s *Scope) (*html.Node, error)

func (f ViewFunc) Render(s *Scope) (*html.Node, error) { return f(s) }

// ViewFactory constructs a fresh View instance for a navigation. A failing or panicking factory
// is treated as a render failure by the boundary.
type ViewFactory func() (View, error)

// Static returns a ViewFactory that always yields v.
func Static(v View) ViewFactory {
	return func() (View, error) { return v, nil }
}

// Titled is implemented by views that carry their own document title.
type Titled interface {
	Title() string
}

// Disposable is implemented by views holding resources that must be released on unmount.
type Disposable interface {
	Dispose() error
}
