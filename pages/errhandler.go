package pages

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BoundaryState is the state of an error boundary.
type BoundaryState int

const (
	// BoundaryOK renders the wrapped view.
	BoundaryOK BoundaryState = iota

	// BoundaryFailed renders the fallback. It is terminal for the boundary instance.
	BoundaryFailed
)

func (s BoundaryState) String() string {
	switch s {
	case BoundaryOK:
		return "ok"
	case BoundaryFailed:
		return "failed"
	default:
		return fmt.Sprintf("BoundaryState(%d)", int(s))
	}
}

// RenderFailure is a failure captured while constructing or rendering a view.
type RenderFailure struct {
	// View is the name of the view that failed.
	View string

	// Err is the returned error. For panics it wraps the panic value.
	Err error

	// Panic is the recovered value, nil when the view returned an error.
	Panic any

	// Stack is the goroutine stack at the time of the panic.
	Stack []byte
}

func (e *RenderFailure) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("render %s: panic: %v", e.View, e.Panic)
	}
	return fmt.Sprintf("render %s: %v", e.View, e.Err)
}

func (e *RenderFailure) Unwrap() error { return e.Err }

// errorBoundary wraps a view and substitutes a fallback when constructing or rendering the view
// fails. Only the render path is guarded.
type errorBoundary struct {
	// name is the view name reported in failures.
	name string

	// factory constructs the view on the first render.
	factory ViewFactory

	// view is the mounted view instance. It is nil until the factory succeeds.
	view View

	// fallback renders in place of the view once the boundary has failed.
	fallback View

	state   BoundaryState
	failure *RenderFailure
	logger  *slog.Logger
}

var _ View = (*errorBoundary)(nil)

func newErrorBoundary(name string, factory ViewFactory, fallback View, logger *slog.Logger) *errorBoundary {
	if fallback == nil {
		fallback = DefaultFailureView
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &errorBoundary{
		name:     name,
		factory:  factory,
		fallback: fallback,
		logger:   logger,
	}
}

// State returns the boundary state.
func (eb *errorBoundary) State() BoundaryState { return eb.state }

// Failure returns the captured failure, or nil while the boundary is ok.
func (eb *errorBoundary) Failure() *RenderFailure { return eb.failure }

// Render renders the view, or the fallback once a failure was captured. The returned error is
// non-nil only when the fallback itself fails; the node is still usable in that case.
func (eb *errorBoundary) Render(s *Scope) (*html.Node, error) {
	if eb.state == BoundaryOK {
		n, f := eb.renderView(s)
		if f == nil {
			return n, nil
		}
		eb.state = BoundaryFailed
		eb.failure = f
		eb.logger.Error("Render view", "view", eb.name, "path", s.Route().Path, "error", f)
	}

	n, err := eb.renderFallback(s.Spawn(map[string]any{"failure": eb.failure}))
	if err != nil {
		eb.logger.Error("Render fallback", "view", eb.name, "error", err)
		return textNode(errorText), errors.Join(eb.failure, err)
	}
	return n, nil
}

func (eb *errorBoundary) renderView(s *Scope) (n *html.Node, f *RenderFailure) {
	defer func() {
		if r := recover(); r != nil {
			f = &RenderFailure{
				View:  eb.name,
				Err:   fmt.Errorf("panic: %v", r),
				Panic: r,
				Stack: debug.Stack(),
			}
			n = nil
		}
	}()

	if eb.view == nil {
		if eb.factory == nil {
			return nil, &RenderFailure{View: eb.name, Err: ErrNilView}
		}
		v, err := eb.factory()
		if err != nil {
			return nil, &RenderFailure{View: eb.name, Err: fmt.Errorf("construct view: %w", err)}
		}
		if v == nil {
			return nil, &RenderFailure{View: eb.name, Err: ErrNilView}
		}
		eb.view = v
	}

	n, err := eb.view.Render(s)
	if err != nil {
		return nil, &RenderFailure{View: eb.name, Err: err}
	}
	return n, nil
}

func (eb *errorBoundary) renderFallback(s *Scope) (n *html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("fallback panic: %v", r)
		}
	}()
	return eb.fallback.Render(s)
}

// Dispose releases the mounted view and the fallback if they are Disposable.
func (eb *errorBoundary) Dispose() error {
	var errs []error
	if d, ok := eb.view.(Disposable); ok {
		errs = append(errs, d.Dispose())
	}
	if d, ok := eb.fallback.(Disposable); ok {
		errs = append(errs, d.Dispose())
	}
	return errors.Join(errs...)
}

const errorText = "Internal Server Error"

// DefaultFailureView is the generic failure display used when a Router has no Fallback.
var DefaultFailureView View = ViewFunc(func(*Scope) (*html.Node, error) {
	div := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: "render-failure"}, {Key: "role", Val: "alert"}},
	}
	div.AppendChild(textNode("Something went wrong."))
	return div, nil
})

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
