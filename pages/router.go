package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrInvalidPath is returned by Navigate for paths that are empty or do not begin with "/".
var ErrInvalidPath = errors.New("invalid navigation path")

// MountID is the id attribute of the element every navigation renders into.
const MountID = "page-root"

const tracerName = "github.com/dpotapov/toolsite/pages"

// Router dispatches a location path to exactly one view of a route table. A Router is safe for
// concurrent use; each navigation gets its own boundary and scope.
type Router struct {
	// Routes is the route table. It is required.
	Routes *Table

	// Fallback is rendered in place of a view whose construction or rendering failed.
	// If not set, DefaultFailureView is used.
	Fallback View

	// NotFound is used for unmatched paths when Routes has no catch-all entry.
	// If not set, a plain "Not Found" text is rendered.
	NotFound ViewFactory

	// Vars are variables added to every navigation scope, e.g. site settings.
	Vars map[string]any

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// Metrics records navigation metrics. It may be nil.
	Metrics *Metrics

	// Tracer traces navigations. If not set, the global OpenTelemetry tracer provider is used.
	Tracer trace.Tracer

	init   sync.Once
	logger *slog.Logger
	tracer trace.Tracer
}

// Navigation is one dispatch of a path to a mounted view.
type Navigation struct {
	// ID identifies the navigation in logs and live frames.
	ID uuid.UUID

	// Path is the navigated path.
	Path string

	// Route is the matched entry. For unmatched paths without a catch-all it carries the
	// "NotFound" name and an empty pattern.
	Route RouteEntry

	// NotFound is true when the path matched no literal entry.
	NotFound bool

	// Node is the mount element holding the rendered view.
	Node *html.Node

	boundary *errorBoundary
	scope    *Scope
	mu       sync.Mutex
	closed   bool
}

// Failure returns the failure captured by the navigation's boundary, or nil.
func (n *Navigation) Failure() *RenderFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.boundary.Failure()
}

// State returns the state of the navigation's boundary.
func (n *Navigation) State() BoundaryState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.boundary.State()
}

// Scope returns the scope the view renders with.
func (n *Navigation) Scope() *Scope { return n.scope }

// StatusCode returns the HTTP status matching the navigation outcome.
func (n *Navigation) StatusCode() int {
	switch {
	case n.Failure() != nil:
		return http.StatusInternalServerError
	case n.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// Rerender renders the mounted view again into a fresh mount node. It is not a navigation: the
// scroll position is not reset. A failed boundary keeps rendering its fallback.
func (n *Navigation) Rerender() (*html.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, errors.New("rerender: navigation is closed")
	}
	mount := newMountNode(n.Path, n.Route.Name)
	// on error the boundary has substituted a plain text node, which is still the mounted content
	err := renderInto(mount, n.boundary, n.scope)
	n.Node = mount
	return mount, err
}

// Title returns the document title of the mounted view, or the route name when the view does not
// carry one or has failed.
func (n *Navigation) Title() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.boundary.State() == BoundaryOK {
		if t, ok := n.boundary.view.(Titled); ok {
			return t.Title()
		}
	}
	return n.Route.Name
}

// Close unmounts the navigation and disposes its view. Closing twice is a no-op.
func (n *Navigation) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.boundary.Dispose()
}

func (n *Navigation) outcome() string {
	switch {
	case n.boundary.Failure() != nil:
		return OutcomeFailed
	case n.NotFound:
		return OutcomeNotFound
	default:
		return OutcomeOK
	}
}

func (r *Router) setup() {
	r.init.Do(func() {
		r.logger = discardLogger()
		if r.Logger != nil {
			r.logger = r.Logger
		}
		r.tracer = r.Tracer
		if r.tracer == nil {
			r.tracer = otel.Tracer(tracerName)
		}
	})
}

// Navigate dispatches path to a view: match, mount, then reset the scroll position through sc
// exactly once. sc may be nil. req describes the request that carried the navigation and may be
// nil.
//
// View failures never surface as errors: they are contained by the boundary and reported through
// Navigation.Failure. Errors are returned for invalid paths, a missing route table, and scroll
// reset failures.
func (r *Router) Navigate(ctx context.Context, path string, req *RequestArg, sc Scroller) (*Navigation, error) {
	r.setup()

	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if r.Routes == nil {
		return nil, errors.New("router has no route table")
	}

	ctx, span := r.tracer.Start(ctx, "pages.Navigate", trace.WithAttributes(
		attribute.String("pages.path", path),
	))
	defer span.End()

	start := time.Now()

	entry, ok := r.Routes.Match(path)
	notFound := !ok || entry.IsCatchAll()
	if !ok {
		entry = RouteEntry{Name: "NotFound", View: r.NotFound}
		if entry.View == nil {
			entry.View = Static(notFoundText)
		}
	}

	nav := &Navigation{
		ID:       uuid.New(),
		Path:     path,
		Route:    entry,
		NotFound: notFound,
		boundary: newErrorBoundary(entry.Name, entry.View, r.Fallback, r.logger),
		scope: newNavigationScope(ctx, r.Vars, req, RouteArg{
			Path:     path,
			Pattern:  entry.Pattern,
			View:     entry.Name,
			NotFound: notFound,
		}),
	}
	nav.Node = newMountNode(path, entry.Name)

	if err := renderInto(nav.Node, nav.boundary, nav.scope); err != nil {
		// the boundary already substituted a plain text node
		r.logger.Error("Render fallback", "path", path, "error", err)
	}

	outcome := nav.outcome()
	span.SetAttributes(
		attribute.String("pages.view", entry.Name),
		attribute.String("pages.outcome", outcome),
		attribute.String("pages.navigation_id", nav.ID.String()),
	)
	if f := nav.boundary.Failure(); f != nil {
		span.RecordError(f)
		span.SetStatus(codes.Error, f.Error())
	}
	r.Metrics.observeNavigation(entry.Name, outcome, time.Since(start))

	r.logger.Debug("Navigate", "id", nav.ID, "path", path, "view", entry.Name, "outcome", outcome)

	if sc != nil {
		if err := sc.ResetScroll(ctx, nav); err != nil {
			span.RecordError(err)
			_ = nav.Close()
			return nil, fmt.Errorf("reset scroll: %w", err)
		}
		r.Metrics.observeScrollReset()
	}

	return nav, nil
}

func renderInto(mount *html.Node, v View, s *Scope) error {
	n, err := v.Render(s)
	if n != nil {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		mount.AppendChild(n)
	}
	return err
}

func newMountNode(path, view string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "main",
		DataAtom: atom.Main,
		Attr: []html.Attribute{
			{Key: "id", Val: MountID},
			{Key: "data-route", Val: path},
			{Key: "data-view", Val: view},
		},
	}
}

var notFoundText View = ViewFunc(func(*Scope) (*html.Node, error) {
	return textNode(http.StatusText(http.StatusNotFound)), nil
})
