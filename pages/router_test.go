package pages

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// recordingScroller counts scroll resets and remembers whether the view was mounted at the time.
type recordingScroller struct {
	mu      sync.Mutex
	calls   int
	mounted []bool
	err     error
}

func (r *recordingScroller) ResetScroll(_ context.Context, nav *Navigation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.mounted = append(r.mounted, nav.Node != nil && nav.Node.FirstChild != nil)
	return r.err
}

func testRouter(views map[string]*mockView) *Router {
	factory := func(name string) ViewFactory {
		return func() (View, error) {
			if v, ok := views[name]; ok {
				return v, nil
			}
			return &mockView{text: name}, nil
		}
	}
	return &Router{
		Routes: MustTable(
			RouteEntry{Pattern: "/", Name: "Home", View: factory("Home")},
			RouteEntry{Pattern: "/homepage", Name: "Home", View: factory("Home")},
			RouteEntry{Pattern: "/deals", Name: "Deals", View: factory("Deals")},
			RouteEntry{Pattern: "/admin", Name: "Admin", View: factory("Admin")},
			RouteEntry{Pattern: CatchAll, Name: "Not Found", View: factory("Not Found")},
		),
	}
}

func TestRouter_Navigate(t *testing.T) {
	tests := []struct {
		path         string
		wantView     string
		wantText     string
		wantNotFound bool
		wantStatus   int
	}{
		{"/", "Home", "Home", false, http.StatusOK},
		{"/homepage", "Home", "Home", false, http.StatusOK},
		{"/deals", "Deals", "Deals", false, http.StatusOK},
		{"/deals/", "Not Found", "Not Found", true, http.StatusNotFound},
		{"/xyz", "Not Found", "Not Found", true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := testRouter(nil)
			sc := &recordingScroller{}

			nav, err := r.Navigate(context.Background(), tt.path, nil, sc)
			require.NoError(t, err)
			defer nav.Close()

			require.Equal(t, tt.path, nav.Path)
			require.Equal(t, tt.wantView, nav.Route.Name)
			require.Equal(t, tt.wantNotFound, nav.NotFound)
			require.Equal(t, tt.wantStatus, nav.StatusCode())
			require.Equal(t, BoundaryOK, nav.State())
			require.Equal(t, tt.wantText, innerText(nav.Node))

			require.Equal(t, "main", nav.Node.Data)
			require.Equal(t, MountID, attrValue(nav.Node, "id"))
			require.Equal(t, tt.path, attrValue(nav.Node, "data-route"))
			require.Equal(t, tt.wantView, attrValue(nav.Node, "data-view"))

			require.Equal(t, 1, sc.calls)
			require.Equal(t, []bool{true}, sc.mounted)
		})
	}
}

func TestRouter_NavigateInvalidPath(t *testing.T) {
	for _, p := range []string{"", "deals", "http://example.com/deals"} {
		sc := &recordingScroller{}
		_, err := testRouter(nil).Navigate(context.Background(), p, nil, sc)
		require.ErrorIs(t, err, ErrInvalidPath)
		require.Equal(t, 0, sc.calls)
	}
}

func TestRouter_NavigateWithoutTable(t *testing.T) {
	_, err := (&Router{}).Navigate(context.Background(), "/", nil, nil)
	require.Error(t, err)
}

func TestRouter_NavigateWithoutCatchAll(t *testing.T) {
	tests := []struct {
		name     string
		notFound ViewFactory
		wantText string
	}{
		{"default text", nil, "Not Found"},
		{"custom view", staticText("nothing here"), "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Router{
				Routes:   MustTable(RouteEntry{Pattern: "/", Name: "Home", View: staticText("home")}),
				NotFound: tt.notFound,
			}
			nav, err := r.Navigate(context.Background(), "/missing", nil, nil)
			require.NoError(t, err)
			require.True(t, nav.NotFound)
			require.Equal(t, "NotFound", nav.Route.Name)
			require.Equal(t, http.StatusNotFound, nav.StatusCode())
			require.Equal(t, tt.wantText, innerText(nav.Node))
		})
	}
}

func TestRouter_FailureIsContained(t *testing.T) {
	broken := &mockView{err: errors.New("db down")}
	r := testRouter(map[string]*mockView{"Admin": broken})
	r.Fallback = &mockView{text: "sorry"}
	sc := &recordingScroller{}

	nav, err := r.Navigate(context.Background(), "/admin", nil, sc)
	require.NoError(t, err)
	require.Equal(t, BoundaryFailed, nav.State())
	require.Equal(t, http.StatusInternalServerError, nav.StatusCode())
	require.Equal(t, "sorry", innerText(nav.Node))
	require.ErrorContains(t, nav.Failure(), "db down")

	// the scroll reset still happens once the fallback is mounted
	require.Equal(t, 1, sc.calls)
	require.Equal(t, []bool{true}, sc.mounted)

	// the next navigation gets a fresh boundary
	nav2, err := r.Navigate(context.Background(), "/deals", nil, sc)
	require.NoError(t, err)
	require.Equal(t, BoundaryOK, nav2.State())
	require.Equal(t, "Deals", innerText(nav2.Node))
	require.Equal(t, 2, sc.calls)
}

func TestRouter_PanicIsContained(t *testing.T) {
	r := testRouter(map[string]*mockView{"Deals": {panicVal: "nil map"}})

	nav, err := r.Navigate(context.Background(), "/deals", nil, nil)
	require.NoError(t, err)
	require.Equal(t, BoundaryFailed, nav.State())
	require.Equal(t, "nil map", nav.Failure().Panic)
	require.Contains(t, innerText(nav.Node), "Something went wrong.")
}

func TestRouter_ScrollOncePerNavigation(t *testing.T) {
	r := testRouter(nil)
	sc := &recordingScroller{}

	paths := []string{"/", "/deals", "/deals", "/homepage", "/nowhere"}
	for _, p := range paths {
		nav, err := r.Navigate(context.Background(), p, nil, sc)
		require.NoError(t, err)
		require.NoError(t, nav.Close())
	}
	require.Equal(t, len(paths), sc.calls)
}

func TestRouter_ScrollError(t *testing.T) {
	view := &mockView{text: "deals"}
	r := testRouter(map[string]*mockView{"Deals": view})
	sc := &recordingScroller{err: errors.New("client gone")}

	nav, err := r.Navigate(context.Background(), "/deals", nil, sc)
	require.ErrorContains(t, err, "reset scroll: client gone")
	require.Nil(t, nav)

	// the mounted view was released
	require.Equal(t, 1, view.disposed)
}

func TestNavigation_Rerender(t *testing.T) {
	view := &mockView{text: "first"}
	r := testRouter(map[string]*mockView{"Deals": view})
	sc := &recordingScroller{}

	nav, err := r.Navigate(context.Background(), "/deals", nil, sc)
	require.NoError(t, err)
	first := nav.Node

	view.text = "second"
	n, err := nav.Rerender()
	require.NoError(t, err)
	require.NotSame(t, first, n)
	require.Same(t, n, nav.Node)
	require.Equal(t, "second", innerText(n))
	require.Equal(t, 2, view.calls)

	// re-rendering is not a navigation
	require.Equal(t, 1, sc.calls)

	require.NoError(t, nav.Close())
	require.NoError(t, nav.Close())
	require.Equal(t, 1, view.disposed)

	_, err = nav.Rerender()
	require.Error(t, err)
}

func TestNavigation_RerenderAfterFailure(t *testing.T) {
	view := &mockView{err: errors.New("broken")}
	r := testRouter(map[string]*mockView{"Deals": view})

	nav, err := r.Navigate(context.Background(), "/deals", nil, nil)
	require.NoError(t, err)

	view.err = nil
	n, err := nav.Rerender()
	require.NoError(t, err)
	require.Equal(t, BoundaryFailed, nav.State())
	require.Contains(t, innerText(n), "Something went wrong.")
	require.Equal(t, 1, view.calls)
}

func TestNavigation_RerenderFallbackFails(t *testing.T) {
	r := testRouter(map[string]*mockView{"Deals": {err: errors.New("broken")}})
	r.Fallback = &mockView{err: errors.New("fallback broken")}

	nav, err := r.Navigate(context.Background(), "/deals", nil, nil)
	require.NoError(t, err)
	first := nav.Node
	require.Equal(t, errorText, innerText(first))

	n, err := nav.Rerender()
	require.Error(t, err)
	require.NotSame(t, first, n)
	require.Same(t, n, nav.Node)
	require.Equal(t, errorText, innerText(nav.Node))
	require.Equal(t, "/deals", attrValue(nav.Node, "data-route"))
}

type titledView struct {
	mockView
	title string
}

func (v *titledView) Title() string { return v.title }

func TestNavigation_Title(t *testing.T) {
	titled := func(title string, err error) ViewFactory {
		return func() (View, error) {
			return &titledView{mockView: mockView{text: title, err: err}, title: title}, nil
		}
	}
	r := &Router{
		Routes: MustTable(
			RouteEntry{Pattern: "/deals", Name: "Deals", View: titled("Today's deals", nil)},
			RouteEntry{Pattern: "/plain", Name: "Plain", View: Static(&mockView{text: "plain"})},
			RouteEntry{Pattern: "/broken", Name: "Broken", View: titled("Broken page", errors.New("boom"))},
		),
	}

	tests := []struct {
		path string
		want string
	}{
		{"/deals", "Today's deals"},
		{"/plain", "Plain"},
		{"/broken", "Broken"},
		{"/nowhere", "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			nav, err := r.Navigate(context.Background(), tt.path, nil, nil)
			require.NoError(t, err)
			defer nav.Close()
			require.Equal(t, tt.want, nav.Title())
		})
	}
}

func TestRouter_ScopeVars(t *testing.T) {
	var got map[string]any
	r := &Router{
		Routes: MustTable(RouteEntry{Pattern: "/deals", Name: "Deals", View: Static(ViewFunc(func(s *Scope) (*html.Node, error) {
			got = s.Vars()
			return textNode("ok"), nil
		}))}),
		Vars: map[string]any{"site": map[string]any{"name": "Toolsite"}},
	}
	req := &RequestArg{Method: http.MethodGet, Path: "/deals"}

	_, err := r.Navigate(context.Background(), "/deals", req, nil)
	require.NoError(t, err)

	require.Equal(t, map[string]any{"name": "Toolsite"}, got["site"])
	require.Equal(t, RouteArg{Path: "/deals", Pattern: "/deals", View: "Deals"}, got["route"])
	require.Same(t, req, got["request"])
}

func TestRouter_Metrics(t *testing.T) {
	r := testRouter(map[string]*mockView{"Admin": {err: errors.New("broken")}})
	r.Metrics = NewMetrics(WithRegistry(newTestRegistry()))

	for _, p := range []string{"/", "/admin", "/nowhere", "/"} {
		_, err := r.Navigate(context.Background(), p, nil, DocumentScroller)
		require.NoError(t, err)
	}

	require.Equal(t, 2.0, counterValue(t, r.Metrics.navigations.WithLabelValues("Home", OutcomeOK)))
	require.Equal(t, 1.0, counterValue(t, r.Metrics.navigations.WithLabelValues("Admin", OutcomeFailed)))
	require.Equal(t, 1.0, counterValue(t, r.Metrics.navigations.WithLabelValues("Not Found", OutcomeNotFound)))
	require.Equal(t, 4.0, counterValue(t, r.Metrics.scrollResets))
}

func TestDocumentScroller(t *testing.T) {
	nav, err := testRouter(nil).Navigate(context.Background(), "/deals", nil, DocumentScroller)
	require.NoError(t, err)

	last := nav.Node.LastChild
	require.NotNil(t, last)
	require.Equal(t, "script", last.Data)
	require.Equal(t, scrollScript, last.FirstChild.Data)

	err = DocumentScroller.ResetScroll(context.Background(), &Navigation{})
	require.Error(t, err)
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
