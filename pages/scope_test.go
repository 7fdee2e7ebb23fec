package pages

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScope_Spawn(t *testing.T) {
	root := NewScope(context.Background(), map[string]any{"a": 1, "b": 2})
	child := root.Spawn(map[string]any{"b": 3, "c": 4})

	v, ok := child.Lookup("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = child.Lookup("b")
	require.True(t, ok)
	require.Equal(t, 3, v)

	_, ok = root.Lookup("c")
	require.False(t, ok)

	vars := child.Vars()
	require.Equal(t, 1, vars["a"])
	require.Equal(t, 3, vars["b"])
	require.Equal(t, 4, vars["c"])
	require.Contains(t, vars, "route")
	require.Contains(t, vars, "request")

	// the flattened copy does not leak into the scope
	vars["a"] = 100
	v, _ = child.Lookup("a")
	require.Equal(t, 1, v)

	require.Same(t, root.Request(), child.Request())
}

func TestNewScope_NilContext(t *testing.T) {
	//nolint:staticcheck // a nil context is accepted
	s := NewScope(nil, nil)
	require.NotNil(t, s.Context())
	require.NotNil(t, s.Request())
}

func TestRequestArg_WithURL(t *testing.T) {
	r := httptest.NewRequest("GET", "/?x=1", nil)
	r.Header.Set("User-Agent", "test")
	base := NewRequestArg(r)

	u, err := url.Parse("/deals?sort=new")
	require.NoError(t, err)
	next := base.withURL(u)

	require.Equal(t, "/deals", next.Path)
	require.Equal(t, "/deals?sort=new", next.URL)
	require.Equal(t, []string{"new"}, next.Query["sort"])
	require.True(t, next.Live)
	require.Equal(t, "test", next.Headers["User-Agent"][0])

	// the original is unchanged
	require.Equal(t, "/", base.Path)
	require.False(t, base.Live)
}
