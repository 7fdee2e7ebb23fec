package pages

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func staticText(s string) ViewFactory {
	return Static(ViewFunc(func(*Scope) (*html.Node, error) {
		return textNode(s), nil
	}))
}

func TestNewTable(t *testing.T) {
	ok := staticText("ok")

	tests := []struct {
		name    string
		entries []RouteEntry
		wantErr error
	}{
		{
			name:    "empty table",
			entries: nil,
		},
		{
			name: "literals and catch-all",
			entries: []RouteEntry{
				{Pattern: "/", Name: "Home", View: ok},
				{Pattern: "/deals", Name: "Deals", View: ok},
				{Pattern: CatchAll, Name: "Not Found", View: ok},
			},
		},
		{
			name: "aliased patterns share a view",
			entries: []RouteEntry{
				{Pattern: "/", Name: "Home", View: ok},
				{Pattern: "/homepage", Name: "Home", View: ok},
			},
		},
		{
			name: "duplicate pattern",
			entries: []RouteEntry{
				{Pattern: "/deals", Name: "Deals", View: ok},
				{Pattern: "/deals", Name: "Other", View: ok},
			},
			wantErr: ErrDuplicatePattern,
		},
		{
			name: "catch-all not last",
			entries: []RouteEntry{
				{Pattern: CatchAll, Name: "Not Found", View: ok},
				{Pattern: "/deals", Name: "Deals", View: ok},
			},
			wantErr: ErrCatchAllNotLast,
		},
		{
			name: "two catch-alls",
			entries: []RouteEntry{
				{Pattern: CatchAll, Name: "Not Found", View: ok},
				{Pattern: CatchAll, Name: "Not Found", View: ok},
			},
			wantErr: ErrCatchAllNotLast,
		},
		{
			name:    "missing leading slash",
			entries: []RouteEntry{{Pattern: "deals", Name: "Deals", View: ok}},
			wantErr: ErrInvalidPattern,
		},
		{
			name:    "empty pattern",
			entries: []RouteEntry{{Pattern: "", Name: "Deals", View: ok}},
			wantErr: ErrInvalidPattern,
		},
		{
			name:    "wildcard inside literal",
			entries: []RouteEntry{{Pattern: "/tools/*", Name: "Tools", View: ok}},
			wantErr: ErrInvalidPattern,
		},
		{
			name:    "query in pattern",
			entries: []RouteEntry{{Pattern: "/tools?x=1", Name: "Tools", View: ok}},
			wantErr: ErrInvalidPattern,
		},
		{
			name:    "nil view",
			entries: []RouteEntry{{Pattern: "/deals", Name: "Deals"}},
			wantErr: ErrNilView,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(tt.entries...)
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				require.Nil(t, table)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tt.entries), table.Len())
		})
	}
}

func TestMustTable_Panics(t *testing.T) {
	require.Panics(t, func() {
		MustTable(RouteEntry{Pattern: "nope", View: staticText("x")})
	})
}

func TestTable_Match(t *testing.T) {
	ok := staticText("ok")
	table := MustTable(
		RouteEntry{Pattern: "/", Name: "Home", View: ok},
		RouteEntry{Pattern: "/homepage", Name: "Home", View: ok},
		RouteEntry{Pattern: "/deals", Name: "Deals", View: ok},
		RouteEntry{Pattern: CatchAll, Name: "Not Found", View: ok},
	)

	tests := []struct {
		path        string
		wantPattern string
		wantName    string
	}{
		{"/", "/", "Home"},
		{"/homepage", "/homepage", "Home"},
		{"/deals", "/deals", "Deals"},
		{"/deals/", CatchAll, "Not Found"},
		{"/Deals", CatchAll, "Not Found"},
		{"/deals/today", CatchAll, "Not Found"},
		{"/xyz", CatchAll, "Not Found"},
		{"//", CatchAll, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e, found := table.Match(tt.path)
			require.True(t, found)
			require.Equal(t, tt.wantPattern, e.Pattern)
			require.Equal(t, tt.wantName, e.Name)
		})
	}
}

func TestTable_MatchWithoutCatchAll(t *testing.T) {
	table := MustTable(RouteEntry{Pattern: "/", Name: "Home", View: staticText("ok")})

	_, found := table.Match("/missing")
	require.False(t, found)

	e, found := table.Match("/")
	require.True(t, found)
	require.Equal(t, "Home", e.Name)
}

func TestTable_Paths(t *testing.T) {
	ok := staticText("ok")
	table := MustTable(
		RouteEntry{Pattern: "/b", Name: "B", View: ok},
		RouteEntry{Pattern: "/a", Name: "A", View: ok},
		RouteEntry{Pattern: CatchAll, Name: "Not Found", View: ok},
	)

	if diff := cmp.Diff([]string{"/b", "/a"}, table.Paths()); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}

	entries := table.Entries()
	require.Len(t, entries, 3)
	require.True(t, entries[2].IsCatchAll())

	// the copy is detached from the table
	entries[0].Pattern = "/changed"
	require.Equal(t, "/b", table.Entries()[0].Pattern)
}
