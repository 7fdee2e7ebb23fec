package pages

import (
	"errors"
	"fmt"
	"strings"
)

// CatchAll is the pattern matching any path not matched by a literal entry. It must be the last
// entry of a table.
const CatchAll = "*"

var (
	ErrInvalidPattern   = errors.New("invalid route pattern")
	ErrDuplicatePattern = errors.New("duplicate route pattern")
	ErrCatchAllNotLast  = errors.New("catch-all route must be the last entry")
	ErrNilView          = errors.New("route has no view")
)

// RouteEntry pairs a path pattern with the view it dispatches to.
type RouteEntry struct {
	// Pattern is a literal path beginning with "/" or the CatchAll pattern.
	Pattern string

	// Name is the display name of the view, e.g. "Home". Two aliased patterns carry the same name.
	Name string

	// View constructs the view for a navigation.
	View ViewFactory
}

// IsCatchAll reports whether the entry is the catch-all fallback.
func (e RouteEntry) IsCatchAll() bool { return e.Pattern == CatchAll }

// Table is an ordered, immutable list of route entries. It is built once at startup.
type Table struct {
	entries  []RouteEntry
	literals map[string]int
	catchAll int
}

// NewTable validates entries and builds a table from them.
func NewTable(entries ...RouteEntry) (*Table, error) {
	t := &Table{
		entries:  make([]RouteEntry, len(entries)),
		literals: make(map[string]int, len(entries)),
		catchAll: -1,
	}
	copy(t.entries, entries)

	for i, e := range t.entries {
		if e.View == nil {
			return nil, fmt.Errorf("%w: %q", ErrNilView, e.Pattern)
		}
		if t.catchAll >= 0 {
			return nil, fmt.Errorf("%w: %q follows it", ErrCatchAllNotLast, e.Pattern)
		}
		if e.IsCatchAll() {
			t.catchAll = i
			continue
		}
		if e.Pattern == "" || e.Pattern[0] != '/' || strings.ContainsAny(e.Pattern, "*?#") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, e.Pattern)
		}
		if j, ok := t.literals[e.Pattern]; ok {
			return nil, fmt.Errorf("%w: %q (entries %d and %d)", ErrDuplicatePattern, e.Pattern, j, i)
		}
		t.literals[e.Pattern] = i
	}

	return t, nil
}

// MustTable is like NewTable but panics on an invalid table. It is meant for package-level
// route declarations.
func MustTable(entries ...RouteEntry) *Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match looks up path with an exact string comparison. If no literal entry matches, the catch-all
// entry is returned. The boolean is false only when nothing matches and the table has no
// catch-all.
func (t *Table) Match(path string) (RouteEntry, bool) {
	if i, ok := t.literals[path]; ok {
		return t.entries[i], true
	}
	if t.catchAll >= 0 {
		return t.entries[t.catchAll], true
	}
	return RouteEntry{}, false
}

// Entries returns a copy of the entries in declaration order.
func (t *Table) Entries() []RouteEntry {
	out := make([]RouteEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Paths returns the literal patterns in declaration order. The catch-all is not included.
func (t *Table) Paths() []string {
	out := make([]string, 0, len(t.literals))
	for _, e := range t.entries {
		if !e.IsCatchAll() {
			out = append(out, e.Pattern)
		}
	}
	return out
}

// Len returns the number of entries including the catch-all.
func (t *Table) Len() int { return len(t.entries) }
