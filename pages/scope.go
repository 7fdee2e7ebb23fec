package pages

import (
	"context"
	"maps"
	"net/http"
	"net/url"
)

// Scope carries the variables visible to a view while it renders. Child scopes spawned from a
// parent share the navigation globals and see the parent's variables unless shadowed.
type Scope struct {
	vars    map[string]any
	parent  *Scope
	globals *scopeGlobals
}

type scopeGlobals struct {
	ctx   context.Context
	req   *RequestArg
	route RouteArg
}

// RouteArg describes the matched route for templates.
type RouteArg struct {
	Path     string `expr:"path"`
	Pattern  string `expr:"pattern"`
	View     string `expr:"view"`
	NotFound bool   `expr:"not_found"`
}

// NewScope creates a root scope detached from any navigation. It is mostly useful in tests and
// for rendering views outside of a Router.
func NewScope(ctx context.Context, vars map[string]any) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scope{
		vars:    vars,
		globals: &scopeGlobals{ctx: ctx, req: &RequestArg{}},
	}
}

func newNavigationScope(ctx context.Context, vars map[string]any, req *RequestArg, route RouteArg) *Scope {
	s := NewScope(ctx, vars)
	if req != nil {
		s.globals.req = req
	}
	s.globals.route = route
	return s
}

// Context returns the context of the navigation the scope belongs to.
func (s *Scope) Context() context.Context { return s.globals.ctx }

// Request returns the request model of the navigation.
func (s *Scope) Request() *RequestArg { return s.globals.req }

// Route returns the matched route.
func (s *Scope) Route() RouteArg { return s.globals.route }

// Vars returns a flattened copy of all variables visible in the scope, including the "route" and
// "request" globals.
func (s *Scope) Vars() map[string]any {
	out := map[string]any{
		"route":   s.globals.route,
		"request": s.globals.req,
	}
	var chain []*Scope
	for c := s; c != nil; c = c.parent {
		chain = append(chain, c)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].vars)
	}
	return out
}

// Lookup returns a single variable.
func (s *Scope) Lookup(name string) (any, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Spawn creates a child scope with additional variables.
func (s *Scope) Spawn(vars map[string]any) *Scope {
	return &Scope{
		vars:    vars,
		parent:  s,
		globals: s.globals,
	}
}

// RequestArg is a simplified model of the HTTP request that started a navigation, suitable for
// expressions in templates.
type RequestArg struct {
	Method     string              `expr:"method"`
	URL        string              `expr:"url"`
	Host       string              `expr:"host"`
	Path       string              `expr:"path"`
	Query      map[string][]string `expr:"query"`
	RemoteAddr string              `expr:"remote_addr"`
	Headers    map[string][]string `expr:"headers"`
	Live       bool                `expr:"live"`
}

// NewRequestArg builds the request model for r.
func NewRequestArg(r *http.Request) *RequestArg {
	return &RequestArg{
		Method:     r.Method,
		URL:        r.RequestURI,
		Host:       r.Host,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
	}
}

// withURL returns a copy of the request model pointing at another location. Live sessions use
// it: the upgrade request stays the same while the location changes.
func (ra *RequestArg) withURL(u *url.URL) *RequestArg {
	c := RequestArg{}
	if ra != nil {
		c = *ra
	}
	c.Path = u.Path
	c.URL = u.RequestURI()
	c.Query = u.Query()
	c.Live = true
	return &c
}
