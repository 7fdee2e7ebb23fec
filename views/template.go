package views

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	leftDelim  = "${"
	rightDelim = '}'

	// markdownTag is replaced at parse time by the rendered Markdown file named in its src attribute.
	markdownTag = "c-markdown"

	// slotTag marks where a layout inserts the page.
	slotTag = "c-slot"
)

// Template is a parsed HTML fragment or document with ${...} placeholders in text and attribute
// values. Placeholders are expr-lang expressions evaluated against the render environment.
// A Template is immutable once parsed and safe for concurrent use.
type Template struct {
	name     string
	document bool
	nodes    []*html.Node
	interps  map[string][]segment

	// raw holds the roots of rendered Markdown, copied as is by Execute.
	raw map[*html.Node]struct{}
}

// segment is either literal text or a compiled expression.
type segment struct {
	text string
	prog *vm.Program
}

// ParseFragment parses src as a fragment of a <body> element. Markdown references are resolved
// in content.
func ParseFragment(name string, src []byte, content fs.FS) (*Template, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	t := &Template{name: name, nodes: nodes, interps: map[string][]segment{}, raw: map[*html.Node]struct{}{}}
	if err := t.prepare(content); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseDocument parses src as a complete HTML document.
func ParseDocument(name string, src []byte, content fs.FS) (*Template, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	t := &Template{
		name:     name,
		document: true,
		nodes:    []*html.Node{doc},
		interps:  map[string][]segment{},
		raw:      map[*html.Node]struct{}{},
	}
	if err := t.prepare(content); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// prepare expands Markdown references and compiles every placeholder.
func (t *Template) prepare(content fs.FS) error {
	top := make([]*html.Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		if !isElement(n, markdownTag) {
			top = append(top, n)
			continue
		}
		expanded, err := t.markdownNodes(n, content)
		if err != nil {
			return err
		}
		top = append(top, expanded...)
	}
	t.nodes = top

	var errs []error
	for _, n := range t.nodes {
		walk(n, func(n *html.Node) bool {
			if _, ok := t.raw[n]; ok {
				return false
			}
			if isElement(n, markdownTag) {
				expanded, err := t.markdownNodes(n, content)
				if err != nil {
					errs = append(errs, err)
					return false
				}
				replaceNode(n, expanded)
				return false
			}
			switch n.Type {
			case html.TextNode:
				if !isRawText(n.Parent) {
					errs = append(errs, t.compile(n.Data))
				}
			case html.ElementNode:
				for _, a := range n.Attr {
					errs = append(errs, t.compile(a.Val))
				}
			}
			return true
		})
	}
	return errors.Join(errs...)
}

func (t *Template) markdownNodes(n *html.Node, content fs.FS) ([]*html.Node, error) {
	src := attr(n, "src")
	if src == "" {
		return nil, fmt.Errorf("%s: <%s> requires a src attribute", t.name, markdownTag)
	}
	if content == nil {
		return nil, fmt.Errorf("%s: no content to read %s from", t.name, src)
	}
	data, err := fs.ReadFile(content, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	nodes, err := renderMarkdown(data)
	if err != nil {
		return nil, fmt.Errorf("%s: render %s: %w", t.name, src, err)
	}
	// rendered Markdown is inserted as is, without placeholders
	for _, n := range nodes {
		t.raw[n] = struct{}{}
	}
	return nodes, nil
}

func (t *Template) compile(s string) error {
	if !strings.Contains(s, leftDelim) {
		return nil
	}
	if _, ok := t.interps[s]; ok {
		return nil
	}
	segs, err := compileInterpol(s)
	if err != nil {
		return fmt.Errorf("%s: %q: %w", t.name, s, err)
	}
	t.interps[s] = segs
	return nil
}

// Execute clones the template, evaluating every placeholder with env. A document template returns
// a single document node.
func (t *Template) Execute(env map[string]any) ([]*html.Node, error) {
	out := make([]*html.Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		c, err := t.clone(n, env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *Template) clone(n *html.Node, env map[string]any) (*html.Node, error) {
	if _, ok := t.raw[n]; ok {
		return cloneRaw(n), nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		for i, a := range n.Attr {
			v, err := t.eval(a.Val, env)
			if err != nil {
				return nil, err
			}
			c.Attr[i] = html.Attribute{Namespace: a.Namespace, Key: a.Key, Val: v}
		}
	}
	if n.Type == html.TextNode && !isRawText(n.Parent) {
		v, err := t.eval(n.Data, env)
		if err != nil {
			return nil, err
		}
		c.Data = v
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		cc, err := t.clone(ch, env)
		if err != nil {
			return nil, err
		}
		c.AppendChild(cc)
	}
	return c, nil
}

func cloneRaw(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneRaw(ch))
	}
	return c
}

func (t *Template) eval(s string, env map[string]any) (string, error) {
	segs, ok := t.interps[s]
	if !ok {
		return s, nil
	}
	var sb strings.Builder
	for _, seg := range segs {
		if seg.prog == nil {
			sb.WriteString(seg.text)
			continue
		}
		v, err := expr.Run(seg.prog, env)
		if err != nil {
			return "", fmt.Errorf("evaluate ${%s}: %w", seg.text, err)
		}
		if v != nil {
			fmt.Fprint(&sb, v)
		}
	}
	return sb.String(), nil
}

// compileInterpol splits s into literal text and ${...} expressions and compiles the latter.
// Braces nested inside an expression and braces inside string literals do not end it.
func compileInterpol(s string) ([]segment, error) {
	var segs []segment
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], leftDelim)
		if j < 0 {
			segs = append(segs, segment{text: s[i:]})
			break
		}
		if j > 0 {
			segs = append(segs, segment{text: s[i : i+j]})
		}
		start := i + j + len(leftDelim)
		end, err := scanExpr(s, start)
		if err != nil {
			return nil, err
		}
		code := strings.TrimSpace(s[start:end])
		if code == "" {
			return nil, errors.New("empty expression")
		}
		prog, err := expr.Compile(code)
		if err != nil {
			return nil, err
		}
		segs = append(segs, segment{text: code, prog: prog})
		i = end + 1
	}
	return segs, nil
}

// scanExpr returns the index of the brace closing an expression that starts at pos.
func scanExpr(s string, pos int) (int, error) {
	depth := 0
	for k := pos; k < len(s); k++ {
		switch c := s[k]; c {
		case '"', '\'', '`':
			k++
			for ; k < len(s) && s[k] != c; k++ {
				if s[k] == '\\' && c != '`' {
					k++
				}
			}
			if k >= len(s) {
				return -1, errors.New("unterminated string")
			}
		case '{':
			depth++
		case rightDelim:
			if depth == 0 {
				return k, nil
			}
			depth--
		}
	}
	return -1, errors.New("unterminated expression")
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}

func replaceNode(old *html.Node, with []*html.Node) {
	p := old.Parent
	for _, n := range with {
		p.InsertBefore(n, old)
	}
	p.RemoveChild(old)
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func isRawText(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findElement returns the first element named tag in the tree rooted at n.
func findElement(n *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if isElement(c, tag) {
			found = c
			return false
		}
		return true
	})
	return found
}
