// Package views holds the pages of the tool directory and the route table dispatching to them.
package views

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dpotapov/toolsite/pages"
)

//go:embed templates content assets
var files embed.FS

var (
	templatesFS = mustSub(files, "templates")
	contentFS   = mustSub(files, "content")
)

// View names as they appear in the route table, logs and metrics.
const (
	HomeName               = "Home"
	ToolDetailName         = "Tool Detail"
	ToolComparisonName     = "Tool Comparison"
	CategoryListingName    = "Category Listing"
	AdminDashboardName     = "Admin Dashboard"
	ToolSubmissionFormName = "Tool Submission Form"
	UserFavoritesName      = "User Favorites"
	TrendingToolsName      = "Trending Tools"
	JustLaunchedName       = "Just Launched"
	DealsName              = "Deals"
	ToolDirectoryName      = "Tool Directory"
	RequestFeatureName     = "Request Feature"
	NotFoundName           = "Not Found"
)

// Page is a view backed by an embedded template. It takes no input besides the navigation scope.
type Page struct {
	Name  string
	title string
	tmpl  *Template
}

var (
	_ pages.View   = (*Page)(nil)
	_ pages.Titled = (*Page)(nil)
)

// Title is the heading text of the page, used in the document title.
func (p *Page) Title() string { return p.title }

// Render executes the page template inside a <section> named after the page.
func (p *Page) Render(s *pages.Scope) (*html.Node, error) {
	env := s.Vars()
	env["page"] = map[string]any{"name": p.Name, "title": p.title}

	nodes, err := p.tmpl.Execute(env)
	if err != nil {
		return nil, err
	}

	section := &html.Node{
		Type:     html.ElementNode,
		Data:     "section",
		DataAtom: atom.Section,
		Attr: []html.Attribute{
			{Key: "class", Val: "page page-" + slug(p.Name)},
		},
	}
	for _, n := range nodes {
		section.AppendChild(n)
	}
	return section, nil
}

// NewPage returns a factory for a page rendering the named template file.
func NewPage(name, title, file string) pages.ViewFactory {
	return func() (pages.View, error) {
		t, err := loadTemplate(file)
		if err != nil {
			return nil, err
		}
		return &Page{Name: name, title: title, tmpl: t}, nil
	}
}

func Home() pages.ViewFactory {
	return NewPage(HomeName, "Discover the best tools", "home.html")
}

func ToolDetail() pages.ViewFactory {
	return NewPage(ToolDetailName, "Tool details", "tool-detail.html")
}

func ToolComparison() pages.ViewFactory {
	return NewPage(ToolComparisonName, "Compare tools", "tool-comparison.html")
}

func CategoryListing() pages.ViewFactory {
	return NewPage(CategoryListingName, "Browse categories", "category-listing.html")
}

func AdminDashboard() pages.ViewFactory {
	return NewPage(AdminDashboardName, "Admin dashboard", "admin-dashboard.html")
}

func ToolSubmissionForm() pages.ViewFactory {
	return NewPage(ToolSubmissionFormName, "Submit a tool", "tool-submission-form.html")
}

func UserFavorites() pages.ViewFactory {
	return NewPage(UserFavoritesName, "Your favorites", "favorites.html")
}

func TrendingTools() pages.ViewFactory {
	return NewPage(TrendingToolsName, "Trending tools", "trending-tools.html")
}

func JustLaunched() pages.ViewFactory {
	return NewPage(JustLaunchedName, "Just launched", "just-launched.html")
}

func Deals() pages.ViewFactory {
	return NewPage(DealsName, "Deals", "deals.html")
}

func ToolDirectory() pages.ViewFactory {
	return NewPage(ToolDirectoryName, "Tool directory", "tool-directory.html")
}

func RequestFeature() pages.ViewFactory {
	return NewPage(RequestFeatureName, "Request a feature", "request-feature.html")
}

func NotFound() pages.ViewFactory {
	return NewPage(NotFoundName, "Page not found", "not-found.html")
}

var (
	cacheMu   sync.Mutex
	templates = map[string]*Template{}
)

// loadTemplate parses an embedded page template once and caches it.
func loadTemplate(file string) (*Template, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if t, ok := templates[file]; ok {
		return t, nil
	}
	src, err := fs.ReadFile(templatesFS, file)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	t, err := ParseFragment(file, src, contentFS)
	if err != nil {
		return nil, err
	}
	templates[file] = t
	return t, nil
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
