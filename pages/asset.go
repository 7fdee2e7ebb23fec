package pages

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LiveClientAsset is the asset name of the live navigation client script.
const LiveClientAsset = "live.js"

//go:embed client/live.js
var liveClientScript []byte

// RegisterLiveClient adds the live navigation client script to the registry.
func RegisterLiveClient(r *AssetRegistry) error {
	return r.AddAsset(LiveClientAsset, liveClientScript)
}

// AssetRegistry holds versioned stylesheets and scripts. Every asset is reachable at a versioned
// path derived from a hash of its content ("/assets/css/site.1a2b3c4d5e6f7a8b.css") and at its
// plain name ("/assets/css/site.css").
type AssetRegistry struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	basePath   string
	collectors map[string]*assetCollector // keyed by extension, e.g. ".css"
}

// NewAssetRegistry creates a registry serving CSS and JavaScript under basePath.
func NewAssetRegistry(basePath string, logger *slog.Logger) *AssetRegistry {
	if logger == nil {
		logger = discardLogger()
	}
	bp := strings.Trim(basePath, "/")
	if bp != "" {
		bp = "/" + bp
	}
	return &AssetRegistry{
		logger:   logger,
		basePath: bp,
		collectors: map[string]*assetCollector{
			".css": newAssetCollector(bp+"/css", "text/css; charset=utf-8"),
			".js":  newAssetCollector(bp+"/js", "application/javascript; charset=utf-8"),
		},
	}
}

// BasePath returns the URL prefix of all assets, e.g. "/assets".
func (r *AssetRegistry) BasePath() string { return r.basePath }

// AddAsset appends content to the named asset. Adding a chunk already present in the asset is a
// no-op, so registering the same content twice does not change the version.
func (r *AssetRegistry) AddAsset(name string, content []byte) error {
	c, err := r.collector(name)
	if err != nil {
		return err
	}
	c.add(name, content)
	r.logger.Debug("Add asset", "name", name, "path", c.path(name))
	return nil
}

// AssetPath returns the versioned path of the named asset, or "" if it does not exist.
func (r *AssetRegistry) AssetPath(name string) string {
	c, err := r.collector(name)
	if err != nil {
		return ""
	}
	return c.path(name)
}

// LinkNode returns the element referencing the named asset: a stylesheet <link> or a deferred
// <script>. It returns nil for unknown assets.
func (r *AssetRegistry) LinkNode(name string) *html.Node {
	p := r.AssetPath(name)
	if p == "" {
		return nil
	}
	switch path.Ext(name) {
	case ".css":
		return &html.Node{
			Type:     html.ElementNode,
			Data:     "link",
			DataAtom: atom.Link,
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: p},
			},
		}
	case ".js":
		return &html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				{Key: "src", Val: p},
				{Key: "defer", Val: ""},
			},
		}
	}
	return nil
}

// ServeHTTP serves registered assets and responds 404 to anything else.
func (r *AssetRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !r.serve(w, req) {
		http.NotFound(w, req)
	}
}

// Fallback returns a handler serving registered assets and passing every other request to next.
func (r *AssetRegistry) Fallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.serve(w, req) {
			next.ServeHTTP(w, req)
		}
	})
}

func (r *AssetRegistry) serve(w http.ResponseWriter, req *http.Request) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.collectors {
		if c.serve(w, req) {
			return true
		}
	}
	return false
}

func (r *AssetRegistry) collector(name string) (*assetCollector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[path.Ext(name)]
	if !ok {
		return nil, fmt.Errorf("no asset collector registered for type %q (asset: %s)", path.Ext(name), name)
	}
	return c, nil
}

// asset is one logical bundle, e.g. "site.css".
type asset struct {
	content   strings.Builder
	chunks    map[uint64]struct{}
	version   uint64
	servePath string
}

type assetCollector struct {
	mu          sync.RWMutex
	prefix      string
	contentType string
	assets      map[string]*asset
	byPath      map[string]string // serve path -> asset name
}

func newAssetCollector(prefix, contentType string) *assetCollector {
	return &assetCollector{
		prefix:      prefix,
		contentType: contentType,
		assets:      make(map[string]*asset),
		byPath:      make(map[string]string),
	}
}

func (c *assetCollector) add(name string, content []byte) {
	chunk := hash64(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.assets[name]
	if !ok {
		a = &asset{chunks: make(map[uint64]struct{})}
		c.assets[name] = a
	}
	if _, dup := a.chunks[chunk]; dup {
		return
	}
	a.chunks[chunk] = struct{}{}

	if a.content.Len() > 0 {
		a.content.WriteByte('\n')
	}
	a.content.Write(content)
	a.version = hash64([]byte(a.content.String()))

	ext := path.Ext(name)
	base := strings.TrimSuffix(path.Base(name), ext)
	servePath := fmt.Sprintf("%s/%s.%016x%s", c.prefix, base, a.version, ext)

	if a.servePath != "" && a.servePath != servePath {
		delete(c.byPath, a.servePath)
	}
	a.servePath = servePath
	c.byPath[servePath] = name
	c.byPath[c.prefix+"/"+name] = name
}

func (c *assetCollector) path(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.assets[name]; ok {
		return a.servePath
	}
	return ""
}

// serve writes the asset matching the request path and reports whether it did.
func (c *assetCollector) serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	c.mu.RLock()
	name, ok := c.byPath[r.URL.Path]
	var content string
	var version uint64
	if ok {
		a := c.assets[name]
		content, version = a.content.String(), a.version
	}
	c.mu.RUnlock()

	if !ok {
		return false
	}

	etag := fmt.Sprintf(`"%016x"`, version)
	w.Header().Set("Content-Type", c.contentType)
	w.Header().Set("ETag", etag)
	if r.URL.Path == c.prefix+"/"+name {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}

	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return true
	}
	_, _ = io.WriteString(w, content)
	return true
}

func hash64(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
