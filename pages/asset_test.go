package pages

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

var versionedJS = regexp.MustCompile(`^/assets/js/app\.[0-9a-f]{16}\.js$`)

func TestAssetRegistry_AddAsset(t *testing.T) {
	assets := NewAssetRegistry("/assets/", nil)
	require.Equal(t, "/assets", assets.BasePath())

	require.NoError(t, assets.AddAsset("app.js", []byte("console.log('Hello, world!');")))

	first := assets.AssetPath("app.js")
	require.Regexp(t, versionedJS, first)
	assertAssetContent(t, assets, first, "console.log('Hello, world!');")

	// Add more content to the app.js asset
	require.NoError(t, assets.AddAsset("app.js", []byte("console.log('Lorem ipsum dolor sit amet');")))

	second := assets.AssetPath("app.js")
	require.Regexp(t, versionedJS, second)
	require.NotEqual(t, first, second)
	assertAssetContent(t, assets, second, "console.log('Hello, world!');\nconsole.log('Lorem ipsum dolor sit amet');")

	// There should be no asset anymore with previous hash
	assertAssetNotFound(t, assets, first)

	// The non-hashed name should work
	assertAssetContent(t, assets, "/assets/js/app.js", "console.log('Hello, world!');\nconsole.log('Lorem ipsum dolor sit amet');")

	// When adding the same content again, there will be no changes to the asset
	require.NoError(t, assets.AddAsset("app.js", []byte("console.log('Hello, world!');")))
	require.Equal(t, second, assets.AssetPath("app.js"))
}

func TestAssetRegistry_UnknownType(t *testing.T) {
	assets := NewAssetRegistry("/assets", nil)
	require.Error(t, assets.AddAsset("logo.png", []byte{0x89}))
	require.Equal(t, "", assets.AssetPath("logo.png"))
	require.Equal(t, "", assets.AssetPath("missing.css"))
	require.Nil(t, assets.LinkNode("missing.css"))
}

func TestAssetRegistry_LinkNode(t *testing.T) {
	assets := NewAssetRegistry("/assets", nil)
	require.NoError(t, assets.AddAsset("site.css", []byte("body { color: red; }")))
	require.NoError(t, RegisterLiveClient(assets))

	tests := []struct {
		name string
		want string
	}{
		{"site.css", `<link rel="stylesheet" href="` + assets.AssetPath("site.css") + `"/>`},
		{LiveClientAsset, `<script src="` + assets.AssetPath(LiveClientAsset) + `" defer=""></script>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := assets.LinkNode(tt.name)
			require.NotNil(t, n)
			var buf bytes.Buffer
			require.NoError(t, html.Render(&buf, n))
			require.Equal(t, tt.want, buf.String())
		})
	}
}

func TestAssetRegistry_Caching(t *testing.T) {
	assets := NewAssetRegistry("/assets", nil)
	require.NoError(t, assets.AddAsset("site.css", []byte("body { color: red; }")))
	versioned := assets.AssetPath("site.css")

	rr := httptest.NewRecorder()
	assets.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, versioned, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/css; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=31536000, immutable", rr.Header().Get("Cache-Control"))
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr = httptest.NewRecorder()
	assets.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil))
	require.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
	require.Equal(t, etag, rr.Header().Get("ETag"))

	req := httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	assets.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotModified, rr.Code)
	require.Empty(t, rr.Body.String())

	rr = httptest.NewRecorder()
	assets.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, versioned, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssetRegistry_Fallback(t *testing.T) {
	assets := NewAssetRegistry("/assets", nil)
	require.NoError(t, assets.AddAsset("site.css", []byte("body { color: red; }")))

	h := assets.Fallback(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "next "+r.URL.Path)
	}))

	assertAssetContent(t, h, assets.AssetPath("site.css"), "body { color: red; }")

	for _, p := range []string{"/assets/css/missing.css", "/assets/xyz", "/assets/js/site.css"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusTeapot, rr.Code, p)
		require.Equal(t, "next "+p, rr.Body.String())
	}
}

func TestLiveClientScript(t *testing.T) {
	script := string(liveClientScript)
	tests := []struct {
		name string
		want string
	}{
		{"queued navigation loads the page when the socket closes", "location.replace(path)"},
		{"history pop reloads without a socket", "location.reload()"},
		{"render frame updates the document title", "document.title = frame.title"},
		{"render frame swaps the mount", "current.outerHTML = frame.html"},
		{"scroll frame resets the position", "window.scrollTo(0, frame.top || 0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Contains(t, script, tt.want)
		})
	}

	onclose := script[strings.Index(script, "ws.onclose"):]
	onclose = onclose[:strings.Index(onclose, "};")]
	require.Contains(t, onclose, "if (pending)")
	require.Contains(t, onclose, "location.replace(path)")

	popstate := script[strings.Index(script, `"popstate"`):]
	require.Less(t, strings.Index(popstate, "ws.readyState > 1"), strings.Index(popstate, "navigate("))
}

func assertAssetContent(t *testing.T, h http.Handler, path, want string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code, path)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	require.Equal(t, want, string(body))
}

func assertAssetNotFound(t *testing.T, h http.Handler, path string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusNotFound, rr.Code, path)
}
