package pages

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/html"
)

// Shell wraps a rendered navigation into a complete document: head, site navigation, scripts.
// Shell failures are not contained by the navigation's boundary.
type Shell interface {
	Wrap(nav *Navigation) (*html.Node, error)
}

// ShellFunc adapts a function to the Shell interface.
type ShellFunc func(nav *Navigation) (*html.Node, error)

func (f ShellFunc) Wrap(nav *Navigation) (*html.Node, error) { return f(nav) }

// DocumentTitler is implemented by shells that build the document title. Live sessions send it
// with every render frame so the title follows the mounted view.
type DocumentTitler interface {
	DocumentTitle(nav *Navigation) string
}

// Handler serves page navigations over HTTP. A plain request performs one navigation and responds
// with the rendered document; a WebSocket upgrade request starts a live navigation session.
type Handler struct {
	// Router dispatches paths to views. It is required.
	Router *Router

	// Shell wraps the rendered navigation into a document. If not set, only the mount node is
	// written.
	Shell Shell

	// Live enables live navigation sessions over WebSocket.
	Live bool

	// LiveReadLimit is the maximum size in bytes of a message read from a live session.
	// If zero, a limit of 4KiB is used.
	LiveReadLimit int64

	// LiveWriteTimeout bounds every frame write of a live session. If zero, writes have no deadline.
	LiveWriteTimeout time.Duration

	// CheckOrigin validates the Origin header of live session upgrades. If not set, the gorilla
	// default same-origin check applies.
	CheckOrigin func(r *http.Request) bool

	// OnError is a callback that is called when an error occurs while serving a request.
	// View failures are contained and do not reach it.
	OnError func(*http.Request, error)

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// Metrics records live session metrics. Navigation metrics are recorded by the Router.
	Metrics *Metrics

	// init is used to initialize the handler only once.
	init sync.Once

	// logger is a private logger instance that is used to log internal events.
	logger *slog.Logger

	upgrader websocket.Upgrader
}

const defaultLiveReadLimit = 4 << 10

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = discardLogger()
		if h.Logger != nil {
			h.logger = h.Logger
		}
		h.upgrader = websocket.Upgrader{CheckOrigin: h.CheckOrigin}
	})

	if h.Live && websocket.IsWebSocketUpgrade(r) {
		if err := h.serveLive(w, r); err != nil {
			h.logger.Error("Serve live session", "url", r.URL.Redacted(), "error", err)
			if h.OnError != nil {
				h.OnError(r, err)
			}
		}
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if err := h.handleRequest(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		h.logger.Error("Serve HTTP request", "url", r.URL.Redacted(), "error", err)

		if h.OnError != nil {
			h.OnError(r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	if h.Router == nil {
		return fmt.Errorf("handler has no router")
	}

	nav, err := h.Router.Navigate(r.Context(), r.URL.Path, NewRequestArg(r), DocumentScroller)
	if err != nil {
		return err
	}
	defer func() {
		if err := nav.Close(); err != nil {
			h.logger.Warn("Close navigation", "id", nav.ID, "error", err)
		}
	}()

	var buf bytes.Buffer
	if err := h.renderDocument(&buf, nav); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nav.StatusCode())

	if r.Method == http.MethodHead {
		return nil
	}

	_, err = buf.WriteTo(w)
	// the status line is already out; nothing left but logging
	if err != nil {
		h.logger.Warn("Write response", "url", r.URL.Redacted(), "error", err)
	}
	return nil
}

func (h *Handler) renderDocument(w io.Writer, nav *Navigation) error {
	doc := nav.Node
	if h.Shell != nil {
		var err error
		doc, err = h.Shell.Wrap(nav)
		if err != nil {
			return fmt.Errorf("render shell: %w", err)
		}
	}
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
