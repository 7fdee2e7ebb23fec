package pages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/net/html"
)

// Live session message and frame types.
const (
	MessageNavigate = "navigate"
	MessageRender   = "render"

	FrameRender = "render"
	FrameScroll = "scroll"
	FrameError  = "error"
)

// LiveMessage is a message sent by the client of a live session.
type LiveMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// LiveFrame is a message sent by the server to the client of a live session.
type LiveFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
	View   string `json:"view,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	HTML   string `json:"html,omitempty"`
	Top    *int   `json:"top,omitempty"`
	Error  string `json:"error,omitempty"`
}

// liveSession is the state of one connected live client. All messages are handled by a single
// loop, so a navigation completes (match, mount, render frame, scroll frame) before the next
// message is looked at.
type liveSession struct {
	id      uuid.UUID
	h       *Handler
	ws      *websocket.Conn
	req     *RequestArg
	current *Navigation
	logger  *slog.Logger
}

func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request) error {
	if h.Router == nil {
		return errors.New("handler has no router")
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	limit := h.LiveReadLimit
	if limit <= 0 {
		limit = defaultLiveReadLimit
	}
	ws.SetReadLimit(limit)

	s := &liveSession{
		id:  uuid.New(),
		h:   h,
		ws:  ws,
		req: NewRequestArg(r),
	}
	s.logger = h.logger.With("session", s.id)

	h.Metrics.sessionOpened()
	defer h.Metrics.sessionClosed()

	s.logger.Debug("Live session opened", "path", r.URL.Path)
	defer s.logger.Debug("Live session closed")

	return s.run(r.Context())
}

func (s *liveSession) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.unmount()

	msgs := make(chan LiveMessage)
	done := make(chan error, 1)

	go func() {
		for {
			_, data, err := s.ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					err = nil
				} else {
					err = fmt.Errorf("read websocket message: %w", err)
				}
				done <- err // stop the session loop
				return
			}

			var msg LiveMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				msg = LiveMessage{}
			}

			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case msg := <-msgs:
			if err := s.handle(ctx, msg); err != nil {
				return err
			}
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// handle processes one client message. Only transport errors are returned; a bad message is
// answered with an error frame and the session continues.
func (s *liveSession) handle(ctx context.Context, msg LiveMessage) error {
	switch msg.Type {
	case MessageNavigate:
		return s.navigate(ctx, msg.Path)
	case MessageRender:
		return s.rerender()
	case "":
		return s.writeFrame(LiveFrame{Type: FrameError, Error: "malformed message"})
	default:
		return s.writeFrame(LiveFrame{Type: FrameError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *liveSession) navigate(ctx context.Context, location string) error {
	u, err := url.Parse(location)
	if err != nil || u.IsAbs() || u.Path == "" || u.Path[0] != '/' {
		return s.writeFrame(LiveFrame{Type: FrameError, Path: location, Error: ErrInvalidPath.Error()})
	}

	// the previous view is gone before the next one mounts
	s.unmount()

	sc := ScrollerFunc(func(ctx context.Context, nav *Navigation) error {
		// the render frame goes out first so the client has mounted the view when it scrolls
		if err := s.writeRender(nav, nav.Node); err != nil {
			return err
		}
		top := 0
		return s.writeFrame(LiveFrame{Type: FrameScroll, ID: nav.ID.String(), Top: &top})
	})

	nav, err := s.h.Router.Navigate(ctx, u.Path, s.req.withURL(u), sc)
	if err != nil {
		if !errors.Is(err, ErrInvalidPath) {
			return err
		}
		return s.writeFrame(LiveFrame{Type: FrameError, Path: location, Error: err.Error()})
	}
	s.current = nav
	return nil
}

func (s *liveSession) rerender() error {
	if s.current == nil {
		return s.writeFrame(LiveFrame{Type: FrameError, Error: "nothing to render"})
	}
	n, err := s.current.Rerender()
	if err != nil && n == nil {
		return s.writeFrame(LiveFrame{Type: FrameError, Path: s.current.Path, Error: err.Error()})
	}
	return s.writeRender(s.current, n)
}

func (s *liveSession) writeRender(nav *Navigation, n *html.Node) error {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}
	title := nav.Title()
	if t, ok := s.h.Shell.(DocumentTitler); ok {
		title = t.DocumentTitle(nav)
	}
	return s.writeFrame(LiveFrame{
		Type:   FrameRender,
		ID:     nav.ID.String(),
		Path:   nav.Path,
		View:   nav.Route.Name,
		Title:  title,
		Status: nav.StatusCode(),
		HTML:   buf.String(),
	})
}

func (s *liveSession) writeFrame(f LiveFrame) error {
	if s.h.LiveWriteTimeout > 0 {
		if err := s.ws.SetWriteDeadline(time.Now().Add(s.h.LiveWriteTimeout)); err != nil {
			return err
		}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

func (s *liveSession) unmount() {
	if s.current == nil {
		return
	}
	if err := s.current.Close(); err != nil {
		s.logger.Warn("Close navigation", "id", s.current.ID, "error", err)
	}
	s.current = nil
}
