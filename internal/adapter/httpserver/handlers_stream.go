package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/linkorbit/internal/broadcast"
	"github.com/pscheid92/linkorbit/internal/domain"
	apperrors "github.com/pscheid92/linkorbit/internal/platform/errors"
)

const (
	sseKeepAliveInterval = 15 * time.Second
	sseWriteDeadline     = 5 * time.Second
)

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/api/stream", s.handleEventStream)
	s.echo.GET("/api/ws", s.handleWebSocket)
}

// subscribe registers a viewer whose first message is the current state.
// The returned release func frees the caller's per-IP stream slot and must
// be called once the subscription is closed.
func (s *Server) subscribe(c echo.Context) (*broadcast.Subscription, func(), error) {
	ip := c.RealIP()
	if !s.streams.acquire(ip) {
		return nil, nil, echo.NewHTTPError(http.StatusTooManyRequests, "too many open streams")
	}
	release := func() { s.streams.release(ip) }

	sub, err := s.openSubscription()
	if err != nil {
		release()
		return nil, nil, err
	}
	return sub, release, nil
}

func (s *Server) openSubscription() (*broadcast.Subscription, error) {
	snap := s.state.Snapshot(s.clock.Now())
	sub, err := s.hub.Subscribe(domain.StateEvent{Snapshot: snap})
	switch {
	case errors.Is(err, domain.ErrTooManyViewers):
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "viewer limit reached")
	case errors.Is(err, domain.ErrHubClosed):
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "server shutting down")
	case err != nil:
		return nil, apperrors.InternalError("failed to subscribe", err)
	}
	return sub, nil
}

func (s *Server) handleEventStream(c echo.Context) error {
	sub, release, err := s.subscribe(c)
	if err != nil {
		return err
	}
	defer release()
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		slog.WarnContext(c.Request().Context(), "Event stream not flushable", "error", err)
		return nil
	}

	keepAlive := s.clock.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case <-sub.Ready():
			if err := s.writeEvents(w, rc, sub.Drain()); err != nil {
				slog.DebugContext(ctx, "Event stream closed", "error", err)
				return nil
			}
		case <-keepAlive.Chan():
			if err := s.writeFrame(w, rc, []byte(": keepalive\n\n")); err != nil {
				slog.DebugContext(ctx, "Event stream closed", "error", err)
				return nil
			}
		}
	}
}

func (s *Server) writeEvents(w http.ResponseWriter, rc *http.ResponseController, msgs [][]byte) error {
	// Unsupported deadlines (e.g. test recorders) are not an error.
	_ = rc.SetWriteDeadline(s.clock.Now().Add(sseWriteDeadline))
	for _, msg := range msgs {
		frame := make([]byte, 0, len(msg)+8)
		frame = append(frame, "data: "...)
		frame = append(frame, msg...)
		frame = append(frame, "\n\n"...)
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return rc.Flush()
}

func (s *Server) writeFrame(w http.ResponseWriter, rc *http.ResponseController, frame []byte) error {
	_ = rc.SetWriteDeadline(s.clock.Now().Add(sseWriteDeadline))
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}

func (s *Server) handleWebSocket(c echo.Context) error {
	sub, release, err := s.subscribe(c)
	if err != nil {
		return err
	}
	defer release()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already answered the client.
		sub.Close()
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	broadcast.ServeWebSocket(conn, sub, s.clock)
	return nil
}
