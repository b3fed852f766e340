package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/linkorbit/internal/app"
	"github.com/pscheid92/linkorbit/internal/broadcast"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/platform/config"
)

type actionService interface {
	React(ctx context.Context, userID string, id domain.CandidateID, value int) (domain.ReactResult, error)
	Nominate(ctx context.Context, userID string, id domain.CandidateID) (domain.NominateResult, error)
	NominationCount(id domain.CandidateID) (int, error)
}

type snapshotSource interface {
	Snapshot(now time.Time) domain.Snapshot
}

type streamHub interface {
	Subscribe(initial domain.Event) (*broadcast.Subscription, error)
	ViewerCount() int
}

type schedulerControl interface {
	RequestSkip() error
	Status() app.SchedulerStatus
}

type queueDepth interface {
	Len() int
}

// Deps are the collaborators the HTTP surface talks to.
type Deps struct {
	Actions      actionService
	State        snapshotSource
	Hub          streamHub
	Scheduler    schedulerControl
	Outbox       queueDepth
	Metrics      http.Handler
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	actions   actionService
	state     snapshotSource
	hub       streamHub
	scheduler schedulerControl
	outbox    queueDepth
	metrics   http.Handler
	clock     clockwork.Clock

	upgrader     websocket.Upgrader
	streams      *streamLimiter
	sessionStore *sessions.CookieStore
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:      e,
		config:    cfg,
		actions:   deps.Actions,
		state:     deps.State,
		hub:       deps.Hub,
		scheduler: deps.Scheduler,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		clock:     clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     newCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
		},
		streams:      newStreamLimiter(cfg.MaxStreamsPerIP),
		sessionStore: setupSessionStore(cfg),
		healthChecks: deps.HealthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName        = "linkorbit-session"
	sessionKeyViewerID = "viewer_id"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
