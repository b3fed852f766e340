package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/linkorbit/internal/app"
	"github.com/pscheid92/linkorbit/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second

	schedulerCheckName = "scheduler"
)

var (
	errSchedulerStopped = errors.New("scheduler is not running")
	errSchedulerIdle    = errors.New("scheduler has not completed a tick")
)

// HealthCheck is a named dependency check run by the startup and readiness
// endpoints.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthReport struct {
	Status      string `json:"status"`
	FailedCheck string `json:"failed_check,omitempty"`
	Error       string `json:"error,omitempty"`
}

type livenessReport struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func (s *Server) registerHealthRoutes() {
	health := s.echo.Group("/health")
	health.GET("/startup", s.healthHandler(startupCheckTimeout, schedulerTicked))
	health.GET("/live", s.handleLiveness)
	health.GET("/ready", s.healthHandler(readinessCheckTimeout, schedulerRunning))
	s.echo.GET("/version", s.handleVersion)
}

func schedulerRunning(st app.SchedulerStatus) error {
	if !st.Running {
		return errSchedulerStopped
	}
	return nil
}

// schedulerTicked holds startup back until the first rotation attempt ran.
func schedulerTicked(st app.SchedulerStatus) error {
	if err := schedulerRunning(st); err != nil {
		return err
	}
	if st.Ticks == 0 {
		return errSchedulerIdle
	}
	return nil
}

func (s *Server) healthHandler(timeout time.Duration, scheduler func(app.SchedulerStatus) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		code, report := http.StatusOK, healthReport{Status: "ready"}
		if name, err := s.firstFailure(ctx, scheduler); err != nil {
			code = http.StatusServiceUnavailable
			report = healthReport{Status: "unhealthy", FailedCheck: name, Error: err.Error()}
		}

		if err := c.JSON(code, report); err != nil {
			return fmt.Errorf("failed to write health response: %w", err)
		}
		return nil
	}
}

// firstFailure consults the scheduler before any dependency and stops at the
// first check that fails.
func (s *Server) firstFailure(ctx context.Context, scheduler func(app.SchedulerStatus) error) (string, error) {
	if err := scheduler(s.scheduler.Status()); err != nil {
		return schedulerCheckName, err
	}
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return hc.Name, err
		}
	}
	return "", nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	report := livenessReport{Status: "ok", Uptime: s.clock.Since(s.startTime).Seconds()}
	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
