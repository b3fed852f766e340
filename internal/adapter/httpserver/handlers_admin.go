package httpserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/linkorbit/internal/app"
	"github.com/pscheid92/linkorbit/internal/domain"
	apperrors "github.com/pscheid92/linkorbit/internal/platform/errors"
)

type adminStatus struct {
	app.SchedulerStatus
	Viewers     int `json:"viewers"`
	OutboxDepth int `json:"outbox_depth"`
}

func (s *Server) registerAdminRoutes() {
	if s.config.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN not set, admin routes disabled")
		return
	}

	admin := s.echo.Group("/admin", s.requireAdmin())
	admin.POST("/rotation/skip", s.handleSkip)
	admin.GET("/rotation/status", s.handleStatus)
}

func (s *Server) requireAdmin() echo.MiddlewareFunc {
	token := []byte(s.config.AdminToken)
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), token) == 1, nil
		},
	})
}

func (s *Server) handleSkip(c echo.Context) error {
	if err := s.scheduler.RequestSkip(); err != nil {
		if errors.Is(err, domain.ErrNoActiveRotation) {
			return apperrors.ConflictError(err.Error(), err)
		}
		return apperrors.InternalError("failed to request skip", err)
	}

	slog.InfoContext(c.Request().Context(), "Rotation skip requested by admin")
	if err := c.JSON(http.StatusAccepted, map[string]bool{"skip_pending": true}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	status := adminStatus{
		SchedulerStatus: s.scheduler.Status(),
		Viewers:         s.hub.ViewerCount(),
	}
	if s.outbox != nil {
		status.OutboxDepth = s.outbox.Len()
	}

	if err := c.JSON(http.StatusOK, status); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
