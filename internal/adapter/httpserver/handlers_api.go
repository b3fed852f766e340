package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/linkorbit/internal/broadcast"
	"github.com/pscheid92/linkorbit/internal/domain"
	apperrors "github.com/pscheid92/linkorbit/internal/platform/errors"
)

type reactRequest struct {
	Value int `json:"value"`
}

type reactResponse struct {
	CandidateID      domain.CandidateID `json:"candidate_id"`
	Value            int                `json:"value"`
	TimeRemainingSec int                `json:"time_remaining_sec"`
	SkipPending      bool               `json:"skip_pending"`
}

type nominateResponse struct {
	CandidateID domain.CandidateID `json:"candidate_id"`
	Nominations int                `json:"nominations"`
}

func (s *Server) registerAPIRoutes() {
	rateLimiter := newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst)

	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/api/now", s.handleState)
	s.echo.POST("/api/candidates/:id/react", s.handleReact, rateLimiter, s.requireViewer)
	s.echo.POST("/api/candidates/:id/nominate", s.handleNominate, rateLimiter, s.requireViewer)
	s.echo.GET("/api/candidates/:id/nominations", s.handleNominations)
}

func (s *Server) handleState(c echo.Context) error {
	msg := broadcast.NewStateMessage(s.state.Snapshot(s.clock.Now()))
	if err := c.JSON(http.StatusOK, msg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReact(c echo.Context) error {
	id, err := candidateParam(c)
	if err != nil {
		return err
	}

	var req reactRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	result, err := s.actions.React(c.Request().Context(), viewerID(c), id, req.Value)
	if err != nil {
		return actionError(err, id)
	}

	response := reactResponse{
		CandidateID:      result.CandidateID,
		Value:            result.Value,
		TimeRemainingSec: broadcast.Seconds(result.Remaining),
		SkipPending:      result.SkipPending,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleNominate(c echo.Context) error {
	id, err := candidateParam(c)
	if err != nil {
		return err
	}

	result, err := s.actions.Nominate(c.Request().Context(), viewerID(c), id)
	if err != nil {
		return actionError(err, id)
	}

	response := nominateResponse{CandidateID: result.CandidateID, Nominations: result.Nominations}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleNominations(c echo.Context) error {
	id, err := candidateParam(c)
	if err != nil {
		return err
	}

	count, err := s.actions.NominationCount(id)
	if err != nil {
		return actionError(err, id)
	}

	response := nominateResponse{CandidateID: id, Nominations: count}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func candidateParam(c echo.Context) (domain.CandidateID, error) {
	raw := c.Param("id")
	id, err := domain.ParseCandidateID(raw)
	if err != nil {
		return 0, apperrors.ValidationError("invalid candidate id").WithField("candidate_id", raw)
	}
	return id, nil
}

// actionError maps domain rejections onto client-facing error types.
func actionError(err error, id domain.CandidateID) error {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return apperrors.RateLimitedError("reaction cooldown active", cooldown.Remaining, err)
	case errors.Is(err, domain.ErrInvalidValue), errors.Is(err, domain.ErrInvalidCandidateID):
		return apperrors.ValidationError(err.Error()).WithField("candidate_id", int64(id))
	case errors.Is(err, domain.ErrNotFeatured),
		errors.Is(err, domain.ErrNotASatellite),
		errors.Is(err, domain.ErrNoActiveRotation):
		return apperrors.ConflictError(err.Error(), err).WithField("candidate_id", int64(id))
	default:
		return apperrors.InternalError("failed to apply action", err).WithField("candidate_id", int64(id))
	}
}
