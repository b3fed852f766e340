package httpserver

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const contextKeyViewerID = "viewerID"

// requireViewer resolves the anonymous viewer identity from the session
// cookie, issuing a fresh id on first contact.
func (s *Server) requireViewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// A cookie that fails to decode yields a new, empty session.
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			slog.DebugContext(c.Request().Context(), "Discarding unreadable session", "error", err)
		}

		viewerID, ok := session.Values[sessionKeyViewerID].(string)
		if !ok || uuid.Validate(viewerID) != nil {
			viewerID = uuid.NewString()
			session.Values[sessionKeyViewerID] = viewerID
			if err := session.Save(c.Request(), c.Response().Writer); err != nil {
				slog.WarnContext(c.Request().Context(), "Failed to save session", "error", err)
			}
		}

		c.Set(contextKeyViewerID, viewerID)
		return next(c)
	}
}

func viewerID(c echo.Context) string {
	id, _ := c.Get(contextKeyViewerID).(string)
	return id
}
