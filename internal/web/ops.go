package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"experimenter/internal/logging"
)

type heartbeatResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) heartbeat(c echo.Context) error {
	if err := s.dir.Ping(c.Request().Context()); err != nil {
		s.logger.Error("heartbeat database check failed", logging.Error(err))
		return c.JSON(http.StatusInternalServerError, heartbeatResponse{
			Status: "error",
			Checks: map[string]string{"database": err.Error()},
		})
	}
	return c.JSON(http.StatusOK, heartbeatResponse{
		Status: "ok",
		Checks: map[string]string{"database": "ok"},
	})
}

func (s *Server) lbHeartbeat(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) versionInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, s.version)
}
