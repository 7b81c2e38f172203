package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"experimenter/internal/api"
	"experimenter/internal/experiments"
	"experimenter/internal/services"
)

func (s *Server) apiList(c echo.Context) error {
	ctx := c.Request().Context()
	query := c.QueryParams()
	filter := experiments.Filter{}
	if raw := query.Get("status"); raw != "" {
		status, ok := experiments.ParseStatus(raw)
		if !ok {
			return services.Wrap(services.ErrValidation, "web", "list experiments", "unknown status "+raw, nil)
		}
		filter.Status = status
	}
	if slug := query.Get("project__slug"); slug != "" {
		filter.ProjectSlug = slug
	}
	list, err := s.svc.List(ctx, filter, experiments.DefaultOrdering)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.SerializeAll(list))
}

func (s *Server) apiDetail(c echo.Context) error {
	e, err := s.svc.Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Serialize(e))
}

func (s *Server) apiAccept(c echo.Context) error {
	user, _ := currentUser(c)
	e, err := s.svc.Accept(c.Request().Context(), user, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Serialize(e))
}

func (s *Server) apiReject(c echo.Context) error {
	var body api.RejectRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return services.Wrap(services.ErrValidation, "web", "reject experiment", "invalid request body", err)
		}
	}
	user, _ := currentUser(c)
	e, err := s.svc.Reject(c.Request().Context(), user, c.Param("slug"), body.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Serialize(e))
}

func (s *Server) apiNotifications(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusOK, []api.Notification{})
	}
	pending, err := s.notifier.Pending(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.FromNotifications(pending))
}
