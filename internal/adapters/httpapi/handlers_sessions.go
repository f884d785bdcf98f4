package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inventario/internal/core"
	"inventario/pkg/domain"
)

type sessionView struct {
	ID string `json:"id"`
	core.View
}

type sessionTransferRequest struct {
	Destination string `json:"destination"`
	Confirm     bool   `json:"confirm"`
}

func (s *Server) viewOf(id string, state core.SessionState) sessionView {
	return sessionView{ID: id, View: core.BuildView(state, s.svc.Inventory())}
}

func (s *Server) createSession(c echo.Context) error {
	id, state := s.sessions.Create()
	return success(c, http.StatusCreated, "session created", s.viewOf(id, state))
}

func (s *Server) getSession(c echo.Context) error {
	id := c.Param("id")
	state, ok := s.sessions.Get(id)
	if !ok {
		return domain.NotFoundError{Entity: core.EntitySession, Name: id}
	}
	return success(c, http.StatusOK, "session", s.viewOf(id, state))
}

func (s *Server) applySessionAction(c echo.Context) error {
	var action core.Action
	if err := c.Bind(&action); err != nil {
		return badRequest("malformed request body")
	}
	id := c.Param("id")
	state, err := s.sessions.Apply(id, action, s.svc.Inventory())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "session updated", s.viewOf(id, state))
}

func (s *Server) transferSession(c echo.Context) error {
	var req sessionTransferRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("malformed request body")
	}
	id := c.Param("id")
	record, result, err := s.svc.TransferCart(c.Request().Context(), s.sessions, id, core.TransferRequest{
		Destination: req.Destination,
		UserEmail:   actorOf(c),
		DeviceInfo:  deviceOf(c),
		Confirmed:   req.Confirm,
	})
	if err != nil {
		return err
	}
	state, _ := s.sessions.Get(id)
	return success(c, http.StatusOK, "transfer committed", map[string]any{
		"record":   record,
		"warnings": result.Warnings(),
		"session":  s.viewOf(id, state),
	})
}
