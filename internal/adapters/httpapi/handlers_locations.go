package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inventario/internal/core"
)

type locationRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=300"`
}

type transferRequest struct {
	IDs         []int64 `json:"ids" validate:"dive,gt=0"`
	Destination string  `json:"destination"`
	Confirm     bool    `json:"confirm"`
}

func (s *Server) listLocations(c echo.Context) error {
	return success(c, http.StatusOK, "locations", s.svc.Locations())
}

func (s *Server) upsertLocation(c echo.Context) error {
	var req locationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	loc, err := s.svc.UpsertLocation(c.Request().Context(), core.LocationInput{
		Name:    req.Name,
		Address: req.Address,
		Actor:   actorOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "location saved", loc)
}

func (s *Server) deleteLocation(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.svc.DeleteLocation(c.Request().Context(), id, confirmed(c), actorOf(c)); err != nil {
		return err
	}
	return success(c, http.StatusOK, "location deleted", nil)
}

func (s *Server) listHistory(c echo.Context) error {
	return success(c, http.StatusOK, "history", s.svc.History())
}

func (s *Server) transfer(c echo.Context) error {
	var req transferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return success(c, http.StatusOK, "nothing to transfer", nil)
	}
	record, result, err := s.svc.Transfer(c.Request().Context(), core.TransferRequest{
		IDs:         req.IDs,
		Destination: req.Destination,
		UserEmail:   actorOf(c),
		DeviceInfo:  deviceOf(c),
		Confirmed:   req.Confirm,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, "transfer committed", mutationResult{Record: record, Warnings: result.Warnings()})
}
