package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"inventario/internal/core"
	"inventario/pkg/domain"
)

type createEquipmentRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	SerialNumber string          `json:"serial_number" validate:"max=64"`
	Category     domain.Category `json:"category" validate:"omitempty,category"`
	Status       domain.Status   `json:"status" validate:"omitempty,status"`
	Location     string          `json:"location"`
	ParentID     *int64          `json:"parent_id" validate:"omitempty,gt=0"`
	Description  string          `json:"description"`
	Notes        string          `json:"notes" validate:"max=300"`
}

type patchEquipmentRequest struct {
	Name         *string          `json:"name" validate:"omitempty,max=200"`
	SerialNumber *string          `json:"serial_number" validate:"omitempty,max=64"`
	Category     *domain.Category `json:"category" validate:"omitempty,category"`
	Status       *domain.Status   `json:"status" validate:"omitempty,status"`
	Description  *string          `json:"description"`
	Notes        *string          `json:"notes" validate:"omitempty,max=300"`
	Location     *string          `json:"location"`
	ParentID     *int64           `json:"parent_id" validate:"omitempty,gt=0"`
	Detach       bool             `json:"detach"`
}

// mutationResult pairs a written record with the rule warnings of its commit.
type mutationResult struct {
	Record   any                `json:"record"`
	Warnings []domain.Violation `json:"warnings,omitempty"`
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return badRequest("malformed request body")
	}
	return c.Validate(dst)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", c.Param("id"))
	}
	return id, nil
}

func confirmed(c echo.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return ok
}

func (s *Server) listEquipment(c echo.Context) error {
	category := domain.Category(c.QueryParam("category"))
	if category != "" && category != domain.CategoryAll && !category.Valid() {
		return badRequest("unknown category %q", category)
	}
	state := core.NewSessionState()
	state.Search = c.QueryParam("search")
	if category != "" {
		state.Category = category
	}
	view := core.BuildView(state, s.svc.Inventory())
	return success(c, http.StatusOK, "equipment", view.Rows)
}

func (s *Server) getEquipment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	detail, err := s.svc.GetEquipment(id)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "equipment", detail)
}

func (s *Server) scanEquipment(c echo.Context) error {
	detail, err := s.svc.LookupSerial(c.Param("serial"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "equipment", detail)
}

func (s *Server) createEquipment(c echo.Context) error {
	var req createEquipmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, result, err := s.svc.CreateEquipment(c.Request().Context(), core.NewEquipment{
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Category:     req.Category,
		Status:       req.Status,
		Location:     req.Location,
		ParentID:     req.ParentID,
		Description:  req.Description,
		Notes:        req.Notes,
		Actor:        actorOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, "equipment created", mutationResult{Record: item, Warnings: result.Warnings()})
}

func (s *Server) updateEquipment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req patchEquipmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, result, err := s.svc.UpdateEquipment(c.Request().Context(), id, core.EquipmentPatch{
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Category:     req.Category,
		Status:       req.Status,
		Description:  req.Description,
		Notes:        req.Notes,
		Location:     req.Location,
		ParentID:     req.ParentID,
		Detach:       req.Detach,
		Actor:        actorOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "equipment updated", mutationResult{Record: item, Warnings: result.Warnings()})
}

func (s *Server) deleteEquipment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.svc.DeleteEquipment(c.Request().Context(), id, confirmed(c), actorOf(c)); err != nil {
		return err
	}
	return success(c, http.StatusOK, "equipment deleted", nil)
}
