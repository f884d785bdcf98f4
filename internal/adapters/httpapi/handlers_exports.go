package httpapi

import (
	"fmt"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"inventario/internal/adapters/reports"
	"inventario/pkg/domain"
)

type exportRequest struct {
	Kind    reports.Kind     `json:"kind" validate:"required,oneof=inventory history"`
	Formats []reports.Format `json:"formats" validate:"omitempty,dive,oneof=xlsx csv"`
}

func (s *Server) createExport(c echo.Context) error {
	var req exportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	record, err := s.exports.Enqueue(c.Request().Context(), reports.Input{
		Kind:        req.Kind,
		Formats:     req.Formats,
		RequestedBy: actorOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusAccepted, "export queued", record)
}

func (s *Server) getExport(c echo.Context) error {
	id := c.Param("id")
	record, ok := s.exports.Get(id)
	if !ok {
		return domain.NotFoundError{Entity: reports.EntityExport, Name: id}
	}
	return success(c, http.StatusOK, "export", record)
}

func (s *Server) downloadArtifact(c echo.Context) error {
	format := reports.Format(c.Param("format"))
	if !format.Valid() {
		return badRequest("unsupported format %q", format)
	}
	artifact, body, err := s.exports.Open(c.Request().Context(), c.Param("id"), format)
	if err != nil {
		return err
	}
	defer body.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", path.Base(artifact.Key)))
	return c.Stream(http.StatusOK, artifact.ContentType, body)
}
