package optician

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
	"github.com/kalanithib94/eyeDocs-KTP/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(auth.RoleOptician, auth.RoleClinician)
	api.GET("/opticians", h.ListOpticians, staff)
	api.GET("/opticians/:id", h.GetOptician, staff)

	admin := auth.RequireRole(auth.RoleAdmin)
	api.POST("/opticians", h.CreateOptician, admin)
	api.PUT("/opticians/:id", h.UpdateOptician, admin)
	api.DELETE("/opticians/:id", h.DeleteOptician, admin)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "optician not found")
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) CreateOptician(c echo.Context) error {
	var o Optician
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateOptician(c.Request().Context(), &o); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"status": "success", "data": o})
}

func (h *Handler) GetOptician(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOptician(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": o})
}

func (h *Handler) ListOpticians(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"active", "postcode", "q"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.ListOpticians(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Optician{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateOptician(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var o Optician
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o.ID = id
	if err := h.svc.UpdateOptician(c.Request().Context(), &o); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": o})
}

func (h *Handler) DeleteOptician(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteOptician(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
