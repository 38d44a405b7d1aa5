package appointment

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
	role := auth.RequireRole(auth.RoleClinician)
	api.GET("/appointments", h.ListAppointments, role)
	api.GET("/appointments/today", h.Today, role)
	api.GET("/appointments/:id", h.GetAppointment, role)
	api.POST("/appointments", h.CreateAppointment, role)
	api.PUT("/appointments/:id", h.UpdateAppointment, role)
	api.PATCH("/appointments/:id/status", h.UpdateStatus, role)
	api.DELETE("/appointments/:id", h.DeleteAppointment, role)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "appointment or referral not found")
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrTerminalStatus):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func ok(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, map[string]interface{}{"status": "success", "data": data})
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"date", "from", "to", "status", "type", "referral_id", "q"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.ListAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Today(c echo.Context) error {
	date, items, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"date":         date,
		"appointments": items,
		"count":        len(items),
	})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = id
	if err := h.svc.UpdateAppointment(c.Request().Context(), &a); err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
