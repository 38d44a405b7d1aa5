package analytics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

type Handler struct {
	svc         *Service
	forecasting bool
}

// NewHandler returns the analytics handler. Forecast answers 404 unless
// forecasting is enabled.
func NewHandler(svc *Service, forecasting bool) *Handler {
	return &Handler{svc: svc, forecasting: forecasting}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RoleClinician)
	api.GET("/analytics/dashboard", h.Dashboard, role)
	api.GET("/analytics/trends", h.Trends, role)
	api.POST("/analytics/forecast", h.Forecast, role)
}

func toHTTPError(err error) error {
	if validation.IsValidation(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": d})
}

func (h *Handler) Trends(c echo.Context) error {
	months := 0
	if raw := c.QueryParam("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "months must be an integer")
		}
		months = n
	}
	points, err := h.svc.Trends(c.Request().Context(), months)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": points})
}

func (h *Handler) Forecast(c echo.Context) error {
	if !h.forecasting {
		return echo.NewHTTPError(http.StatusNotFound, "forecasting is not enabled")
	}
	var req struct {
		Periods int `json:"periods"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	f, err := h.svc.Forecast(c.Request().Context(), req.Periods)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": f})
}
