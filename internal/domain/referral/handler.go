package referral

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
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
	api.GET("/referrals", h.ListReferrals, staff)
	api.GET("/referrals/search", h.SearchReferrals, staff)
	api.GET("/referrals/stats", h.GetStats, staff)
	api.GET("/referrals/:id", h.GetReferral, staff)
	api.POST("/referrals", h.CreateReferral, staff)
	api.PUT("/referrals/:id", h.UpdateReferral, staff)

	api.PATCH("/referrals/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleClinician))
	api.DELETE("/referrals/:id", h.DeleteReferral, auth.RequireRole(auth.RoleAdmin))
}

func success(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, map[string]interface{}{"status": "success", "data": data})
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error, notFound string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, salesforce.ErrNotConnected):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case IsRemoteFailure(err):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateReferral(c echo.Context) error {
	var r Referral
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.CreateReferral(c.Request().Context(), &r)
	if err != nil {
		return httpError(err, "referral not found")
	}
	return success(c, http.StatusCreated, res)
}

func (h *Handler) GetReferral(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetReferral(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "referral not found")
	}
	return success(c, http.StatusOK, r)
}

var listParams = []string{"status", "urgency", "condition", "optician_id", "q", "from", "to", "sort"}

func (h *Handler) ListReferrals(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range listParams {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.ListReferrals(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, "referral not found")
	}
	if items == nil {
		items = []*Referral{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchReferrals(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchReferrals(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, "referral not found")
	}
	if items == nil {
		items = []*Referral{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err, "")
	}
	return success(c, http.StatusOK, st)
}

func (h *Handler) UpdateReferral(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var r Referral
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = id
	if err := h.svc.UpdateReferral(c.Request().Context(), &r); err != nil {
		return httpError(err, "referral not found")
	}
	updated, err := h.svc.GetReferral(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "referral not found")
	}
	return success(c, http.StatusOK, updated)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err, "referral not found")
	}
	return success(c, http.StatusOK, r)
}

func (h *Handler) DeleteReferral(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReferral(c.Request().Context(), id); err != nil {
		return httpError(err, "referral not found")
	}
	return c.NoContent(http.StatusNoContent)
}
