package referral

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
)

// Connection is the part of *salesforce.Adapter exposed over HTTP.
type Connection interface {
	Status() *salesforce.ConnectionStatus
	TestConnection(ctx context.Context, user *salesforce.Settings) *salesforce.ConnectionStatus
	GetReferrals(ctx context.Context) (*salesforce.ReferralList, error)
}

// SalesforceHandler serves /salesforce/*.
type SalesforceHandler struct {
	svc  *Service
	conn Connection
}

func NewSalesforceHandler(svc *Service, conn Connection) *SalesforceHandler {
	return &SalesforceHandler{svc: svc, conn: conn}
}

func (h *SalesforceHandler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(auth.RoleOptician, auth.RoleClinician)
	api.GET("/salesforce/status", h.Status, staff)
	api.GET("/salesforce/referrals", h.ListRemote, staff)
	api.POST("/salesforce/sync", h.Sync, auth.RequireRole(auth.RoleClinician))
	api.POST("/salesforce/test", h.Test, auth.RequireRole(auth.RoleAdmin))
}

type syncRequest struct {
	ReferralID string `json:"referral_id"`
	Force      bool   `json:"force"`
}

// Sync mirrors one referral when referral_id is given, otherwise every
// unsynced referral.
func (h *SalesforceHandler) Sync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	if req.ReferralID != "" {
		id, err := uuid.Parse(req.ReferralID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid referral_id")
		}
		out, err := h.svc.SyncReferral(ctx, id, req.Force)
		if err != nil {
			return httpError(err, "referral not found")
		}
		return success(c, http.StatusOK, out)
	}

	res, err := h.svc.SyncAll(ctx, req.Force)
	if res == nil {
		return httpError(err, "")
	}
	// Per-referral failures are reported in the body.
	body := map[string]interface{}{"status": "success", "data": res}
	if err != nil {
		body["status"] = "partial"
		body["errors"] = len(multierr.Errors(err))
	}
	return c.JSON(http.StatusOK, body)
}

func (h *SalesforceHandler) Status(c echo.Context) error {
	return success(c, http.StatusOK, h.conn.Status())
}

type testRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SecurityToken string `json:"security_token"`
	LoginURL      string `json:"login_url"`
}

// Test checks connectivity. Credentials in the body are used for this
// connection only and never stored.
func (h *SalesforceHandler) Test(c echo.Context) error {
	var req testRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	var user *salesforce.Settings
	if req.Username != "" {
		user = &salesforce.Settings{
			Username:      req.Username,
			Password:      req.Password,
			SecurityToken: req.SecurityToken,
			LoginURL:      req.LoginURL,
		}
	}
	return success(c, http.StatusOK, h.conn.TestConnection(c.Request().Context(), user))
}

func (h *SalesforceHandler) ListRemote(c echo.Context) error {
	list, err := h.conn.GetReferrals(c.Request().Context())
	if err != nil {
		return httpError(err, "")
	}
	return success(c, http.StatusOK, list)
}
