// Package system serves the unauthenticated /health, /status and /config
// endpoints.
package system

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kalanithib94/eyeDocs-KTP/internal/config"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

// DBChecker pings the database. *db.Checker satisfies it.
type DBChecker interface {
	Check(ctx context.Context) (*db.PoolStats, error)
}

// CRMStatus reports the Salesforce connection without contacting it.
type CRMStatus interface {
	Status() *salesforce.ConnectionStatus
}

// Endpoint is one row of the public endpoint table.
type Endpoint struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// PublicConfig is everything /config publishes besides the app identity.
// Options holds the select-list values keyed by field name.
type PublicConfig struct {
	Options   map[string]interface{}
	Endpoints []Endpoint
}

type Handler struct {
	cfg     *config.Config
	db      DBChecker
	crm     CRMStatus
	public  PublicConfig
	started time.Time
	now     func() time.Time
}

func NewHandler(cfg *config.Config, checker DBChecker, crm CRMStatus, public PublicConfig) *Handler {
	return &Handler{
		cfg:     cfg,
		db:      checker,
		crm:     crm,
		public:  public,
		started: time.Now(),
		now:     time.Now,
	}
}

// RegisterRoutes mounts the handlers on the public group. The paths are also
// listed in auth's public path set.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.GET("/health", h.Health)
	public.GET("/status", h.Status)
	public.GET("/config", h.Config)
}

// Health pings the database and returns 503 when the ping fails. A
// disconnected CRM does not affect the result.
func (h *Handler) Health(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.cfg.AppVersion,
		"uptime":    h.now().Sub(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK

	stats, err := h.db.Check(c.Request().Context())
	database := map[string]interface{}{"status": "connected", "pool": stats}
	if err != nil {
		database["status"] = "unreachable"
		database["error"] = err.Error()
		body["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	body["database"] = database

	if h.crm != nil {
		st := h.crm.Status()
		body["salesforce"] = map[string]interface{}{"connected": st.Connected, "mode": st.Mode}
	}
	return c.JSON(code, body)
}

func (h *Handler) Status(c echo.Context) error {
	var sf *salesforce.ConnectionStatus
	if h.crm != nil {
		sf = h.crm.Status()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"app":         h.cfg.AppName,
			"version":     h.cfg.AppVersion,
			"environment": h.cfg.Env,
			"salesforce":  sf,
		},
	})
}

// validationRules mirrors the limits enforced by the services so clients can
// validate before submitting.
func validationRules() map[string]interface{} {
	return map[string]interface{}{
		"max_name_length":           validation.MaxNameLength,
		"max_clinical_notes_length": validation.MaxClinicalNotesLength,
		"min_clinical_notes_length": validation.MinClinicalNotesLength,
		"email_pattern":             validation.EmailPattern.String(),
		"phone_pattern":             validation.PhonePattern.String(),
		"nhs_number_pattern":        validation.NHSNumberPattern.String(),
	}
}

func (h *Handler) Config(c echo.Context) error {
	endpoints := h.public.Endpoints
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"app_name":    h.cfg.AppName,
			"version":     h.cfg.AppVersion,
			"environment": h.cfg.Env,
			"features":    h.cfg.Features(),
			"validation":  validationRules(),
			"options":     h.public.Options,
			"endpoints":   endpoints,
		},
	})
}
