package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	RecordID   string
	Action     string // read, create, update, delete
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedResources hold patient identifiable data.
var auditedResources = map[string]bool{
	"referrals":    true,
	"appointments": true,
	"salesforce":   true,
}

// Audit logs a "patient_data_access" event for every request touching
// referral or appointment data, after the handler has run.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, recordID := splitResourcePath(req.URL.Path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Resource:   resource,
				RecordID:   recordID,
				Path:       req.URL.Path,
				Method:     req.Method,
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("action", entry.Action).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResourcePath parses "/api/referrals/<uuid>/status" into
// ("referrals", "<uuid>"). The record id is empty unless it is a UUID.
func splitResourcePath(path string) (resource, recordID string) {
	if !strings.HasPrefix(path, "/api/") {
		return "", ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	resource = segments[0]
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			recordID = segments[1]
		}
	}
	return resource, recordID
}
