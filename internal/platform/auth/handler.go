package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	users   *UserService
	issuer  *Issuer
	revoked *TokenRevocationStore
	logger  zerolog.Logger
}

func NewHandler(users *UserService, issuer *Issuer, revoked *TokenRevocationStore, logger zerolog.Logger) *Handler {
	return &Handler{users: users, issuer: issuer, revoked: revoked, logger: logger}
}

// RegisterRoutes mounts /auth/login on the public group and the token
// endpoints on the authenticated group.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/login", h.Login)

	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/validate", h.Validate)
	api.POST("/auth/validate", h.Validate)
	api.GET("/auth/profile", h.Profile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	User      *User  `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	u, err := h.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Warn().Str("email", req.Email).Str("remote_ip", c.RealIP()).Msg("login failed")
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	token, claims, err := h.issuer.Issue(u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}

	h.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user logged in")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": loginResponse{
			Token:     token,
			ExpiresAt: claims.ExpiresAt.Unix(),
			User:      u,
		},
	})
}

func (h *Handler) Logout(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims != nil && claims.ID != "" && claims.ExpiresAt != nil {
		h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "logged out",
	})
}

func (h *Handler) Validate(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	data := map[string]interface{}{
		"valid":   true,
		"user_id": claims.Subject,
		"roles":   claims.Roles,
	}
	if claims.ExpiresAt != nil {
		data["expires_at"] = claims.ExpiresAt.Unix()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": data})
}

func (h *Handler) Profile(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		// Dev users have no stored record.
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"id": claims.Subject, "name": claims.Name, "roles": claims.Roles},
		})
	}

	u, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "success", "data": u})
}
