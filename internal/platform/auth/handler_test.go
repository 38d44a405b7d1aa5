package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	handler *Handler
	users   *UserService
	issuer  *Issuer
	revoked *TokenRevocationStore
	cfg     JWTConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	revoked := NewTokenRevocationStore(time.Minute)
	t.Cleanup(revoked.Close)

	users := NewUserService(NewMemoryUserRepo())
	users.cost = bcrypt.MinCost
	if _, err := users.Register(context.Background(), "optom@example.org", "Jane Optom", "correct-horse", RoleOptician); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := JWTConfig{Issuer: "referralflow", SigningKey: testSigningKey, Revoked: revoked}
	issuer := NewIssuer(cfg, time.Hour)
	return &testEnv{
		handler: NewHandler(users, issuer, revoked, zerolog.Nop()),
		users:   users,
		issuer:  issuer,
		revoked: revoked,
		cfg:     cfg,
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	e := echo.New()
	body := `{"email":"OPTOM@example.org","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := env.handler.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status string        `json:"status"`
		Data   loginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("expected token")
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("password hash must not be serialized")
	}

	claims, err := env.issuer.Parse(resp.Data.Token)
	if err != nil {
		t.Fatalf("issued token did not parse: %v", err)
	}
	if claims.Email != "optom@example.org" {
		t.Errorf("expected email claim, got %q", claims.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"optom@example.org","password":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	expectStatus(t, env.handler.Login(c), http.StatusUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	expectStatus(t, env.handler.Login(c), http.StatusBadRequest)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.users.Authenticate(context.Background(), "optom@example.org", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	token, claims, err := env.issuer.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	e := echo.New()
	api := e.Group("/api", JWTMiddleware(env.cfg))
	env.handler.RegisterRoutes(e.Group("/api"), api)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !env.revoked.IsRevoked(claims.ID) {
		t.Fatal("expected token id to be revoked")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestProfile_LoadsUser(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.users.Authenticate(context.Background(), "optom@example.org", "correct-horse")
	token, _, _ := env.issuer.Issue(u)

	e := echo.New()
	env.handler.RegisterRoutes(e.Group("/api"), e.Group("/api", JWTMiddleware(env.cfg)))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Jane Optom") {
		t.Errorf("expected profile name in %s", rec.Body.String())
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc := NewUserService(NewMemoryUserRepo())
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "x", "long-enough", ""); err == nil {
		t.Error("expected error for invalid email")
	}
	if _, err := svc.Register(ctx, "a@b.c", "x", "short", ""); err == nil {
		t.Error("expected error for short password")
	}
	if _, err := svc.Register(ctx, "a@b.c", "x", "long-enough", "superuser"); err == nil {
		t.Error("expected error for unknown role")
	}
	u, err := svc.Register(ctx, "a@b.c", "x", "long-enough", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleOptician {
		t.Errorf("expected default role optician, got %s", u.Role)
	}
}

func TestUserService_EnsureUserIdempotent(t *testing.T) {
	svc := NewUserService(NewMemoryUserRepo())
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.EnsureUser(ctx, "admin@example.org", "Admin", "admin-password", RoleAdmin); err != nil {
			t.Fatalf("EnsureUser #%d: %v", i, err)
		}
	}
	if _, err := svc.Authenticate(ctx, "admin@example.org", "admin-password"); err != nil {
		t.Errorf("expected seeded user to authenticate: %v", err)
	}
}
