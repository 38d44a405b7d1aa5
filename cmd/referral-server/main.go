package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kalanithib94/eyeDocs-KTP/internal/config"
	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/analytics"
	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/appointment"
	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/optician"
	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/referral"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/auth"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/middleware"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/system"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
	"github.com/kalanithib94/eyeDocs-KTP/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "referral-server",
		Short: "ReferralFlow Connect API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(salesforceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "referral-server",
	})
}

func newMigrator(pool *pgxpool.Pool, dir string) *db.Migrator {
	if dir != "" {
		return db.NewMigrator(pool, os.DirFS(dir))
	}
	return db.NewMigrator(pool, migrations.FS)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := newMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Load migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := newMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Load migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func salesforceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salesforce",
		Short: "Salesforce integration tools",
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Resolve credentials, log in and run a test query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			var user *salesforce.Settings
			if u, _ := cmd.Flags().GetString("username"); u != "" {
				p, _ := cmd.Flags().GetString("password")
				tok, _ := cmd.Flags().GetString("security-token")
				url, _ := cmd.Flags().GetString("login-url")
				user = &salesforce.Settings{Username: u, Password: p, SecurityToken: tok, LoginURL: url}
			}

			adapter := newSalesforceAdapter(cfg, logger)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			st := adapter.TestConnection(ctx, user)
			fmt.Printf("connected:  %t\nmode:       %s\nsource:     %s\n", st.Connected, st.Mode, st.Source)
			if st.UserInfo != nil {
				fmt.Printf("user id:    %s\norg id:     %s\n", st.UserInfo.UserID, st.UserInfo.OrganizationID)
			}
			if st.TestQuery != "" {
				fmt.Printf("test query: %s\n", st.TestQuery)
			}
			if st.Error != "" {
				fmt.Printf("error:      %s\n", st.Error)
			}
			if !st.Connected {
				return errors.New("salesforce connection failed; the server would run in simulation mode")
			}
			return nil
		},
	}
	testCmd.Flags().String("username", "", "Salesforce username (overrides environment)")
	testCmd.Flags().String("password", "", "Salesforce password")
	testCmd.Flags().String("security-token", "", "Salesforce security token")
	testCmd.Flags().String("login-url", "", "Salesforce login URL")
	cmd.AddCommand(testCmd)

	return cmd
}

func newSalesforceAdapter(cfg *config.Config, logger zerolog.Logger) *salesforce.Adapter {
	env := salesforce.Settings{
		Username:      cfg.SalesforceUsername,
		Password:      cfg.SalesforcePassword,
		SecurityToken: cfg.SalesforceSecurityToken,
		LoginURL:      cfg.SalesforceLoginURL,
	}
	sfLogger := logger.With().Str("component", "salesforce").Logger()
	return salesforce.NewAdapter(
		salesforce.NewResolver(env, sfLogger),
		salesforce.NewHTTPConnector(salesforce.WithAPIVersion(cfg.SalesforceAPIVersion)),
		sfLogger,
		salesforce.WithSimulationDelay(cfg.SalesforceSimulationDelay),
	)
}

// resolveSigningKey returns the configured key, or a random one outside
// production. Tokens signed with a random key do not survive a restart.
func resolveSigningKey(cfg *config.Config) ([]byte, bool, error) {
	if cfg.AuthSigningKey != "" {
		return []byte(cfg.AuthSigningKey), false, nil
	}
	if cfg.IsProduction() {
		return nil, false, errors.New("AUTH_SIGNING_KEY is required in production")
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}

// httpErrorHandler writes every error as {status:"error", message}. Validation
// errors also carry the per-field messages.
func httpErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else if he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
		}

		body := map[string]interface{}{"status": "error", "message": message}
		if he != nil && he.Internal != nil && validation.IsValidation(he.Internal) {
			body["errors"] = validation.Fields(he.Internal)
		}
		if rid, ok := c.Get("request_id").(string); ok && rid != "" {
			body["request_id"] = rid
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}

// publicConfig is what /config publishes besides app identity and features.
func publicConfig() system.PublicConfig {
	return system.PublicConfig{
		Options: map[string]interface{}{
			"referral_status":    referral.StatusOptions,
			"urgency":            referral.UrgencyOptions,
			"condition":          referral.ConditionOptions,
			"appointment_type":   appointment.TypeOptions,
			"appointment_status": appointment.StatusOptions,
		},
		Endpoints: []system.Endpoint{
			{Name: "AUTH_LOGIN", Method: http.MethodPost, Path: "/api/auth/login"},
			{Name: "AUTH_LOGOUT", Method: http.MethodPost, Path: "/api/auth/logout"},
			{Name: "AUTH_VALIDATE", Method: http.MethodGet, Path: "/api/auth/validate"},
			{Name: "AUTH_PROFILE", Method: http.MethodGet, Path: "/api/auth/profile"},
			{Name: "REFERRALS", Method: http.MethodGet, Path: "/api/referrals"},
			{Name: "REFERRALS_CREATE", Method: http.MethodPost, Path: "/api/referrals"},
			{Name: "REFERRALS_SEARCH", Method: http.MethodGet, Path: "/api/referrals/search"},
			{Name: "REFERRALS_STATS", Method: http.MethodGet, Path: "/api/referrals/stats"},
			{Name: "REFERRAL", Method: http.MethodGet, Path: "/api/referrals/{id}"},
			{Name: "REFERRAL_STATUS", Method: http.MethodPatch, Path: "/api/referrals/{id}/status"},
			{Name: "OPTICIANS", Method: http.MethodGet, Path: "/api/opticians"},
			{Name: "APPOINTMENTS", Method: http.MethodGet, Path: "/api/appointments"},
			{Name: "APPOINTMENTS_TODAY", Method: http.MethodGet, Path: "/api/appointments/today"},
			{Name: "ANALYTICS_DASHBOARD", Method: http.MethodGet, Path: "/api/analytics/dashboard"},
			{Name: "ANALYTICS_TRENDS", Method: http.MethodGet, Path: "/api/analytics/trends"},
			{Name: "ANALYTICS_FORECAST", Method: http.MethodPost, Path: "/api/analytics/forecast"},
			{Name: "SALESFORCE_SYNC", Method: http.MethodPost, Path: "/api/salesforce/sync"},
			{Name: "SALESFORCE_STATUS", Method: http.MethodGet, Path: "/api/salesforce/status"},
			{Name: "SALESFORCE_TEST", Method: http.MethodPost, Path: "/api/salesforce/test"},
			{Name: "SALESFORCE_REFERRALS", Method: http.MethodGet, Path: "/api/salesforce/referrals"},
			{Name: "HEALTH", Method: http.MethodGet, Path: "/api/health"},
			{Name: "STATUS", Method: http.MethodGet, Path: "/api/status"},
			{Name: "CONFIG", Method: http.MethodGet, Path: "/api/config"},
		},
	}
}

type demoUser struct {
	email, name, password, role string
}

var demoUsers = []demoUser{
	{"admin@eyedocs.local", "Demo Admin", "admin-demo-pass", auth.RoleAdmin},
	{"optician@eyedocs.local", "Demo Optician", "optician-demo-pass", auth.RoleOptician},
	{"clinician@eyedocs.local", "Demo Clinician", "clinician-demo-pass", auth.RoleClinician},
}

func seedDemoUsers(ctx context.Context, users *auth.UserService, logger zerolog.Logger) {
	for _, u := range demoUsers {
		if err := users.EnsureUser(ctx, u.email, u.name, u.password, u.role); err != nil {
			logger.Warn().Err(err).Str("email", u.email).Msg("failed to seed demo user")
		}
	}
	logger.Info().Int("count", len(demoUsers)).Msg("demo users ready")
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	signingKey, generated, err := resolveSigningKey(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("auth signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; tokens will not survive a restart")
	}

	revoked := auth.NewTokenRevocationStore(10 * time.Minute)
	defer revoked.Close()
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AppName,
		SigningKey: signingKey,
		Revoked:    revoked,
		Skipper:    auth.AuthSkipper,
	}

	// Salesforce
	sfAdapter := newSalesforceAdapter(cfg, logger)
	if cfg.FeatureSalesforce && cfg.SalesforceConnectOnStart {
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			// A failed connect leaves the adapter in simulation mode.
			_, _ = sfAdapter.Connect(cctx, nil)
		}()
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(db.ConnMiddleware(pool))
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	// Keyed per user once auth has run.
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(middleware.Audit(logger))

	public := e.Group("/api")
	api := e.Group("/api")

	// Auth
	users := auth.NewUserService(auth.NewUserRepoPG(pool))
	if cfg.FeatureDemoMode {
		seedDemoUsers(ctx, users, logger)
	}
	auth.NewHandler(users, auth.NewIssuer(jwtCfg, cfg.AuthTokenTTL), revoked, logger).RegisterRoutes(public, api)

	// System
	system.NewHandler(cfg, db.NewChecker(pool), sfAdapter, publicConfig()).RegisterRoutes(public)

	// Referrals
	referralRepo := referral.NewRepoPG(pool)
	referralSvc := referral.NewService(referralRepo, sfAdapter, logger)
	referral.NewHandler(referralSvc).RegisterRoutes(api)
	if cfg.FeatureSalesforce {
		referral.NewSalesforceHandler(referralSvc, sfAdapter).RegisterRoutes(api)
	}

	// Opticians
	optician.NewHandler(optician.NewService(optician.NewRepoPG(pool))).RegisterRoutes(api)

	// Appointments
	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), referralRepo, db.NewTxRunner(pool), logger)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)

	// Analytics
	if cfg.FeatureAnalytics {
		analyticsSvc := analytics.NewService(analytics.NewRepoPG(pool), logger)
		analytics.NewHandler(analyticsSvc, cfg.FeatureForecasting).RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
