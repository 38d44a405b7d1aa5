package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AppName        string        `mapstructure:"APP_NAME"`
	AppVersion     string        `mapstructure:"APP_VERSION"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTL   time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	SalesforceUsername        string        `mapstructure:"SALESFORCE_USERNAME"`
	SalesforcePassword        string        `mapstructure:"SALESFORCE_PASSWORD"`
	SalesforceSecurityToken   string        `mapstructure:"SALESFORCE_SECURITY_TOKEN"`
	SalesforceLoginURL        string        `mapstructure:"SALESFORCE_LOGIN_URL"`
	SalesforceAPIVersion      string        `mapstructure:"SALESFORCE_API_VERSION"`
	SalesforceSimulationDelay time.Duration `mapstructure:"SALESFORCE_SIMULATION_DELAY"`
	SalesforceConnectOnStart  bool          `mapstructure:"SALESFORCE_CONNECT_ON_START"`

	FeatureSalesforce  bool `mapstructure:"FEATURE_SALESFORCE_INTEGRATION"`
	FeatureAnalytics   bool `mapstructure:"FEATURE_ANALYTICS_DASHBOARD"`
	FeatureForecasting bool `mapstructure:"FEATURE_FORECASTING"`
	FeatureDemoMode    bool `mapstructure:"FEATURE_DEMO_MODE"`
}

var envKeys = []string{
	"PORT", "ENV", "APP_NAME", "APP_VERSION",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"CORS_ORIGINS", "AUTH_SIGNING_KEY", "AUTH_TOKEN_TTL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"SALESFORCE_USERNAME", "SALESFORCE_PASSWORD", "SALESFORCE_SECURITY_TOKEN",
	"SALESFORCE_LOGIN_URL", "SALESFORCE_API_VERSION",
	"SALESFORCE_SIMULATION_DELAY", "SALESFORCE_CONNECT_ON_START",
	"FEATURE_SALESFORCE_INTEGRATION", "FEATURE_ANALYTICS_DASHBOARD",
	"FEATURE_FORECASTING", "FEATURE_DEMO_MODE",
}

// Load reads the server configuration from the environment and an optional
// .env file. The returned value is treated as read-only after startup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "ReferralFlow Connect")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_TOKEN_TTL", "24h")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SALESFORCE_API_VERSION", "59.0")
	v.SetDefault("SALESFORCE_SIMULATION_DELAY", "1s")
	v.SetDefault("SALESFORCE_CONNECT_ON_START", true)
	v.SetDefault("FEATURE_SALESFORCE_INTEGRATION", true)
	v.SetDefault("FEATURE_ANALYTICS_DASHBOARD", true)
	v.SetDefault("FEATURE_FORECASTING", true)
	v.SetDefault("FEATURE_DEMO_MODE", true)

	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Features returns the feature flags exposed to clients through /config.
func (c *Config) Features() map[string]bool {
	return map[string]bool{
		"SALESFORCE_INTEGRATION": c.FeatureSalesforce,
		"ANALYTICS_DASHBOARD":    c.FeatureAnalytics,
		"FORECASTING":            c.FeatureForecasting,
		"DEMO_MODE":              c.FeatureDemoMode,
		"USER_AUTHENTICATION":    true,
	}
}

// Validate checks that the configuration is safe to run and reports every
// problem found, not just the first.
func (c *Config) Validate() error {
	var err error

	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		err = multierr.Append(err, fmt.Errorf("ENV must be development, staging, production or test, got %q", c.Env))
	}

	if c.IsProduction() && c.AuthSigningKey == "" {
		err = multierr.Append(err, fmt.Errorf("AUTH_SIGNING_KEY is required in production"))
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		err = multierr.Append(err, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey)))
	}
	if c.AuthTokenTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("AUTH_TOKEN_TTL must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		err = multierr.Append(err, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.RequestTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("REQUEST_TIMEOUT must be positive"))
	}
	if c.SalesforceSimulationDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("SALESFORCE_SIMULATION_DELAY must not be negative"))
	}

	return err
}
