package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the API client used by referral-cli.
type ClientConfig struct {
	APIURL        string        `mapstructure:"REFERRAL_API_URL"`
	Timeout       time.Duration `mapstructure:"REFERRAL_API_TIMEOUT"`
	RetryAttempts int           `mapstructure:"REFERRAL_API_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"REFERRAL_API_RETRY_DELAY"`
	StateFile     string        `mapstructure:"REFERRAL_STATE_FILE"`
}

func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("REFERRAL_API_URL", "http://localhost:8000/api")
	v.SetDefault("REFERRAL_API_TIMEOUT", "30s")
	v.SetDefault("REFERRAL_API_RETRY_ATTEMPTS", 3)
	v.SetDefault("REFERRAL_API_RETRY_DELAY", "1s")
	v.SetDefault("REFERRAL_STATE_FILE", defaultStateFile())

	for _, k := range []string{
		"REFERRAL_API_URL", "REFERRAL_API_TIMEOUT", "REFERRAL_API_RETRY_ATTEMPTS",
		"REFERRAL_API_RETRY_DELAY", "REFERRAL_STATE_FILE",
	} {
		_ = v.BindEnv(k)
	}

	cfg := &ClientConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("REFERRAL_API_RETRY_ATTEMPTS must be at least 1, got %d", cfg.RetryAttempts)
	}
	return cfg, nil
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".referralflow.db"
	}
	return filepath.Join(home, ".referralflow.db")
}
