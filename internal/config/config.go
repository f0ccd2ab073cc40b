package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
	Ledger struct {
		Mode                         string `mapstructure:"mode"` // sandbox or http
		BaseURL                      string `mapstructure:"base_url"`
		APIKey                       string `mapstructure:"api_key"`
		SandboxOpeningBalance        int64  `mapstructure:"sandbox_opening_balance"`
		AssumeSufficientOnBalanceErr bool   `mapstructure:"assume_sufficient_on_balance_error"`
	} `mapstructure:"ledger"`
	FX struct {
		OracleURL           string  `mapstructure:"oracle_url"`
		LockDurationMinutes int     `mapstructure:"lock_duration_minutes"`
		MaxDriftPct         float64 `mapstructure:"max_drift_pct"`
	} `mapstructure:"fx"`
	Webhooks struct {
		Workers       int    `mapstructure:"workers"`
		QueueSize     int    `mapstructure:"queue_size"`
		MaxAttempts   int    `mapstructure:"max_attempts"`
		RetryDelayMS  int    `mapstructure:"retry_delay_ms"`
		SigningSecret string `mapstructure:"signing_secret"`
	} `mapstructure:"webhooks"`
	Sweep struct {
		Enabled         bool `mapstructure:"enabled"`
		IntervalSeconds int  `mapstructure:"interval_seconds"`
	} `mapstructure:"sweep"`
}

// Load reads ./configs/config.yaml with FLOWPAY_ env overrides. A missing
// config file is fine; defaults carry the sandbox setup.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FLOWPAY")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var fileLookupError viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ledger.Mode != "sandbox" && cfg.Ledger.Mode != "http" {
		return nil, fmt.Errorf("invalid ledger mode %q", cfg.Ledger.Mode)
	}
	if cfg.Ledger.Mode == "http" && cfg.Ledger.BaseURL == "" {
		return nil, fmt.Errorf("ledger.base_url is required in http mode")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("ledger.mode", "sandbox")
	v.SetDefault("ledger.sandbox_opening_balance", 1_000_000)
	v.SetDefault("ledger.assume_sufficient_on_balance_error", false)
	v.SetDefault("fx.lock_duration_minutes", 30)
	v.SetDefault("fx.max_drift_pct", 2.0)
	v.SetDefault("webhooks.workers", 3)
	v.SetDefault("webhooks.queue_size", 1000)
	v.SetDefault("webhooks.max_attempts", 3)
	v.SetDefault("webhooks.retry_delay_ms", 500)
	v.SetDefault("webhooks.signing_secret", "flowpay-dev-secret")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval_seconds", 30)
}
