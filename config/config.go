package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	JWTToken            string
	BaseURL             string
	TreasuryAccount     string
	IntentsContract     string
	WrapContract        string
	RegisterStorage     bool
	DryRefreshInterval  time.Duration
	LiveRefreshInterval time.Duration
	Debounce            time.Duration
	QuoteWaitingTimeMs  int
	ProposalBond        string
	HistoryPath         string
	MetricsAddr         string
	RequestTimeout      time.Duration
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".near-treasury")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("NEAR_TREASURY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://1click.chaindefuser.com")
	v.SetDefault("intents_contract", "intents.near")
	v.SetDefault("wrap_contract", "wrap.near")
	v.SetDefault("register_storage", false)
	v.SetDefault("dry_refresh_interval", 15*time.Second)
	v.SetDefault("live_refresh_interval", 45*time.Second)
	v.SetDefault("debounce", 500*time.Millisecond)
	v.SetDefault("quote_waiting_time_ms", 3000)
	v.SetDefault("proposal_bond", "0")
	v.SetDefault("history_path", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("request_timeout", 15*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		JWTToken:            v.GetString("jwt_token"),
		BaseURL:             v.GetString("base_url"),
		TreasuryAccount:     v.GetString("treasury_account"),
		IntentsContract:     v.GetString("intents_contract"),
		WrapContract:        v.GetString("wrap_contract"),
		RegisterStorage:     v.GetBool("register_storage"),
		DryRefreshInterval:  v.GetDuration("dry_refresh_interval"),
		LiveRefreshInterval: v.GetDuration("live_refresh_interval"),
		Debounce:            v.GetDuration("debounce"),
		QuoteWaitingTimeMs:  v.GetInt("quote_waiting_time_ms"),
		ProposalBond:        v.GetString("proposal_bond"),
		HistoryPath:         expandHome(v.GetString("history_path")),
		MetricsAddr:         v.GetString("metrics_addr"),
		RequestTimeout:      v.GetDuration("request_timeout"),
	}
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.DryRefreshInterval <= 0 || c.LiveRefreshInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce cannot be negative")
	}
	if c.IntentsContract == "" || c.WrapContract == "" {
		return fmt.Errorf("intents_contract and wrap_contract must be set")
	}
	return nil
}

// RequireTreasury returns an error when no treasury account is configured
func (c *Config) RequireTreasury() error {
	if c.TreasuryAccount == "" {
		return fmt.Errorf("treasury account not found. Please set NEAR_TREASURY_TREASURY_ACCOUNT environment variable or add treasury_account to .near-treasury.yaml")
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
