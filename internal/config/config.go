// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// config.go - Run configuration for the label reassigner.
//
// Settings are resolved by viper in this order (highest first):
// 1. Command-line flags bound with BindPFlag
// 2. Environment variables: LABEL_REASSIGNER_<KEY> with '-' replaced by '_'
//    (for example LABEL_REASSIGNER_TENANT_ID)
// 3. An optional config file (YAML, JSON or TOML) given with --config
// 4. Defaults from SetDefaults
//
// Usage Example:
//   v := config.NewViper()
//   _ = v.BindPFlag(config.KeyTenantID, cmd.Flags().Lookup(config.KeyTenantID))
//   cfg, err := config.Load(v, configFile)
//   if err != nil {
//       return err
//   }
//   if err := cfg.Validate(true); err != nil {
//       return err
//   }

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gebl/label-reassigner/internal/auth"
	"github.com/gebl/label-reassigner/internal/graph"
	"github.com/gebl/label-reassigner/internal/logging"
	"github.com/gebl/label-reassigner/internal/reassign"
	"github.com/gebl/label-reassigner/internal/retry"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LABEL_REASSIGNER"

// Configuration keys. Flags use the same names.
const (
	KeyTenantID          = "tenant-id"
	KeyLabelID           = "label-id"
	KeyLogFile           = "log-file"
	KeyClientID          = "client-id"
	KeyAuthority         = "authority"
	KeyResource          = "resource"
	KeyGraphBaseURL      = "graph-base-url"
	KeyPageSize          = "page-size"
	KeyRetryAttempts     = "retry-attempts"
	KeyRetryDelay        = "retry-delay"
	KeyRequestsPerSecond = "requests-per-second"
	KeyTokenCache        = "token-cache"
	KeyAccessToken       = "access-token"
	KeyPreflight         = "preflight"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
	KeyAppLog            = "app-log"
)

// Config holds all settings for one run.
type Config struct {
	TenantID          string        `mapstructure:"tenant-id"`
	LabelID           string        `mapstructure:"label-id"`
	LogFile           string        `mapstructure:"log-file"` // failure log
	ClientID          string        `mapstructure:"client-id"`
	Authority         string        `mapstructure:"authority"`
	Resource          string        `mapstructure:"resource"`
	GraphBaseURL      string        `mapstructure:"graph-base-url"`
	PageSize          int           `mapstructure:"page-size"`
	RetryAttempts     int           `mapstructure:"retry-attempts"`
	RetryDelay        time.Duration `mapstructure:"retry-delay"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	TokenCache        string        `mapstructure:"token-cache"`
	AccessToken       string        `mapstructure:"access-token"` // pre-acquired token; skips sign-in
	Preflight         bool          `mapstructure:"preflight"`
	LogLevel          string        `mapstructure:"log-level"`
	LogFormat         string        `mapstructure:"log-format"`
	AppLog            string        `mapstructure:"app-log"` // diagnostic log file
}

// SetDefaults registers a default for every key so environment lookups see them all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTenantID, "")
	v.SetDefault(KeyLabelID, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyClientID, auth.DefaultClientID)
	v.SetDefault(KeyAuthority, auth.DefaultAuthority)
	v.SetDefault(KeyResource, auth.DefaultResource)
	v.SetDefault(KeyGraphBaseURL, graph.DefaultBaseURL)
	v.SetDefault(KeyPageSize, reassign.DefaultPageSize)
	v.SetDefault(KeyRetryAttempts, retry.DefaultPolicy.MaxAttempts)
	v.SetDefault(KeyRetryDelay, retry.DefaultPolicy.Delay)
	v.SetDefault(KeyRequestsPerSecond, 5.0)
	v.SetDefault(KeyTokenCache, "")
	v.SetDefault(KeyAccessToken, "")
	v.SetDefault(KeyPreflight, true)
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFormat, "")
	v.SetDefault(KeyAppLog, "")
}

// NewViper returns a viper instance wired for environment lookups with defaults set.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configFile (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	logging.ConfigLogger.Debug("Loading configuration", "config_file", configFile)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		logging.ConfigLogger.Debug("Config file loaded", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.TenantID = strings.TrimSpace(cfg.TenantID)
	cfg.LabelID = strings.TrimSpace(cfg.LabelID)

	logging.ConfigLogger.Debug("Configuration resolved",
		"tenant_id", cfg.TenantID,
		"label_id", cfg.LabelID,
		"log_file", cfg.LogFile,
		"client_id", cfg.ClientID,
		"graph_base_url", cfg.GraphBaseURL,
		"page_size", cfg.PageSize,
		"retry_attempts", cfg.RetryAttempts,
		"retry_delay", cfg.RetryDelay,
		"requests_per_second", cfg.RequestsPerSecond,
		"token_cache", cfg.TokenCache,
		"access_token_set", cfg.AccessToken != "",
		"preflight", cfg.Preflight)
	return cfg, nil
}

// Validate checks the settings. requireLogFile is false for commands that never
// write failure records.
func (c *Config) Validate(requireLogFile bool) error {
	var missing []string
	if c.TenantID == "" && c.AccessToken == "" {
		missing = append(missing, KeyTenantID)
	}
	if c.LabelID == "" {
		missing = append(missing, KeyLabelID)
	}
	if requireLogFile && strings.TrimSpace(c.LogFile) == "" {
		missing = append(missing, KeyLogFile)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.PageSize < 1 || c.PageSize > reassign.MaxPageSize {
		return fmt.Errorf("%s must be between 1 and %d, got %d", KeyPageSize, reassign.MaxPageSize, c.PageSize)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%s must not be negative, got %g", KeyRequestsPerSecond, c.RequestsPerSecond)
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}
	if !strings.HasPrefix(c.GraphBaseURL, "https://") && !strings.HasPrefix(c.GraphBaseURL, "http://") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", KeyGraphBaseURL, c.GraphBaseURL)
	}
	return nil
}

// RetryPolicy returns the policy used for page fetches and patches.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// GetLogLevel implements logging.LoggingConfig.
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFormat implements logging.LoggingConfig.
func (c *Config) GetLogFormat() string {
	return c.LogFormat
}

// GetLogFile implements logging.LoggingConfig. It is the diagnostic log, not the failure log.
func (c *Config) GetLogFile() string {
	return c.AppLog
}
