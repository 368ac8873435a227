// Package config provides dynamic configuration management for GridPilot.
// It uses Viper to load settings from files and environment variables, and
// builds the immutable project registry from configured trust material.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ProjectEntry is the configurable part of a registry entry; the signature
// blob is read from disk at startup.
type ProjectEntry struct {
	Name          string `mapstructure:"name"`
	SchedulerURL  string `mapstructure:"scheduler_url"`
	Authenticator string `mapstructure:"authenticator"`
}

// Config holds all runtime configuration for GridPilot.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`
	DBPath     string `mapstructure:"db_path"`

	// ── Gateway identity ─────────────────────────────────────────────────────
	// BaseURL is the externally visible URL devices use to reach this
	// gateway; per-project proxy URLs are derived from it.
	BaseURL            string `mapstructure:"base_url"`
	AccountManagerName string `mapstructure:"account_manager_name"`
	// WeakAuth: the shared secret a device must present as the account
	// manager name on rpc.php. Pre-shared out of band.
	WeakAuth string `mapstructure:"weak_auth"`
	// SigningKeyPath / SignatureDir: trust material proving the gateway's
	// proxy URLs to devices. One <project>.pub file per project.
	SigningKeyPath string `mapstructure:"signing_key_path"`
	SignatureDir   string `mapstructure:"signature_dir"`

	// ── Relay ────────────────────────────────────────────────────────────────
	UpstreamTimeoutSeconds int `mapstructure:"upstream_timeout_seconds"`
	// RetentionDays: workunit history older than this is pruned daily.
	// 0 keeps history forever.
	RetentionDays int `mapstructure:"retention_days"`

	// ── Operator API ─────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for operator tokens.
	// Change this in production — default is a random-looking placeholder.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	AdminPass string `mapstructure:"admin_pass"`

	// ── Projects ─────────────────────────────────────────────────────────────
	Projects map[string]ProjectEntry `mapstructure:"projects"`
}

// Load reads config from file (./config.yaml or ~/.gridpilot/config.yaml)
// and falls back to smart defaults. Environment variables with prefix
// GRIDPILOT_ override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Smart Defaults ---
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("db_path", "gridpilot.db")

	v.SetDefault("base_url", "http://127.0.0.1:8080")
	v.SetDefault("account_manager_name", "GridPilot")
	v.SetDefault("weak_auth", "")
	v.SetDefault("signing_key_path", "signing_key.pub")
	v.SetDefault("signature_dir", "signatures")

	v.SetDefault("upstream_timeout_seconds", 30)
	v.SetDefault("retention_days", 0)

	// Security defaults — MUST be overridden in production.
	v.SetDefault("jwt_secret", "GpLt$Vq3@nR8!kW5#mJ2^bX7&cZ9*hT")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.gridpilot")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("GRIDPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
