// Package common provides shared utilities for palette
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for palette. Environment variables always
// win over the optional TOML overlay (loaded first, then overridden), the
// same precedence LoadConfig/applyEnvOverrides enforces.
type Config struct {
	Environment string `toml:"environment"`

	Discord DiscordConfig `toml:"discord"`
	Backend BackendConfig `toml:"backend"`

	DBPath string `toml:"db_path"`

	Logging LoggingConfig `toml:"logging"`

	DefaultNegativePrompt string `toml:"default_negative_prompt"`

	Upscale UpscaleConfig `toml:"upscale"`

	OwnerID string `toml:"owner_id"`

	Purge PurgeConfig `toml:"purge"`

	CivitaiAPIKey string `toml:"civitai_api_key"`

	Templates TemplatesConfig `toml:"templates"`
}

// TemplatesConfig names the on-disk JSON graph files the Binder loads.
type TemplatesConfig struct {
	BasePath          string `toml:"base_path"`
	UpscaleUltimatePath string `toml:"upscale_ultimate_path"`
	UpscaleSimplePath   string `toml:"upscale_simple_path"`
}

// Active returns the configured upscale template path for the given workflow.
func (t *TemplatesConfig) Active(workflow string) string {
	if workflow == "simple" {
		return t.UpscaleSimplePath
	}
	return t.UpscaleUltimatePath
}

// DiscordConfig holds the bot's identity and channel allow-list.
type DiscordConfig struct {
	Token             string   `toml:"token"`
	AppID             string   `toml:"app_id"`
	ScopeID           string   `toml:"scope_id"`
	AllowedChannelIDs []string `toml:"allowed_channel_ids"`
}

// BackendConfig holds renderer HTTP client configuration.
type BackendConfig struct {
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// GetTimeout returns the backend submit/poll timeout as a Duration.
func (c *BackendConfig) GetTimeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// UpscaleConfig holds the optional upscale feature's configuration.
type UpscaleConfig struct {
	Enabled  bool   `toml:"enabled"`
	Model    string `toml:"model"`
	Workflow string `toml:"workflow"` // "ultimate" | "simple"
}

// PurgeConfig holds retention-purge scheduling.
type PurgeConfig struct {
	MaxAgeHours   int `toml:"max_age_hours"`
	IntervalHours int `toml:"interval_hours"`
}

// MaxAge returns the purge cutoff age as a Duration.
func (c *PurgeConfig) MaxAge() time.Duration {
	if c.MaxAgeHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// Interval returns the purge tick interval as a Duration.
func (c *PurgeConfig) Interval() time.Duration {
	if c.IntervalHours <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.IntervalHours) * time.Hour
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults for every field.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Backend: BackendConfig{
			BaseURL:   "http://127.0.0.1:8188",
			TimeoutMS: 300000,
		},
		Logging: LoggingConfig{Level: "info"},
		Purge: PurgeConfig{
			MaxAgeHours:   48,
			IntervalHours: 6,
		},
		Templates: TemplatesConfig{
			BasePath:            "templates/base_graph.json",
			UpscaleUltimatePath: "templates/upscale_ultimate.json",
			UpscaleSimplePath:   "templates/upscale_simple.json",
		},
	}
}

// LoadConfig loads configuration from an optional TOML overlay file (pointed
// to by PALETTE_CONFIG) and then applies environment variable overrides,
// which always win. Missing required fields produce a field-level error.
func LoadConfig() (*Config, error) {
	config := NewDefaultConfig()

	if path := os.Getenv("PALETTE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TOKEN"); v != "" {
		config.Discord.Token = v
	}
	if v := os.Getenv("APP_ID"); v != "" {
		config.Discord.AppID = v
	}
	if v := os.Getenv("SCOPE_ID"); v != "" {
		config.Discord.ScopeID = v
	}
	if v := os.Getenv("ALLOWED_CHANNEL_IDS"); v != "" {
		config.Discord.AllowedChannelIDs = splitCSV(v)
	}
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		config.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Backend.TimeoutMS = n
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		config.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("DEFAULT_NEGATIVE_PROMPT"); v != "" {
		config.DefaultNegativePrompt = v
	}
	if v := os.Getenv("UPSCALE_MODEL"); v != "" {
		config.Upscale.Model = v
	}
	if v := os.Getenv("UPSCALE_WORKFLOW"); v != "" {
		config.Upscale.Workflow = v
	}
	if v := os.Getenv("UPSCALE_ENABLED"); v != "" {
		config.Upscale.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OWNER_ID"); v != "" {
		config.OwnerID = v
	}
	if v := os.Getenv("PURGE_MAX_AGE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Purge.MaxAgeHours = n
		}
	}
	if v := os.Getenv("PURGE_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Purge.IntervalHours = n
		}
	}
	if v := os.Getenv("CIVITAI_API_KEY"); v != "" {
		config.CivitaiAPIKey = v
	}
	if v := os.Getenv("TEMPLATE_BASE_PATH"); v != "" {
		config.Templates.BasePath = v
	}
	if v := os.Getenv("TEMPLATE_UPSCALE_ULTIMATE_PATH"); v != "" {
		config.Templates.UpscaleUltimatePath = v
	}
	if v := os.Getenv("TEMPLATE_UPSCALE_SIMPLE_PATH"); v != "" {
		config.Templates.UpscaleSimplePath = v
	}
	if v := os.Getenv("PALETTE_ENV"); v != "" {
		config.Environment = v
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateConfig checks the fields required for a working app and returns
// a field-level diagnostic naming every one that is missing, or naming
// UPSCALE_WORKFLOW when upscale is enabled with an unknown workflow.
func validateConfig(c *Config) error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "TOKEN")
	}
	if c.Discord.AppID == "" {
		missing = append(missing, "APP_ID")
	}
	if c.DBPath == "" {
		missing = append(missing, "DB_PATH")
	}
	if c.Backend.BaseURL == "" {
		missing = append(missing, "BACKEND_BASE_URL")
	}
	if c.Upscale.Enabled && c.Upscale.Workflow != "ultimate" && c.Upscale.Workflow != "simple" {
		return fmt.Errorf("config: UPSCALE_WORKFLOW must be %q or %q when UPSCALE_ENABLED is set, got %q", "ultimate", "simple", c.Upscale.Workflow)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// IsAllowedChannel reports whether the given channel id may invoke the entry command.
func (c *Config) IsAllowedChannel(channelID string) bool {
	for _, id := range c.Discord.AllowedChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// IsOwner reports whether the given user id is the configured owner.
func (c *Config) IsOwner(userID string) bool {
	return c.OwnerID != "" && c.OwnerID == userID
}
