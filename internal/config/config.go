// Package config loads, validates, and saves the deskbridge configuration.
// Config files are JSON with ${VAR} / ${VAR:-default} environment expansion,
// so tokens never have to live in the file itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for deskbridge.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Storage  StorageConfig  `json:"storage"`
	Health   HealthConfig   `json:"health"`
	Notices  NoticesConfig  `json:"notices"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type TelegramConfig struct {
	Token        string `json:"token"`
	AgentGroupID int64  `json:"agentGroupId"` // forum supergroup the agents work in
	ParseMode    string `json:"parseMode"`
	DropPending  bool   `json:"dropPendingUpdates"` // discard backlog at startup
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

// HealthConfig configures the liveness/metrics HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// NoticesConfig points at an optional YAML file overriding the built-in
// notice texts.
type NoticesConfig struct {
	Path string `json:"path,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.deskbridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deskbridge"
	}
	return filepath.Join(home, ".deskbridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	// The default token is an env placeholder; if the file omits the field it
	// never went through the file-level expansion above.
	cfg.Telegram.Token = ExpandEnvVars(cfg.Telegram.Token)
	if strings.HasPrefix(cfg.Telegram.Token, "${") {
		cfg.Telegram.Token = ""
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.General.LogFile = expandPath(cfg.General.LogFile)
	cfg.Notices.Path = expandPath(cfg.Notices.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. The token is allowed to
// be empty here so init/doctor can work on a fresh file; serve checks it
// separately.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Telegram.ParseMode {
	case "", "HTML", "Markdown", "MarkdownV2":
		// valid
	default:
		errs = append(errs, "telegram.parseMode must be one of: HTML, Markdown, MarkdownV2")
	}
	if cfg.Telegram.AgentGroupID > 0 {
		errs = append(errs, "telegram.agentGroupId must be a supergroup id (negative)")
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath must not be empty")
	}

	if cfg.Health.Port < 0 || cfg.Health.Port > 65535 {
		errs = append(errs, "health.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Sanitize returns a copy with the bot token masked for display.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.Telegram.Token != "" {
		out.Telegram.Token = "***"
	}
	return &out
}

// expandPath resolves a leading ~/ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
