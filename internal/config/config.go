// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/onys-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete onys configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend BackendConfig `toml:"backend" json:"backend"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Usage   UsageConfig   `toml:"usage" json:"usage"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// BackendConfig describes how to reach the Onys REST backend.
type BackendConfig struct {
	// URL is the API root, including the /api prefix.
	URL string `toml:"url" json:"url"`

	// TimeoutSecs bounds every request, including a chat send.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	Burst     int     `toml:"burst" json:"burst"`

	// AutoSave persists the session log after every settled exchange.
	AutoSave bool `toml:"auto_save" json:"auto_save"`
}

// ChatConfig holds composer and send defaults.
type ChatConfig struct {
	DefaultProvider string `toml:"default_provider" json:"default_provider"`
	DefaultModel    string `toml:"default_model" json:"default_model"`

	// TokenModel selects the tokenizer used for live input estimates.
	TokenModel string `toml:"token_model" json:"token_model"`

	// DebounceMillis is the quiet period before an input estimate runs.
	DebounceMillis int `toml:"debounce_millis" json:"debounce_millis"`

	// MaxAttachmentMB rejects larger files at staging time.
	MaxAttachmentMB int `toml:"max_attachment_mb" json:"max_attachment_mb"`
}

// UsageConfig controls the local usage ledger.
type UsageConfig struct {
	Enabled      bool   `toml:"enabled" json:"enabled"`
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
	JSON  bool   `toml:"json" json:"json"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme      string `toml:"theme" json:"theme"` // "dark", "light", "plain" or "auto"
	WordWrap   int    `toml:"word_wrap" json:"word_wrap"`
	ShowTokens bool   `toml:"show_tokens" json:"show_tokens"`
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// Debounce returns the input estimate quiet period.
func (c ChatConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// MaxAttachmentBytes returns the attachment size limit in bytes.
func (c ChatConfig) MaxAttachmentBytes() int64 {
	return int64(c.MaxAttachmentMB) << 20
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			URL:         "http://localhost:8004/api",
			TimeoutSecs: 60,
			RateLimit:   5,
			Burst:       10,
			AutoSave:    true,
		},

		Chat: ChatConfig{
			TokenModel:      "gpt-4o",
			DebounceMillis:  500,
			MaxAttachmentMB: 20,
		},

		Usage: UsageConfig{
			Enabled: true,
		},

		Logging: LoggingConfig{
			Level: "warn",
		},

		UI: UIConfig{
			Theme:      "auto",
			WordWrap:   100,
			ShowTokens: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the onys configuration directory. ONYS_HOME overrides
// the default of ~/.onys.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ONYS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".onys"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions narrows config files to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	// A broken file falls back to defaults; the error is informational.
	if loadErr != nil {
		cfg = Default()
	}
	out, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return out, loadErr
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in missing values and resolves data paths.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Backend
	cfg.Backend.URL = strings.TrimSuffix(cfg.Backend.URL, "/")
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Backend.Burst == 0 {
		cfg.Backend.Burst = defaults.Backend.Burst
	}

	// Chat
	if cfg.Chat.TokenModel == "" {
		cfg.Chat.TokenModel = defaults.Chat.TokenModel
	}
	if cfg.Chat.DebounceMillis == 0 {
		cfg.Chat.DebounceMillis = defaults.Chat.DebounceMillis
	}
	if cfg.Chat.MaxAttachmentMB == 0 {
		cfg.Chat.MaxAttachmentMB = defaults.Chat.MaxAttachmentMB
	}

	// Data paths live under the config directory unless set.
	dir, err := ConfigDir()
	if err == nil {
		if cfg.Usage.DatabasePath == "" {
			cfg.Usage.DatabasePath = filepath.Join(dir, "usage.db")
		}
		if cfg.Logging.File == "" {
			cfg.Logging.File = filepath.Join(dir, "onys.log")
		}
	}

	// Logging / UI
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WordWrap == 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# onys configuration file\n")
	b.WriteString("# Environment variables (ONYS_*) override these values.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validThemes    = map[string]bool{"dark": true, "light": true, "auto": true, "plain": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("backend.url", fmt.Sprintf("must be an http(s) URL, got %q", c.Backend.URL))
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		add("backend.timeout_secs", "must be between 1 and 600")
	}
	if c.Backend.RateLimit < 0 {
		add("backend.rate_limit", "must not be negative")
	}
	if c.Backend.Burst < 1 {
		add("backend.burst", "must be at least 1")
	}

	if c.Chat.DebounceMillis < 0 || c.Chat.DebounceMillis > 10000 {
		add("chat.debounce_millis", "must be between 0 and 10000")
	}
	if c.Chat.MaxAttachmentMB < 1 || c.Chat.MaxAttachmentMB > 512 {
		add("chat.max_attachment_mb", "must be between 1 and 512")
	}
	if c.Chat.DefaultModel != "" && c.Chat.DefaultProvider == "" {
		add("chat.default_model", "requires chat.default_provider")
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	if !validThemes[c.UI.Theme] {
		add("ui.theme", fmt.Sprintf("must be dark, light, plain or auto, got %q", c.UI.Theme))
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be between 20 and 400")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - ONYS_BACKEND_URL: backend.url
//   - ONYS_TIMEOUT: backend.timeout_secs
//   - ONYS_PROVIDER: chat.default_provider
//   - ONYS_MODEL: chat.default_model
//   - ONYS_TOKEN_MODEL: chat.token_model
//   - ONYS_LOG_LEVEL: logging.level
//   - ONYS_LOG_FILE: logging.file
//   - ONYS_NO_USAGE: disables usage.enabled when truthy
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ONYS_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("ONYS_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("ONYS_PROVIDER"); v != "" {
		c.Chat.DefaultProvider = v
	}
	if v := os.Getenv("ONYS_MODEL"); v != "" {
		c.Chat.DefaultModel = v
	}
	if v := os.Getenv("ONYS_TOKEN_MODEL"); v != "" {
		c.Chat.TokenModel = v
	}
	if v := os.Getenv("ONYS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ONYS_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("ONYS_NO_USAGE"); v == "1" || strings.EqualFold(v, "true") {
		c.Usage.Enabled = false
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.token_model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.url",
		"backend.timeout_secs",
		"backend.rate_limit",
		"backend.burst",
		"backend.auto_save",
		"chat.default_provider",
		"chat.default_model",
		"chat.token_model",
		"chat.debounce_millis",
		"chat.max_attachment_mb",
		"usage.enabled",
		"usage.database_path",
		"logging.level",
		"logging.file",
		"logging.json",
		"ui.theme",
		"ui.word_wrap",
		"ui.show_tokens",
	}
}

// String returns the configuration as indented JSON for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
