// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points ONYS_HOME at a fresh directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ONYS_HOME", dir)
	for _, k := range []string{
		"ONYS_BACKEND_URL", "ONYS_TIMEOUT", "ONYS_PROVIDER", "ONYS_MODEL",
		"ONYS_TOKEN_MODEL", "ONYS_LOG_LEVEL", "ONYS_LOG_FILE", "ONYS_NO_USAGE",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8004/api" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout() != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Backend.Timeout())
	}
	if cfg.Chat.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", cfg.Chat.Debounce())
	}
	if cfg.Chat.TokenModel != "gpt-4o" {
		t.Errorf("TokenModel = %q", cfg.Chat.TokenModel)
	}
	if cfg.Usage.DatabasePath != filepath.Join(dir, "usage.db") {
		t.Errorf("DatabasePath = %q", cfg.Usage.DatabasePath)
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	content := `
[backend]
url = "http://backend.internal:9000/api/"
timeout_secs = 15

[chat]
default_provider = "openai"
default_model = "gpt-4o"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend.URL != "http://backend.internal:9000/api" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.Backend.URL)
	}
	if cfg.Backend.TimeoutSecs != 15 {
		t.Errorf("TimeoutSecs = %d", cfg.Backend.TimeoutSecs)
	}
	if !cfg.Backend.AutoSave {
		t.Error("unset booleans should keep their defaults")
	}
	if cfg.Chat.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q", cfg.Chat.DefaultProvider)
	}
}

func TestLoad_BrokenFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[backend\nurl="), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Error("expected informational load error")
	}
	if cfg == nil || cfg.Backend.URL != Default().Backend.URL {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ONYS_BACKEND_URL", "https://onys.example.com/api")
	t.Setenv("ONYS_TIMEOUT", "30")
	t.Setenv("ONYS_PROVIDER", "runpod")
	t.Setenv("ONYS_MODEL", "mistral-7b")
	t.Setenv("ONYS_NO_USAGE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend.URL != "https://onys.example.com/api" || cfg.Backend.TimeoutSecs != 30 {
		t.Errorf("backend overrides not applied: %+v", cfg.Backend)
	}
	if cfg.Chat.DefaultProvider != "runpod" || cfg.Chat.DefaultModel != "mistral-7b" {
		t.Errorf("chat overrides not applied: %+v", cfg.Chat)
	}
	if cfg.Usage.Enabled {
		t.Error("ONYS_NO_USAGE should disable the ledger")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "backend.url"},
		{"no host", func(c *Config) { c.Backend.URL = "http://" }, "backend.url"},
		{"timeout", func(c *Config) { c.Backend.TimeoutSecs = 0 }, "backend.timeout_secs"},
		{"rate", func(c *Config) { c.Backend.RateLimit = -1 }, "backend.rate_limit"},
		{"debounce", func(c *Config) { c.Chat.DebounceMillis = 20000 }, "chat.debounce_millis"},
		{"model without provider", func(c *Config) { c.Chat.DefaultModel = "gpt-4o" }, "chat.default_model"},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %v", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, verrs)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("chat.debounce_millis", "250"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.Chat.DebounceMillis != 250 {
		t.Errorf("DebounceMillis = %d", cfg.Chat.DebounceMillis)
	}
	if err := cfg.Set("backend.auto_save", "false"); err != nil {
		t.Fatalf("Set bool failed: %v", err)
	}
	if cfg.Backend.AutoSave {
		t.Error("AutoSave should be false")
	}

	v, err := cfg.Get("backend.url")
	if err != nil || v != "http://localhost:8004/api" {
		t.Errorf("Get(backend.url) = %v, %v", v, err)
	}

	if _, err := cfg.Get("backend"); err == nil {
		t.Error("Get on a section should fail")
	}
	if err := cfg.Set("nope.key", "x"); err == nil {
		t.Error("Set on unknown key should fail")
	}
	if err := cfg.Set("chat.debounce_millis", "soon"); err == nil {
		t.Error("Set with bad integer should fail")
	}

	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("GetAllKeys lists %q but Get fails: %v", key, err)
		}
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Chat.DefaultProvider = "gemini"
	cfg.Chat.DefaultModel = "gemini-1.5-pro"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Chat.DefaultModel != "gemini-1.5-pro" {
		t.Errorf("DefaultModel = %q", loaded.Chat.DefaultModel)
	}
}

func TestSaveJSON_FallbackLoad(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.UI.Theme = "light"
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	// No config.toml exists, so Load falls through to the JSON file.
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("Theme = %q, want light", loaded.UI.Theme)
	}
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	updated := Default()
	updated.UI.Theme = "light"
	if err := SaveTOML(updated, path); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.UI.Theme != "light" {
			t.Errorf("reloaded theme = %q, want light", c.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
