// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for onys.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, request timeout and outbound rate limit
//   - ChatConfig: Default target, tokenizer model, debounce and attachment limit
//   - UsageConfig / LoggingConfig / UIConfig: Ledger, log and display settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ONYS_*)
//   - $ONYS_HOME/config.toml (default ~/.onys/config.toml)
//   - $ONYS_HOME/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := backend.NewClient(cfg.Backend.URL).WithTimeout(cfg.Backend.Timeout())
//
// Watch reloads the file while the TUI runs:
//
//	go config.Watch(ctx, path, func(c *config.Config) { ... }, nil)
package config
