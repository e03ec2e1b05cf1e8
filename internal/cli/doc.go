// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the onys command tree.
//
// Commands:
//
//	onys chat                         interactive TUI
//	onys ask [question]               one-shot send, reply printed to stdout
//	onys sessions list|show|delete|export
//	onys providers [--all]            active catalog or stored settings
//	onys tokens [text]                estimate tokens of text or stdin
//	onys usage                        local usage ledger totals
//	onys config show|path|init|get|set
//
// Global flags:
//
//	--config PATH      config file (default ~/.onys/config.toml)
//	--url URL          backend API root, overrides backend.url
//	--log-level LEVEL  debug, info, warn or error
//	--json             machine-readable output where supported
//
// Errors are returned from RunE and mapped to exit codes by Execute.
package cli
