// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage keeps a local ledger of token usage reported by the backend.
//
// Each delivered exchange that carries usage becomes one row in a SQLite
// database (pure Go driver, no cgo). The ledger answers totals per model
// and per session for the `onys usage` command.
package usage
