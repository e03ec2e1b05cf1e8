// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across onys.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes (temp file, fsync, rename)
//   - Truncate: display-width aware truncation with an ellipsis
//   - PadRight: pads to a display width for aligned table columns
//   - Title: derives a one-line title from a message body
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	cell := util.PadRight(util.Truncate(title, 30), 32)
package util
