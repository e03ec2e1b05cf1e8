// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat sessions to files.
//
// # Supported Formats
//
//   - json: the stored message log, attachments included; can be re-imported
//   - yaml: the same log with attachment payloads replaced by their sizes
//   - md:   a readable transcript
//
// # Usage
//
//	t := export.NewTranscript(id, "", messages)
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.ExportToFile(t, exp, opts)
package export
