// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every onys layer:
// chat messages, attachments, backend usage reports and the token
// statistics derived from them.
//
// # Key Types
//
//   - Message: one entry in a session's append-only log
//   - Attachment: a file carried by value inside a user message
//   - Usage: token counts the backend reports for one exchange
//   - SessionStats: prompt/completion totals folded over a log
//   - SessionSummary: an entry in the backend's session listing
//
// # Wire Format
//
// Messages serialize the way the Onys web client stores them, so
// histories written by either client load in the other: attachments as
// {name, type, base64} and usage under "meta". Decoding also accepts
// "usage" and tolerates non-RFC 3339 timestamps.
//
// # Usage
//
//	msg := model.NewUserMessage("summarize this", atts)
//	stats := model.ComputeStats(log)
//	fmt.Println(stats.GrandTotal)
package model
