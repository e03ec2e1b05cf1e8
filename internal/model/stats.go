// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// SessionStats aggregates backend-reported usage over a session log.
type SessionStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	GrandTotal       int `json:"grand_total"`
}

// ComputeStats folds usage over the assistant messages of a log. Messages
// without usage contribute zero. GrandTotal is always the sum of the two
// component totals, never the backend's own total_tokens.
func ComputeStats(messages []Message) SessionStats {
	var s SessionStats
	for _, m := range messages {
		if m.Role != RoleAssistant || m.Usage == nil {
			continue
		}
		s.PromptTokens += m.Usage.PromptTokens
		s.CompletionTokens += m.Usage.CompletionTokens
	}
	s.GrandTotal = s.PromptTokens + s.CompletionTokens
	return s
}

// SessionSummary is one entry of the backend's session listing.
type SessionSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
