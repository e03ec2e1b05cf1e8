// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// USAGE
// =============================================================================

// Usage is the token accounting the backend reports for one exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a session log. Messages are values: once
// appended to a log they are never modified.
type Message struct {
	ID          int64        `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Assistant only.
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Usage     *Usage    `json:"meta,omitempty"`
}

// NewUserMessage creates a user message. The attachment slice is copied so
// later changes to the caller's staging area cannot reach the message.
func NewUserMessage(content string, attachments []Attachment) Message {
	var atts []Attachment
	if len(attachments) > 0 {
		atts = make([]Attachment, len(attachments))
		copy(atts, attachments)
	}
	return Message{
		ID:          NextID(),
		Role:        RoleUser,
		Content:     content,
		Attachments: atts,
	}
}

// NewAssistantMessage creates an assistant message stamped with the current
// time. Usage is kept exactly as given, including nil.
func NewAssistantMessage(content, modelID string, usage *Usage) Message {
	return Message{
		ID:        NextID(),
		Role:      RoleAssistant,
		Content:   content,
		Model:     modelID,
		Timestamp: time.Now(),
		Usage:     usage,
	}
}

// IsUser returns true for user messages.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true for assistant messages.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// =============================================================================
// MESSAGE IDS
// =============================================================================

var lastID atomic.Int64

// NextID returns a creation-time derived identifier (Unix milliseconds) that
// is strictly greater than every identifier previously returned by this
// process, even when several are issued within the same millisecond.
func NextID() int64 {
	for {
		prev := lastID.Load()
		next := time.Now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if lastID.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// ObserveID raises the generator floor so identifiers issued after loading a
// stored history sort after it.
func ObserveID(id int64) {
	for {
		prev := lastID.Load()
		if id <= prev || lastID.CompareAndSwap(prev, id) {
			return
		}
	}
}

// =============================================================================
// JSON DECODING
// =============================================================================

// UnmarshalJSON decodes a stored message leniently: the id may be a number
// or a numeric string, usage may appear as "meta" or "usage", and a
// timestamp that is not RFC 3339 (the web client writes "14:05") is dropped.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Role        Role            `json:"role"`
		Content     string          `json:"content"`
		Attachments []Attachment    `json:"attachments"`
		Model       string          `json:"model"`
		Timestamp   json.RawMessage `json:"timestamp"`
		Meta        *Usage          `json:"meta"`
		Usage       *Usage          `json:"usage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := parseID(raw.ID)
	if err != nil {
		return err
	}

	*m = Message{
		ID:          id,
		Role:        raw.Role,
		Content:     raw.Content,
		Attachments: raw.Attachments,
		Model:       raw.Model,
		Usage:       raw.Meta,
	}
	if m.Usage == nil {
		m.Usage = raw.Usage
	}
	var stamp string
	if json.Unmarshal(raw.Timestamp, &stamp) == nil {
		if ts, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			m.Timestamp = ts
		}
	}
	return nil
}

func parseID(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return int64(f), nil
}
