// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage_CopiesAttachments(t *testing.T) {
	staged := []Attachment{{Name: "a.png", MimeType: "image/png", Payload: "AAAA"}}
	msg := NewUserMessage("look", staged)

	staged[0].Name = "mutated"

	if msg.Attachments[0].Name != "a.png" {
		t.Errorf("attachment changed through caller slice: %q", msg.Attachments[0].Name)
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if !msg.Timestamp.IsZero() {
		t.Error("user messages carry no timestamp")
	}
}

func TestNewAssistantMessage(t *testing.T) {
	before := time.Now()
	usage := &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	msg := NewAssistantMessage("hi", "gpt-4o", usage)

	if msg.Role != RoleAssistant || msg.Model != "gpt-4o" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.Before(before) {
		t.Error("timestamp should be taken at creation")
	}
	if msg.Usage != usage {
		t.Error("usage should be kept verbatim")
	}
}

func TestNextID_StrictlyIncreasing(t *testing.T) {
	const n = 1000
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = NextID()
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}

	a, b := NextID(), NextID()
	if b <= a {
		t.Errorf("NextID not increasing: %d then %d", a, b)
	}
}

func TestObserveID_RaisesFloor(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	ObserveID(future)
	if id := NextID(); id <= future {
		t.Errorf("NextID() = %d, want > %d", id, future)
	}
}

// =============================================================================
// JSON TESTS
// =============================================================================

func TestMessage_DecodeWebClientHistory(t *testing.T) {
	data := `[
		{"role":"user","content":"hello","id":1718000000000,
		 "attachments":[{"name":"cat.png","type":"image/png","base64":"iVBO","preview":"blob:x"}]},
		{"role":"assistant","content":"hi","id":1718000000001,"model":"gpt-4o",
		 "timestamp":"14:05","meta":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}
	]`

	var msgs []Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].ID != 1718000000000 || msgs[0].Attachments[0].Payload != "iVBO" {
		t.Errorf("user message decoded wrong: %+v", msgs[0])
	}
	if msgs[1].Usage == nil || msgs[1].Usage.PromptTokens != 3 {
		t.Errorf("meta not decoded as usage: %+v", msgs[1].Usage)
	}
	if !msgs[1].Timestamp.IsZero() {
		t.Error("non-RFC 3339 timestamp should be dropped")
	}
}

func TestMessage_DecodeVariants(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantID int64
		usage  bool
	}{
		{"string id", `{"id":"42","role":"user","content":"x"}`, 42, false},
		{"float id", `{"id":42.0,"role":"user","content":"x"}`, 42, false},
		{"missing id", `{"role":"user","content":"x"}`, 0, false},
		{"usage key", `{"id":1,"role":"assistant","content":"x","usage":{"prompt_tokens":1}}`, 1, true},
		{"numeric timestamp", `{"id":1,"role":"assistant","content":"x","timestamp":123}`, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.data), &m); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if m.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", m.ID, tt.wantID)
			}
			if (m.Usage != nil) != tt.usage {
				t.Errorf("Usage present = %v, want %v", m.Usage != nil, tt.usage)
			}
		})
	}

	var m Message
	if err := json.Unmarshal([]byte(`{"id":"abc"}`), &m); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestMessage_EncodeOmitsPreviewAndZeroTimestamp(t *testing.T) {
	msg := NewUserMessage("x", []Attachment{{Name: "a", MimeType: "text/plain", Payload: "eA==", PreviewHandle: "blob:onys/1"}})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "blob:") {
		t.Errorf("preview handle leaked into JSON: %s", s)
	}
	if strings.Contains(s, "timestamp") {
		t.Errorf("zero timestamp should be omitted: %s", s)
	}
	if !strings.Contains(s, `"base64":"eA=="`) {
		t.Errorf("payload key missing: %s", s)
	}
}

// =============================================================================
// ATTACHMENT TESTS
// =============================================================================

func TestAttachment_IsImage(t *testing.T) {
	tests := map[string]bool{
		"image/png":       true,
		"image/svg+xml":   true,
		"application/pdf": false,
		"text/plain":      false,
		"":                false,
	}
	for mime, want := range tests {
		if got := (Attachment{MimeType: mime}).IsImage(); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", mime, got, want)
		}
	}
}

func TestAttachment_Size(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		{"", 0},
		{"eA==", 1},
		{"eHk=", 2},
		{"eHl6", 3},
	}
	for _, tt := range tests {
		if got := (Attachment{Payload: tt.payload}).Size(); got != tt.want {
			t.Errorf("Size(%q) = %d, want %d", tt.payload, got, tt.want)
		}
	}
}

func TestSplitAttachments_PreservesOrder(t *testing.T) {
	atts := []Attachment{
		{Name: "1.png", MimeType: "image/png", Payload: "i1"},
		{Name: "a.pdf", MimeType: "application/pdf", Payload: "d1"},
		{Name: "2.jpg", MimeType: "image/jpeg", Payload: "i2"},
		{Name: "b.txt", MimeType: "text/plain", Payload: "d2"},
	}
	images, docs := SplitAttachments(atts)

	if len(images) != 2 || images[0] != "i1" || images[1] != "i2" {
		t.Errorf("images = %v", images)
	}
	if len(docs) != 2 || docs[0].Name != "a.pdf" || docs[1].Content != "d2" {
		t.Errorf("documents = %+v", docs)
	}

	images, docs = SplitAttachments(nil)
	if images == nil || docs == nil {
		t.Error("empty split should yield empty, non-nil slices")
	}
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestComputeStats(t *testing.T) {
	log := []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1", Usage: &Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 999}},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
		{Role: RoleAssistant, Content: "a3", Usage: &Usage{PromptTokens: 5, CompletionTokens: 7}},
		// User messages never count even if they carry usage.
		{Role: RoleUser, Content: "q3", Usage: &Usage{PromptTokens: 100}},
	}

	got := ComputeStats(log)
	want := SessionStats{PromptTokens: 15, CompletionTokens: 27, GrandTotal: 42}
	if got != want {
		t.Errorf("ComputeStats() = %+v, want %+v", got, want)
	}

	if got := ComputeStats(nil); got != (SessionStats{}) {
		t.Errorf("empty log stats = %+v", got)
	}
}
