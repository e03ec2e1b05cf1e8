// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/onys-chat/internal/model"
)

// Errors returned by State.
var (
	// ErrEmptyMessage rejects a user message with no text and no attachments.
	ErrEmptyMessage = errors.New("message has no content or attachments")

	// ErrInvalidSessionID rejects an empty session identifier.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// =============================================================================
// DELIVERY STATUS
// =============================================================================

// Delivery is the send status of a user message.
type Delivery int

const (
	// Confirmed is the status of every message not tracked otherwise,
	// including all messages loaded from history.
	Confirmed Delivery = iota
	Pending
	Failed
)

// String returns a human-readable name for the status.
func (d Delivery) String() string {
	switch d {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "confirmed"
	}
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Snapshot is a consistent copy of the session.
type Snapshot struct {
	ID        string
	Messages  []model.Message
	StartedAt time.Time
	Version   uint64
}

// State is the active session. All methods are safe for concurrent use.
type State struct {
	mu        sync.RWMutex
	id        string
	messages  []model.Message
	delivery  map[int64]Delivery
	startedAt time.Time

	// version increments on every mutation; saved records the version last
	// persisted.
	version uint64
	saved   uint64
}

// New creates a State holding a fresh, empty session.
func New() *State {
	s := &State{}
	s.reset(newSessionID(), nil)
	return s
}

func newSessionID() string {
	return uuid.NewString()
}

// reset must be called with mu held (or before the State is shared).
func (s *State) reset(id string, messages []model.Message) {
	s.id = id
	s.messages = messages
	s.delivery = make(map[int64]Delivery)
	s.startedAt = time.Now()
	s.version++
	s.saved = s.version
}

// ID returns the active session identifier.
func (s *State) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Messages returns a copy of the message log.
func (s *State) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyMessages()
}

func (s *State) copyMessages() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns the id and log as one consistent view.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.id,
		Messages:  s.copyMessages(),
		StartedAt: s.startedAt,
		Version:   s.version,
	}
}

// Version returns a counter that changes whenever the session changes.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// =============================================================================
// APPEND OPERATIONS
// =============================================================================

// AppendUserMessage appends a user message in the Pending state. The
// attachments are copied into the message. A message with blank text and
// no attachments is rejected with ErrEmptyMessage.
func (s *State) AppendUserMessage(text string, attachments []model.Attachment) (model.Message, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return model.Message{}, ErrEmptyMessage
	}
	msg := model.NewUserMessage(text, attachments)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.delivery[msg.ID] = Pending
	s.version++
	return msg, nil
}

// AppendAssistantMessage appends an assistant message to the active
// session. The timestamp is taken now, at append time.
func (s *State) AppendAssistantMessage(content, modelID string, usage *model.Usage) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAssistantLocked(content, modelID, usage)
}

// AppendAssistantTo appends an assistant message only if sessionID is
// still the active session. The comparison and the append happen under
// one lock. It returns false, appending nothing, when the session has been
// replaced.
func (s *State) AppendAssistantTo(sessionID, content, modelID string, usage *model.Usage) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != sessionID {
		return model.Message{}, false
	}
	return s.appendAssistantLocked(content, modelID, usage), true
}

func (s *State) appendAssistantLocked(content, modelID string, usage *model.Usage) model.Message {
	msg := model.NewAssistantMessage(content, modelID, usage)
	s.messages = append(s.messages, msg)
	s.version++
	return msg
}

// =============================================================================
// DELIVERY TRACKING
// =============================================================================

// Confirm marks a pending user message as delivered.
func (s *State) Confirm(messageID int64) {
	s.setDelivery(messageID, Confirmed)
}

// Fail marks a pending user message as not delivered. The message stays in
// the log.
func (s *State) Fail(messageID int64) {
	s.setDelivery(messageID, Failed)
}

func (s *State) setDelivery(messageID int64, d Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Unknown ids belong to a replaced session.
	if _, ok := s.delivery[messageID]; !ok {
		return
	}
	if d == Confirmed {
		delete(s.delivery, messageID)
	} else {
		s.delivery[messageID] = d
	}
	s.version++
}

// Delivery returns the send status of a message.
func (s *State) Delivery(messageID int64) Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delivery[messageID]
}

// Failed returns the ids of messages whose send failed.
func (s *State) Failed() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for _, m := range s.messages {
		if s.delivery[m.ID] == Failed {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// NewSession starts a fresh, empty session and returns its id.
func (s *State) NewSession() string {
	id := newSessionID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(id, nil)
	return id
}

// ReplaceSession swaps in a stored session. Messages without an id are
// given one; the generator is advanced past stored ids so later appends
// sort after them.
func (s *State) ReplaceSession(sessionID string, messages []model.Message) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSessionID
	}

	loaded := make([]model.Message, len(messages))
	copy(loaded, messages)
	for _, m := range loaded {
		model.ObserveID(m.ID)
	}
	for i := range loaded {
		if loaded[i].ID == 0 {
			loaded[i].ID = model.NextID()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(sessionID, loaded)
	return nil
}

// ComputeStats folds usage over the current log. It is recomputed on
// every call.
func (s *State) ComputeStats() model.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ComputeStats(s.messages)
}

// =============================================================================
// PERSISTENCE TRACKING
// =============================================================================

// Dirty reports whether the session changed since it was last marked saved.
func (s *State) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.saved
}

// MarkSaved records that the snapshot taken at version was persisted. It
// is ignored if the session was replaced since.
func (s *State) MarkSaved(sessionID string, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == sessionID && version > s.saved {
		s.saved = version
	}
}
