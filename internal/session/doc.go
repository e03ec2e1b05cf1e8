// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the active chat session: its identifier and its
// append-only message log.
//
// # Key Types
//
//   - State: the single active session, safe for concurrent use
//   - Delivery: send status of a user message (pending, confirmed, failed)
//   - Snapshot: a consistent copy of id and log taken under one lock
//
// # Invariants
//
//   - Messages are never modified once appended.
//   - Exactly one session id is active. ReplaceSession and NewSession swap
//     the id and log together; readers never see one without the other.
//   - Delivery status lives beside the log, keyed by message id, so an
//     optimistic append can be confirmed or failed without touching the
//     message itself.
//
// # Usage
//
//	st := session.New()
//	msg, err := st.AppendUserMessage("hello", nil)
//	if _, ok := st.AppendAssistantTo(id, "hi", "gpt-4o", usage); !ok {
//	    // session was replaced while the request was in flight
//	}
//	stats := st.ComputeStats()
package session
