// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one chat session against the backend.
//
// The Controller owns the active session, the attachment staging area, the
// live token estimate for the input box, and the selected provider/model.
// A send moves through Idle → Composing → Sending → Settled → Idle:
//
//	ctrl := chat.NewController(client, chat.WithNotifier(n))
//	ctrl.SetInput("hello")
//	res, err := ctrl.Send(ctx)
//
// A send that does not pass the guard (nothing to send, no target, or a
// send already in flight) is refused silently: OutcomeRefused with a nil
// error. Transport failures keep the user's message, mark it failed and
// raise a Notification. A reply that arrives after the session was
// replaced is discarded.
//
// Interactive front ends split a send in two: Prepare runs synchronously
// and applies the optimistic update, Exchange.Run performs the request.
package chat
