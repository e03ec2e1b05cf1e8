// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP JSON client for the Onys REST API.
//
// # Endpoints
//
//   - POST   /chat/send         Send
//   - GET    /sessions/         ListSessions
//   - GET    /sessions/{id}     LoadSession
//   - POST   /sessions/save     SaveSession
//   - DELETE /sessions/{id}     DeleteSession
//   - GET    /providers/active  ActiveProviders
//   - GET    /settings/         Settings
//
// Requests are never retried: a failed send surfaces to the user, who can
// resend. Every request is bounded by the client timeout and the caller's
// context, and outbound traffic passes through a token-bucket limiter.
//
// # Usage
//
//	client := backend.NewClient("http://localhost:8004/api").
//	    WithTimeout(60 * time.Second).
//	    WithRateLimit(5, 10)
//	resp, err := client.Send(ctx, req)
package backend
