// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
)

// Refusal reasons. These never surface as errors from Send; they are
// reported in Result.Reason and logged at debug level.
var (
	ErrNothingToSend = errors.New("nothing to send")
	ErrNoTarget      = errors.New("no provider or model selected")
	ErrBusy          = errors.New("a send is already in flight")
)

var (
	// ErrStaleResponse marks a reply for a session that is no longer active.
	ErrStaleResponse = errors.New("stale response")

	// ErrNoCatalog is returned by SelectTarget before providers are loaded.
	ErrNoCatalog = errors.New("providers not loaded")

	// ErrNoSuchMessage is returned when a message id is not in the log.
	ErrNoSuchMessage = errors.New("no such message")

	// ErrNoSuchAttachment is returned for an attachment index out of range.
	ErrNoSuchAttachment = errors.New("no such attachment")
)

// TransportError wraps a failed exchange with the backend: a connection
// error, a non-2xx status, or a timeout.
type TransportError struct {
	MessageID int64
	Err       error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
