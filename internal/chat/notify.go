// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/log"

// Level is the severity of a Notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user-visible message raised by the controller.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// logNotifier is used when no notifier is configured.
type logNotifier struct {
	log *log.Logger
}

func (n logNotifier) Notify(note Notification) {
	switch note.Level {
	case LevelError:
		n.log.Error(note.Message, "err", note.Err)
	case LevelWarning:
		n.log.Warn(note.Message, "err", note.Err)
	default:
		n.log.Info(note.Message)
	}
}
