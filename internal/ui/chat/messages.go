// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/config"
	"github.com/jeranaias/onys-chat/internal/model"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ConfigReloadedMsg carries a configuration reloaded from disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}

type notificationMsg core.Notification

type tokensMsg int

type sendDoneMsg struct {
	res core.Result
	err error
}

type sessionsMsg struct {
	list []model.SessionSummary
	err  error
}

type sessionLoadedMsg struct {
	id  string
	err error
}

type sessionDeletedMsg struct {
	id  string
	err error
}

type providersMsg struct {
	err error
}

type savedMsg struct {
	err error
}

type attachedMsg struct {
	added []model.Attachment
	err   error
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge carries controller callbacks, which fire on background
// goroutines, into the Bubble Tea event loop.
type Bridge struct {
	notes  chan core.Notification
	tokens chan int
}

// NewBridge creates a bridge.
func NewBridge() *Bridge {
	return &Bridge{
		notes:  make(chan core.Notification, 16),
		tokens: make(chan int, 1),
	}
}

// Notify implements core.Notifier. It never blocks; notifications beyond
// the buffer are dropped.
func (b *Bridge) Notify(n core.Notification) {
	select {
	case b.notes <- n:
	default:
	}
}

// Tokens publishes an input token count, replacing an unread one.
func (b *Bridge) Tokens(n int) {
	for {
		select {
		case b.tokens <- n:
			return
		default:
		}
		select {
		case <-b.tokens:
		default:
		}
	}
}

func (b *Bridge) waitNotification() tea.Cmd {
	return func() tea.Msg {
		return notificationMsg(<-b.notes)
	}
}

func (b *Bridge) waitTokens() tea.Cmd {
	return func() tea.Msg {
		return tokensMsg(<-b.tokens)
	}
}
