// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/render"
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case notificationMsg:
		n := core.Notification(msg)
		m.notice = &n
		return m, m.bridge.waitNotification()

	case tokensMsg:
		// The status bar reads the count from the controller.
		return m, m.bridge.waitTokens()

	case sendDoneMsg:
		m.sending = false
		m.refresh()
		if msg.res.Outcome == core.OutcomeStale {
			m.log.Debug("reply discarded", "session", msg.res.SessionID)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case providersMsg:
		if msg.err != nil {
			m.setNotice(core.LevelWarning, "Could not load providers: "+msg.err.Error())
		} else if m.ctrl.Target().IsZero() {
			m.setNotice(core.LevelWarning, "No active providers. Add a key or URL in the web settings.")
		}
		return m, nil

	case sessionsMsg:
		if msg.err != nil {
			m.setNotice(core.LevelError, "Could not list sessions: "+msg.err.Error())
			return m, nil
		}
		m.sessions = msg.list
		m.showSessions = true
		m.refresh()
		return m, nil

	case sessionLoadedMsg:
		if msg.err != nil {
			m.setNotice(core.LevelError, msg.err.Error())
			return m, nil
		}
		m.showSessions = false
		m.setNotice(core.LevelInfo, "Loaded session "+shortID(msg.id))
		m.refresh()
		return m, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			m.setNotice(core.LevelError, msg.err.Error())
			return m, nil
		}
		m.setNotice(core.LevelInfo, "Deleted session "+shortID(msg.id))
		m.refresh()
		return m, m.listSessionsCmd()

	case savedMsg:
		if msg.err != nil {
			m.setNotice(core.LevelError, msg.err.Error())
		} else {
			m.setNotice(core.LevelInfo, "Session saved")
		}
		return m, nil

	case attachedMsg:
		if msg.err == nil && len(msg.added) > 0 {
			m.setNotice(core.LevelInfo, fmt.Sprintf("Attached %d file(s)", len(msg.added)))
		}
		m.layout()
		return m, nil

	case ConfigReloadedMsg:
		if msg.Config != nil {
			m.wordWrap = msg.Config.UI.WordWrap
			m.showTokens = msg.Config.UI.ShowTokens
			m.renderer = render.New(msg.Config.UI.Theme, os.Stdout)
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case matches(msg, m.keys.Quit):
		return m, m.quitCmd()

	case matches(msg, m.keys.Submit):
		return m.submit()

	case matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case matches(msg, m.keys.Tag):
		if i, ok := tagIndex(msg.String()); ok {
			m.ctrl.SetInput(m.input.Value())
			if text, inserted := m.ctrl.InsertTag(i); inserted {
				m.input.SetValue(text)
				m.input.CursorEnd()
			}
		}
		return m, nil

	case matches(msg, m.keys.Dismiss):
		if m.showSessions {
			m.showSessions = false
			m.refresh()
		}
		m.notice = nil
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.SetInput(after)
	}
	return m, cmd
}

// submit sends the input, or runs it as a slash command. A send the
// controller refuses changes nothing.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if strings.HasPrefix(strings.TrimSpace(value), "/") {
		m.input.Reset()
		m.ctrl.SetInput("")
		return m.runCommand(value)
	}

	m.ctrl.SetInput(value)
	x, reason := m.ctrl.Prepare()
	if x == nil {
		m.log.Debug("send refused", "reason", reason)
		return m, nil
	}

	m.log.Debug("sending", "session", x.SessionID(), "message", x.UserMessage().ID, "target", x.Target())
	m.input.Reset()
	m.sending = true
	m.showSessions = false
	m.notice = nil
	m.layout()
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.sendCmd(x))
}

// setNotice shows a notice raised by the view itself.
func (m *Model) setNotice(level core.Level, text string) {
	m.notice = &core.Notification{Level: level, Message: text}
}

// layout sizes the viewport and input to the window.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	m.input.SetWidth(m.width)
	h := m.height - headerHeight - stripHeight - (inputHeight + 1) - noticeHeight - statusHeight
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// refresh re-renders the viewport content and scrolls to the end.
func (m *Model) refresh() {
	if m.width == 0 {
		return
	}
	if m.showSessions {
		m.viewport.SetContent(m.renderSessions())
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}
