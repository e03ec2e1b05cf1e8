// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	core "github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/session"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
	"github.com/jeranaias/onys-chat/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Starting onys..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStrip(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderNotice(),
		m.renderStatus(),
	)
}

// =============================================================================
// HEADER AND STATUS
// =============================================================================

func (m Model) renderHeader() string {
	left := m.theme.HeaderBrand.Render("onys")
	right := m.theme.HeaderMeta.Render(fmt.Sprintf("session %s  %s",
		shortID(m.ctrl.Session().ID()), m.ctrl.Target()))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderStatus() string {
	var parts []string
	if m.sending {
		parts = append(parts, m.spinner.View()+" sending")
	} else {
		parts = append(parts, m.ctrl.State().String())
	}

	if m.showTokens {
		stats := m.ctrl.Stats()
		parts = append(parts,
			m.kv("input", fmt.Sprintf("~%d", m.ctrl.InputTokens())),
			m.kv("prompt", fmt.Sprint(stats.PromptTokens)),
			m.kv("completion", fmt.Sprint(stats.CompletionTokens)),
			m.kv("total", fmt.Sprint(stats.GrandTotal)),
		)
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	line := strings.Join(parts, "  ") + "  " + m.theme.Help.Render(strings.Join(help, " | "))
	return m.theme.StatusBar.Width(m.width).Render(util.Truncate(line, m.width-2))
}

func (m Model) kv(k, v string) string {
	return m.theme.StatusKey.Render(k+" ") + m.theme.StatusValue.Render(v)
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	text := util.Truncate(strings.ReplaceAll(m.notice.Message, "\n", " "), m.width-6)
	switch m.notice.Level {
	case core.LevelError:
		return m.theme.NoticeError.Render(styles.StatusIndicators.Error + " " + text)
	case core.LevelWarning:
		return m.theme.NoticeWarning.Render(styles.StatusIndicators.Warning + " " + text)
	default:
		return m.theme.NoticeInfo.Render(styles.StatusIndicators.Info + " " + text)
	}
}

// renderStrip shows the staged attachments with their tags.
func (m Model) renderStrip() string {
	staged := m.ctrl.Attachments().Staged()
	if len(staged) == 0 {
		return m.theme.Help.Render("no attachments  /attach <path> to add")
	}
	chips := make([]string, len(staged))
	for i, a := range staged {
		chips[i] = m.theme.Chip.Render(m.theme.ChipTag.Render(attachments.Tag(i)) + " " + util.Truncate(a.Name, 24))
	}
	return util.Truncate(strings.Join(chips, ""), m.width)
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (m Model) contentWidth() int {
	w := m.width - 4
	if m.wordWrap > 0 && w > m.wordWrap {
		w = m.wordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderConversation() string {
	snap := m.ctrl.Session().Snapshot()
	if len(snap.Messages) == 0 {
		return m.theme.Help.Render(welcomeText)
	}

	width := m.contentWidth()
	var sb strings.Builder
	for i, msg := range snap.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(i+1, msg, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderMessage(n int, msg model.Message, width int) string {
	var sb strings.Builder

	if msg.IsAssistant() {
		label := m.theme.AssistantLabel.Render(fmt.Sprintf("#%d %s", n, msg.Role.DisplayName()))
		var meta []string
		if msg.Model != "" {
			meta = append(meta, msg.Model)
		}
		if !msg.Timestamp.IsZero() {
			meta = append(meta, msg.Timestamp.Format("15:04"))
		}
		if msg.Usage != nil {
			meta = append(meta, fmt.Sprintf("%d+%d tokens", msg.Usage.PromptTokens, msg.Usage.CompletionTokens))
		}
		sb.WriteString(label)
		if len(meta) > 0 {
			sb.WriteString(" " + m.theme.MessageMeta.Render(strings.Join(meta, " · ")))
		}
		sb.WriteString("\n")
		sb.WriteString(m.renderer.Render(msg.Content, width))
		return sb.String()
	}

	sb.WriteString(m.theme.UserLabel.Render(fmt.Sprintf("#%d %s", n, msg.Role.DisplayName())))
	switch m.ctrl.Session().Delivery(msg.ID) {
	case session.Pending:
		sb.WriteString(" " + m.theme.Pending.Render(styles.StatusIndicators.Pending+" sending"))
	case session.Failed:
		sb.WriteString(" " + m.theme.Failed.Render(styles.StatusIndicators.Error+" not delivered"))
	}
	sb.WriteString("\n")
	if strings.TrimSpace(msg.Content) != "" {
		sb.WriteString(m.theme.MessageBody.Width(width).Render(msg.Content))
		sb.WriteString("\n")
	}
	for i, a := range msg.Attachments {
		sb.WriteString(m.theme.MessageMeta.Render(fmt.Sprintf("  %s %s (%s)", attachments.Tag(i), a.Name, a.MimeType)))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return m.theme.Help.Render("No stored sessions.")
	}
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderBrand.Render("Sessions") + m.theme.Help.Render("  /load <n>  /delete <n>  Esc to close") + "\n\n")
	for i, s := range m.sessions {
		marker := "  "
		if s.ID == m.ctrl.Session().ID() {
			marker = "* "
		}
		fmt.Fprintf(&sb, "%s%3d  %s  %s\n", marker, i+1,
			m.theme.SessionID.Render(util.PadRight(shortID(s.ID), 10)),
			m.theme.SessionTitle.Render(s.Title))
	}
	return sb.String()
}

const welcomeText = `Start typing and press Enter to send.

  /attach <path>   stage files, then /tag <n> to reference them
  /model           list providers and models
  /sessions        browse stored sessions
  /help            all commands`

// shortID abbreviates a session id for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
