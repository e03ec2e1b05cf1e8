// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	core "github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/render"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

const (
	headerHeight = 1
	stripHeight  = 1
	inputHeight  = 3
	noticeHeight = 1
	statusHeight = 1

	defaultWordWrap = 100
)

// Options configures the chat view.
type Options struct {
	// Context bounds every backend call started from the view.
	Context context.Context

	Theme    *styles.Theme
	Renderer *render.Renderer
	Logger   *log.Logger

	// WordWrap caps the width of rendered replies.
	WordWrap int

	// ShowTokens shows the input estimate and session totals.
	ShowTokens bool
}

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctx    context.Context
	ctrl   *core.Controller
	bridge *Bridge
	log    *log.Logger

	theme    *styles.Theme
	renderer *render.Renderer
	keys     KeyMap

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width      int
	height     int
	ready      bool
	wordWrap   int
	showTokens bool

	sending      bool
	notice       *core.Notification
	sessions     []model.SessionSummary
	showSessions bool
}

// New creates the chat view over ctrl. bridge must be the notifier and
// token callback the controller was built with.
func New(ctrl *core.Controller, bridge *Bridge, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.ThemeAuto, os.Stdout)
	}
	if opts.WordWrap <= 0 {
		opts.WordWrap = defaultWordWrap
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Message, or /help"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	return Model{
		ctx:        opts.Context,
		ctrl:       ctrl,
		bridge:     bridge,
		log:        logging.OrFor(opts.Logger, "tui"),
		theme:      opts.Theme,
		renderer:   opts.Renderer,
		keys:       keys,
		viewport:   viewport.New(0, 0),
		input:      ta,
		spinner:    sp,
		wordWrap:   opts.WordWrap,
		showTokens: opts.ShowTokens,
	}
}

// Init starts the notification listeners and loads the provider catalog.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.bridge.waitNotification(),
		m.bridge.waitTokens(),
		m.refreshProvidersCmd(),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) sendCmd(x *core.Exchange) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := x.Run(ctx)
		return sendDoneMsg{res: res, err: err}
	}
}

func (m Model) refreshProvidersCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.RefreshProviders(ctx)
		return providersMsg{err: err}
	}
}

func (m Model) listSessionsCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		list, err := ctrl.Sessions(ctx)
		return sessionsMsg{list: list, err: err}
	}
}

func (m Model) loadSessionCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sessionLoadedMsg{id: id, err: ctrl.LoadSession(ctx, id)}
	}
}

func (m Model) deleteSessionCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sessionDeletedMsg{id: id, err: ctrl.DeleteSession(ctx, id)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return savedMsg{err: ctrl.Save(ctx)}
	}
}

// quitCmd saves unsaved changes before quitting.
func (m Model) quitCmd() tea.Cmd {
	if !m.ctrl.Session().Dirty() {
		return tea.Quit
	}
	return tea.Sequence(m.saveCmd(), tea.Quit)
}

// matches reports whether msg triggers binding b.
func matches(msg tea.KeyMsg, b key.Binding) bool {
	return key.Matches(msg, b)
}
