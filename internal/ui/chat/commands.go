// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/attachments"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m *Model, args []string) tea.Cmd

type commandSpec struct {
	handler CommandHandler
	usage   string
}

// commandHandlers maps command names, aliases included, to handlers.
var commandHandlers map[string]commandSpec

func init() {
	commandHandlers = map[string]commandSpec{
		"help":      {handleHelpCommand, "/help"},
		"h":         {handleHelpCommand, ""},
		"?":         {handleHelpCommand, ""},
		"quit":      {handleQuitCommand, "/quit"},
		"q":         {handleQuitCommand, ""},
		"exit":      {handleQuitCommand, ""},
		"new":       {handleNewCommand, "/new"},
		"n":         {handleNewCommand, ""},
		"sessions":  {handleSessionsCommand, "/sessions"},
		"list":      {handleSessionsCommand, ""},
		"load":      {handleLoadCommand, "/load <n|id>"},
		"l":         {handleLoadCommand, ""},
		"delete":    {handleDeleteCommand, "/delete <n|id>"},
		"attach":    {handleAttachCommand, "/attach <path...>"},
		"a":         {handleAttachCommand, ""},
		"rm":        {handleRemoveCommand, "/rm <n>"},
		"reuse":     {handleReuseCommand, "/reuse <message> [attachment]"},
		"tag":       {handleTagCommand, "/tag <n>"},
		"t":         {handleTagCommand, ""},
		"model":     {handleModelCommand, "/model [provider [model]]"},
		"m":         {handleModelCommand, ""},
		"providers": {handleProvidersCommand, "/providers"},
		"save":      {handleSaveCommand, "/save"},
		"s":         {handleSaveCommand, ""},
	}
}

// parseCommand splits "/name arg..." into its parts.
func parseCommand(input string) (name string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// runCommand dispatches a slash command.
func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	name, args, ok := parseCommand(input)
	if !ok {
		return m, nil
	}
	spec, found := commandHandlers[name]
	if !found {
		m.setNotice(core.LevelWarning, fmt.Sprintf("Unknown command /%s. Try /help", name))
		return m, nil
	}
	cmd := spec.handler(&m, args)
	return m, cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func handleHelpCommand(m *Model, _ []string) tea.Cmd {
	var usages []string
	for _, spec := range commandHandlers {
		if spec.usage != "" {
			usages = append(usages, spec.usage)
		}
	}
	sort.Strings(usages)
	m.setNotice(core.LevelInfo, strings.Join(usages, "  "))
	return nil
}

func handleQuitCommand(m *Model, _ []string) tea.Cmd {
	return m.quitCmd()
}

func handleNewCommand(m *Model, _ []string) tea.Cmd {
	id := m.ctrl.NewSession()
	m.showSessions = false
	m.setNotice(core.LevelInfo, "Started session "+shortID(id))
	m.refresh()
	return nil
}

func handleSessionsCommand(m *Model, _ []string) tea.Cmd {
	return m.listSessionsCmd()
}

func handleLoadCommand(m *Model, args []string) tea.Cmd {
	id, ok := m.resolveSession(args)
	if !ok {
		return nil
	}
	return m.loadSessionCmd(id)
}

func handleDeleteCommand(m *Model, args []string) tea.Cmd {
	id, ok := m.resolveSession(args)
	if !ok {
		return nil
	}
	return m.deleteSessionCmd(id)
}

func handleAttachCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.setNotice(core.LevelWarning, "Usage: /attach <path...>")
		return nil
	}
	sources := make([]attachments.Source, len(args))
	for i, p := range args {
		sources[i] = attachments.FromPath(p)
	}
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		added, err := ctrl.AddFiles(ctx, sources...)
		return attachedMsg{added: added, err: err}
	}
}

func handleRemoveCommand(m *Model, args []string) tea.Cmd {
	n, ok := m.intArg(args, 0, "Usage: /rm <n>")
	if !ok {
		return nil
	}
	if n < 1 || n > m.ctrl.Attachments().Len() {
		m.setNotice(core.LevelWarning, fmt.Sprintf("No attachment %d", n))
		return nil
	}
	m.ctrl.RemoveAttachment(n - 1)
	return nil
}

func handleReuseCommand(m *Model, args []string) tea.Cmd {
	n, ok := m.intArg(args, 0, "Usage: /reuse <message> [attachment]")
	if !ok {
		return nil
	}
	idx := 1
	if len(args) > 1 {
		if idx, ok = m.intArg(args, 1, "Usage: /reuse <message> [attachment]"); !ok {
			return nil
		}
	}
	msgs := m.ctrl.Session().Messages()
	if n < 1 || n > len(msgs) {
		m.setNotice(core.LevelWarning, fmt.Sprintf("No message #%d", n))
		return nil
	}
	a, err := m.ctrl.Reuse(msgs[n-1].ID, idx-1)
	if err != nil {
		m.setNotice(core.LevelWarning, err.Error())
		return nil
	}
	m.setNotice(core.LevelInfo, "Re-attached "+a.Name)
	return nil
}

func handleTagCommand(m *Model, args []string) tea.Cmd {
	n, ok := m.intArg(args, 0, "Usage: /tag <n>")
	if !ok {
		return nil
	}
	text, inserted := m.ctrl.InsertTag(n - 1)
	if !inserted {
		m.setNotice(core.LevelWarning, fmt.Sprintf("No attachment %d", n))
		return nil
	}
	m.input.SetValue(text)
	m.input.CursorEnd()
	return nil
}

func handleModelCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		cat := m.ctrl.Catalog()
		if cat == nil || cat.Len() == 0 {
			m.setNotice(core.LevelWarning, "No active providers")
			return nil
		}
		var parts []string
		for _, p := range cat.Providers() {
			parts = append(parts, p.ID+": "+strings.Join(p.Models, ", "))
		}
		m.setNotice(core.LevelInfo, strings.Join(parts, " | "))
		return nil
	}
	modelID := ""
	if len(args) > 1 {
		modelID = args[1]
	}
	t, err := m.ctrl.SelectTarget(args[0], modelID)
	if err != nil {
		m.setNotice(core.LevelWarning, err.Error())
		return nil
	}
	m.setNotice(core.LevelInfo, "Using "+t.String())
	return nil
}

func handleProvidersCommand(m *Model, _ []string) tea.Cmd {
	return m.refreshProvidersCmd()
}

func handleSaveCommand(m *Model, _ []string) tea.Cmd {
	return m.saveCmd()
}

// =============================================================================
// ARGUMENT HELPERS
// =============================================================================

func (m *Model) intArg(args []string, i int, usage string) (int, bool) {
	if len(args) <= i {
		m.setNotice(core.LevelWarning, usage)
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		m.setNotice(core.LevelWarning, usage)
		return 0, false
	}
	return n, true
}

// resolveSession accepts a position in the last /sessions listing or an id.
func (m *Model) resolveSession(args []string) (string, bool) {
	if len(args) == 0 {
		m.setNotice(core.LevelWarning, "Give a session number from /sessions or an id")
		return "", false
	}
	if n, err := strconv.Atoi(args[0]); err == nil && n >= 1 && n <= len(m.sessions) {
		return m.sessions[n-1].ID, true
	}
	return args[0], true
}
