// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Theme names accepted by New.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemePlain = "plain"
)

const (
	defaultWidth = 80
	maxWidth     = 120
)

// Renderer renders markdown for a terminal. Glamour renderers are built
// lazily per wrap width.
type Renderer struct {
	style string

	mu    sync.Mutex
	byWid map[int]*glamour.TermRenderer
}

// New creates a renderer for theme. ThemeAuto picks dark or light from the
// terminal background, and plain when out is not a terminal.
func New(theme string, out io.Writer) *Renderer {
	return &Renderer{
		style: resolveStyle(theme, out),
		byWid: make(map[int]*glamour.TermRenderer),
	}
}

// Style returns the glamour standard style in use.
func (r *Renderer) Style() string {
	return r.style
}

// Render renders content wrapped at width. A non-positive width uses the
// default. On failure the source text is returned unchanged.
func (r *Renderer) Render(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	tr, err := r.renderer(width)
	if err != nil {
		return content
	}
	out, err := tr.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (r *Renderer) renderer(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.byWid[width]; ok {
		return tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	r.byWid[width] = tr
	return tr, nil
}

// resolveStyle maps a theme name onto a glamour standard style.
func resolveStyle(theme string, out io.Writer) string {
	switch strings.ToLower(theme) {
	case ThemeDark:
		return "dark"
	case ThemeLight:
		return "light"
	case ThemePlain, "notty", "none":
		return "notty"
	}
	if !IsTerminal(out) {
		return "notty"
	}
	if termenv.NewOutput(out).HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the usable width of w, clamped to a readable
// maximum, or the default when w is not a terminal.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	width -= 4
	if width > maxWidth {
		width = maxWidth
	}
	return width
}
