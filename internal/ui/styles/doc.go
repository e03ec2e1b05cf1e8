// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors and Lip Gloss styles of the onys TUI.
//
// Colors are lipgloss.AdaptiveColor values, so the same palette works on
// light and dark terminals. Status text always carries an ASCII indicator
// ([OK], [X], [!], [i]) in addition to color.
package styles
