// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/config"
	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/render"
	ui "github.com/jeranaias/onys-chat/internal/ui/chat"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

func newChatCommand(a *app) *cobra.Command {
	var (
		sessionID string
		noWatch   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat TUI",
		Long: `Open the interactive chat TUI.

Enter sends, Alt+Enter inserts a newline, Alt+1..9 inserts an attachment
tag. Type /help for slash commands. Logs go to logging.file while the TUI
is running.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			log := logging.For("cli")

			client := a.client()
			log.Info("starting chat", "backend", client.BaseURL(), "timeout", client.Timeout())

			bridge := ui.NewBridge()
			ctrl := a.controller(client,
				chat.WithNotifier(bridge),
				chat.WithTokenCallback(bridge.Tokens),
			)
			defer ctrl.Close()

			if sessionID != "" {
				if err := ctrl.LoadSession(ctx, sessionID); err != nil {
					return newCommandError("chat", "load", err)
				}
			}

			model := ui.New(ctrl, bridge, ui.Options{
				Context:    ctx,
				Theme:      styles.NewTheme(),
				Renderer:   render.New(a.cfg.UI.Theme, os.Stdout),
				Logger:     logging.For("tui"),
				WordWrap:   a.cfg.UI.WordWrap,
				ShowTokens: a.cfg.UI.ShowTokens,
			})
			program := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)

			if !noWatch {
				if path := a.watchPath(); path != "" {
					go func() {
						err := config.Watch(ctx, path,
							func(cfg *config.Config) { program.Send(ui.ConfigReloadedMsg{Config: cfg}) },
							func(err error) { log.Warn("config reload failed", "err", err) },
						)
						if err != nil {
							log.Debug("config watch stopped", "err", err)
						}
					}()
				}
			}

			if _, err := program.Run(); err != nil && ctx.Err() == nil {
				return newCommandError("chat", "", err)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "load a stored session on start")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")
	return cmd
}

// watchPath returns the config file to watch, or "" when there is none on
// disk.
func (a *app) watchPath() string {
	path := a.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return ""
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
