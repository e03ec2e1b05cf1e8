// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/backend"
	"github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/config"
	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/tokens"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
	"github.com/jeranaias/onys-chat/internal/usage"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds the global flags and the resources a command run opens.
type app struct {
	configPath string
	baseURL    string
	logLevel   string
	jsonOut    bool

	cfg     *config.Config
	closers []io.Closer
}

// load reads the configuration and applies flag overrides. tui routes log
// output to the log file so it does not draw over the screen.
func (a *app) load(cmd *cobra.Command, tui bool) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
		if err != nil {
			return &ConfigError{Path: a.configPath, Err: err}
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return &ConfigError{Err: err}
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderWarning(fmt.Sprintf("%v (using defaults)", err)))
		}
	}

	if a.baseURL != "" {
		cfg.Backend.URL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	opts := logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON}
	if tui {
		opts.File = cfg.Logging.File
	}
	closer, err := logging.Setup(opts)
	if err != nil {
		return &ConfigError{Err: err}
	}
	a.closers = append(a.closers, closer)
	a.cfg = cfg
	return nil
}

// run wraps a command body so the resources it opened are released
// whether or not it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// client builds the backend client from the configuration.
func (a *app) client() *backend.Client {
	return backend.NewClient(a.cfg.Backend.URL).
		WithTimeout(a.cfg.Backend.Timeout()).
		WithRateLimit(a.cfg.Backend.RateLimit, a.cfg.Backend.Burst).
		WithLogger(logging.For("backend"))
}

// ledger opens the usage ledger, or returns nil when it is disabled.
func (a *app) ledger() (*usage.Ledger, error) {
	if !a.cfg.Usage.Enabled {
		return nil, nil
	}
	l, err := usage.Open(a.cfg.Usage.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, l)
	return l, nil
}

func (a *app) estimator() *tokens.Estimator {
	return tokens.NewEstimator(a.cfg.Chat.TokenModel, tokens.WithLogger(logging.For("tokens")))
}

// controller builds a chat controller over b. Usage recording failures
// only disable recording.
func (a *app) controller(b chat.Backend, extra ...chat.Option) *chat.Controller {
	opts := []chat.Option{
		chat.WithLogger(logging.For("chat")),
		chat.WithEstimator(a.estimator(), a.cfg.Chat.Debounce()),
		chat.WithAttachments(attachments.NewStore(
			attachments.WithMaxBytes(a.cfg.Chat.MaxAttachmentBytes()),
			attachments.WithLogger(logging.For("attachments")),
		)),
		chat.WithTimeout(a.cfg.Backend.Timeout()),
		chat.WithAutoSave(a.cfg.Backend.AutoSave),
		chat.WithPreferredTarget(a.cfg.Chat.DefaultProvider, a.cfg.Chat.DefaultModel),
	}
	if l, err := a.ledger(); err != nil {
		logging.For("cli").Warn("usage ledger unavailable", "err", err)
	} else if l != nil {
		opts = append(opts, chat.WithUsageRecorder(l))
	}
	return chat.NewController(b, append(opts, extra...)...)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the onys command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "onys",
		Short: "Terminal client for the Onys chat backend",
		Long: `onys talks to an Onys backend (default http://localhost:8004/api).

It runs an interactive chat TUI, sends one-shot questions, manages stored
sessions and keeps a local ledger of token usage.

Quick start:
  onys chat                          open the chat TUI
  onys ask "Summarize this" -a a.pdf one-shot send with an attachment
  onys sessions list                 stored sessions`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoConfig] == "true" {
				return nil
			}
			return a.load(cmd, cmd.Annotations[annotationTUI] == "true")
		},
	}
	root.SetVersionTemplate("onys {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.onys/config.toml)")
	pf.StringVar(&a.baseURL, "url", "", "backend API root, overrides backend.url")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonOut, "json", false, "machine-readable JSON output")

	root.AddCommand(
		newChatCommand(a),
		newAskCommand(a),
		newSessionsCommand(a),
		newProvidersCommand(a),
		newTokensCommand(a),
		newUsageCommand(a),
		newConfigCommand(a),
	)
	return root
}

const (
	annotationTUI      = "onys/tui"
	annotationNoConfig = "onys/no-config"
)

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ExitGeneralError
	}
	fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
	return ExitCode(err)
}
