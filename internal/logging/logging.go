// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide structured logger.
//
// Components obtain a prefixed sub-logger with For("chat") when they are
// constructed. Setup must run before components are built: sub-loggers
// capture the root's writer and level at creation time.
//
// While the TUI owns the terminal, logs go to a file (default
// ~/.onys/onys.log) so they never corrupt the screen.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Options controls Setup.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// File, when set, receives log output instead of Stderr.
	File string

	// JSON switches to machine-readable output.
	JSON bool
}

var (
	rootMu sync.RWMutex
	root   = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
)

// Setup replaces the root logger. The returned closer releases the log
// file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	level := log.WarnLevel
	if opts.Level != "" {
		lvl, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: opts.File != "",
	})
	if opts.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}

	rootMu.Lock()
	root = logger
	rootMu.Unlock()
	return closer, nil
}

// Root returns the current root logger.
func Root() *log.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// For returns a sub-logger tagged with a component prefix.
func For(component string) *log.Logger {
	return Root().WithPrefix(component)
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *log.Logger {
	return log.New(io.Discard)
}

// OrFor returns l, or a component logger when l is nil.
func OrFor(l *log.Logger, component string) *log.Logger {
	if l != nil {
		return l
	}
	return For(component)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
