// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/onys-chat/internal/model"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("usage ledger closed")

// Entry is one recorded exchange.
type Entry struct {
	SessionID string
	Provider  string
	Model     string
	Usage     model.Usage
	CreatedAt time.Time
}

// Total aggregates entries sharing a key (a model id or a session id).
type Total struct {
	Key              string    `json:"key,omitempty"`
	Exchanges        int       `json:"exchanges"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Last             time.Time `json:"last"`
}

// Ledger is a SQLite-backed usage store. It is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("usage: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Ledger) handle() (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, ErrClosed
	}
	return l.db, nil
}

// Record stores one exchange. A missing total is derived from its parts.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	db, err := l.handle()
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	total := e.Usage.TotalTokens
	if total == 0 {
		total = e.Usage.PromptTokens + e.Usage.CompletionTokens
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, provider, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Provider, e.Model,
		e.Usage.PromptTokens, e.Usage.CompletionTokens, total,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// ByModel returns totals grouped by model, largest first.
func (l *Ledger) ByModel(ctx context.Context) ([]Total, error) {
	return l.grouped(ctx, "model", 0)
}

// BySession returns totals grouped by session, most recent first. A
// positive limit caps the number of rows.
func (l *Ledger) BySession(ctx context.Context, limit int) ([]Total, error) {
	return l.grouped(ctx, "session_id", limit)
}

// Overall returns the grand total across every entry.
func (l *Ledger) Overall(ctx context.Context) (Total, error) {
	db, err := l.handle()
	if err != nil {
		return Total{}, err
	}
	var (
		t    Total
		last sql.NullInt64
	)
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
		        COALESCE(SUM(total_tokens), 0), MAX(created_at)
		 FROM exchanges`).Scan(&t.Exchanges, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &last)
	if err != nil {
		return Total{}, fmt.Errorf("query usage: %w", err)
	}
	if last.Valid {
		t.Last = time.UnixMilli(last.Int64)
	}
	return t, nil
}

func (l *Ledger) grouped(ctx context.Context, column string, limit int) ([]Total, error) {
	db, err := l.handle()
	if err != nil {
		return nil, err
	}

	order := "SUM(total_tokens) DESC"
	if column == "session_id" {
		order = "MAX(created_at) DESC"
	}
	var q strings.Builder
	fmt.Fprintf(&q, `SELECT %s, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens), MAX(created_at)
		FROM exchanges GROUP BY %s ORDER BY %s, %s`, column, column, order, column)
	args := []any{}
	if limit > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var out []Total
	for rows.Next() {
		var (
			t    Total
			last int64
		)
		if err := rows.Scan(&t.Key, &t.Exchanges, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &last); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		t.Last = time.UnixMilli(last)
		out = append(out, t)
	}
	return out, rows.Err()
}
