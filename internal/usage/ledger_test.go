// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/onys-chat/internal/model"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndTotals(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{SessionID: "s1", Provider: "openai", Model: "gpt-4o", Usage: model.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, CreatedAt: base},
		{SessionID: "s1", Provider: "openai", Model: "gpt-4o", Usage: model.Usage{PromptTokens: 5, CompletionTokens: 5}, CreatedAt: base.Add(time.Minute)},
		{SessionID: "s2", Provider: "runpod", Model: "mistral-7b", Usage: model.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}, CreatedAt: base.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, l.Record(ctx, e))
	}

	byModel, err := l.ByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "gpt-4o", byModel[0].Key)
	assert.Equal(t, 2, byModel[0].Exchanges)
	assert.Equal(t, 15, byModel[0].PromptTokens)
	assert.Equal(t, 25, byModel[0].CompletionTokens)
	assert.Equal(t, 40, byModel[0].TotalTokens, "missing total is derived")

	bySession, err := l.BySession(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	assert.Equal(t, "s2", bySession[0].Key, "most recent session first")
	assert.True(t, bySession[0].Last.Equal(base.Add(time.Hour)))

	limited, err := l.BySession(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := l.Overall(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Exchanges)
	assert.Equal(t, 43, all.TotalTokens)
}

func TestOverallEmpty(t *testing.T) {
	l := openTemp(t)
	all, err := l.Overall(context.Background())
	require.NoError(t, err)
	assert.Zero(t, all.Exchanges)
	assert.True(t, all.Last.IsZero())
}

func TestConcurrentRecord(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(ctx, Entry{SessionID: "s", Model: "m", Usage: model.Usage{TotalTokens: 1}}))
		}()
	}
	wg.Wait()

	all, err := l.Overall(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, all.Exchanges)
}

func TestClosed(t *testing.T) {
	l := openTemp(t)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Record(context.Background(), Entry{}), ErrClosed)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
