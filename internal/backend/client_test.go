// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/util"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/api/").WithLogger(logging.Nop())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.Timeout())

	c = NewClient("http://example.test/api/").WithTimeout(5 * time.Second)
	assert.Equal(t, "http://example.test/api", c.BaseURL())
	assert.Equal(t, 5*time.Second, c.Timeout())
}

func TestSendPayloadAndResponse(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"hi","model_used":"gpt-4o","provider":"openai","usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`))
	})

	msg := model.NewUserMessage("hello", nil)
	resp, err := c.Send(context.Background(), ChatRequest{
		ChatID:     "c1",
		ProviderID: "openai",
		ModelID:    "gpt-4o",
		Messages:   []model.Message{msg},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, "gpt-4o", resp.ModelUsed)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)

	assert.Equal(t, "c1", got["chat_id"])
	assert.Equal(t, "openai", got["provider_id"])
	assert.Equal(t, "gpt-4o", got["model_id"])
	assert.Equal(t, []any{}, got["images"], "images must be an empty array, not null")
	assert.Equal(t, []any{}, got["documents"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])
}

func TestSendWithoutUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"ok"}`))
	})
	resp, err := c.Send(context.Background(), ChatRequest{ChatID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Nil(t, resp.Usage)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		detail   string
	}{
		{"fastapi string detail", http.StatusNotFound, `{"detail":"Provider not found"}`, ErrNotFound, "Provider not found"},
		{"validation detail list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","chat_id"],"msg":"field required"}]}`, ErrInvalidRequest, `[{"loc":["body","chat_id"],"msg":"field required"}]`},
		{"plain text", http.StatusInternalServerError, "boom\n", ErrServer, "boom"},
		{"rate limited", http.StatusTooManyRequests, `{"detail":"slow down"}`, ErrRateLimited, "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Send(context.Background(), ChatRequest{ChatID: "c"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.detail, apiErr.Detail)
			assert.Equal(t, "/chat/send", apiErr.Path)
		})
	}
}

func TestErrorDetailCutOnRuneBoundary(t *testing.T) {
	detail := strings.Repeat("é", 499) + strings.Repeat("日本", 100)
	body, err := json.Marshal(map[string]string{"detail": detail})
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(body)
	})
	_, err = c.Send(context.Background(), ChatRequest{ChatID: "c"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, utf8.ValidString(apiErr.Detail), "detail split a rune")
	assert.True(t, strings.HasSuffix(apiErr.Detail, util.Ellipsis))
	assert.LessOrEqual(t, util.Width(apiErr.Detail), maxDetailWidth)
	assert.True(t, strings.HasPrefix(apiErr.Detail, "éé"))
}

func TestNoRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Send(context.Background(), ChatRequest{ChatID: "c"})
	require.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, ChatRequest{ChatID: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base).WithLogger(logging.Nop()).WithTimeout(2 * time.Second)
	_, err := c.ListSessions(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResponseTooLarge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"`))
		_, _ = w.Write([]byte(strings.Repeat("a", MaxResponseSize+1)))
	})
	_, err := c.Send(context.Background(), ChatRequest{ChatID: "c"})
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestSessionsEndpoints(t *testing.T) {
	var saved SaveRequest
	var deleted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/":
			_, _ = w.Write([]byte(`[{"id":"b","title":"Second..."},{"id":"a","title":"New Chat"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/a":
			_, _ = w.Write([]byte(`[{"role":"user","content":"hi","id":1700000000000},{"role":"assistant","content":"yo","id":"1700000000001","model":"gpt-4o","meta":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/sessions/save":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/sessions/"):
			deleted = strings.TrimPrefix(r.URL.Path, "/api/sessions/")
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "New Chat", list[1].Title)

	msgs, err := c.LoadSession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1700000000001), msgs[1].ID)
	require.NotNil(t, msgs[1].Usage)
	assert.Equal(t, 3, msgs[1].Usage.TotalTokens)

	require.NoError(t, c.SaveSession(ctx, "a", msgs))
	assert.Equal(t, "a", saved.ChatID)
	assert.Len(t, saved.Messages, 2)

	require.NoError(t, c.DeleteSession(ctx, "a"))
	assert.Equal(t, "a", deleted)

	err = c.DeleteSession(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestActiveProvidersAndSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/providers/active":
			_, _ = w.Write([]byte(`[{"id":"openai","name":"OpenAI","models":["gpt-4o","gpt-4-turbo"]},{"id":"runpod","name":"RunPod","models":["mistral-7b"]}]`))
		case "/api/settings/":
			_, _ = w.Write([]byte(`{"providers":[{"id":"openai","name":"OpenAI","keys":["sk-abcdef123456"]},{"id":"runpod","name":"RunPod","keys":[],"url":"http://gpu.local:8000"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	active, err := c.ActiveProviders(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, []string{"gpt-4o", "gpt-4-turbo"}, active[0].Models)

	settings, err := c.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, settings.Providers, 2)
	assert.Len(t, settings.Active(), 2)
}

func TestRateLimitHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}).WithRateLimit(0.001, 1)

	_, err := c.ListSessions(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListSessions(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
}
