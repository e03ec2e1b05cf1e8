// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/onys-chat/internal/backend"
	"github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/config"
)

// =============================================================================
// TEST BACKEND
// =============================================================================

type testServer struct {
	*httptest.Server

	mu      sync.Mutex
	sends   []backend.ChatRequest
	saves   []backend.SaveRequest
	deleted []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/providers/active", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{
			{"id": "openai", "name": "OpenAI", "models": []string{"gpt-4o", "gpt-4-turbo", "broken"}},
			{"id": "runpod", "name": "RunPod", "models": []string{"mistral-7b"}},
		})
	})
	mux.HandleFunc("GET /api/settings/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"providers": []map[string]any{
			{"id": "openai", "name": "OpenAI", "type": "cloud", "keys": []string{"sk-abcdefghijklmnop"}},
			{"id": "anthropic", "name": "Anthropic", "type": "cloud", "keys": []string{""}},
			{"id": "runpod", "name": "RunPod", "type": "local", "url": "https://pod.example/ollama"},
		}})
	})
	mux.HandleFunc("POST /api/chat/send", func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.sends = append(ts.sends, req)
		ts.mu.Unlock()
		if req.ModelID == "broken" {
			w.WriteHeader(http.StatusBadGateway)
			writeJSON(w, map[string]any{"detail": "upstream failed"})
			return
		}
		writeJSON(w, map[string]any{
			"content":    "Paris is the capital of **France**.",
			"model_used": req.ModelID,
			"provider":   req.ProviderID,
			"usage":      map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	})
	mux.HandleFunc("POST /api/sessions/save", func(w http.ResponseWriter, r *http.Request) {
		var req backend.SaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.saves = append(ts.saves, req)
		ts.mu.Unlock()
		writeJSON(w, map[string]string{"status": "saved"})
	})
	mux.HandleFunc("GET /api/sessions/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]string{
			{"id": "s-1", "title": "Capital cities"},
			{"id": "s-2", "title": "Grocery list"},
		})
	})
	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s-1" {
			writeJSON(w, []any{})
			return
		}
		writeJSON(w, []map[string]any{
			{"id": 1, "role": "user", "content": "What is the capital of France?"},
			{"id": 2, "role": "assistant", "content": "Paris.", "model": "gpt-4o",
				"meta": map[string]int{"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}},
		})
	})
	mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.deleted = append(ts.deleted, r.PathValue("id"))
		ts.mu.Unlock()
		writeJSON(w, map[string]string{"status": "deleted"})
	})

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) apiURL() string { return ts.URL + "/api" }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// isolate points ONYS_HOME at a temporary directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ONYS_HOME", home)
	for _, k := range []string{"ONYS_BACKEND_URL", "ONYS_TIMEOUT", "ONYS_PROVIDER", "ONYS_MODEL",
		"ONYS_TOKEN_MODEL", "ONYS_LOG_LEVEL", "ONYS_LOG_FILE", "ONYS_NO_USAGE"} {
		t.Setenv(k, "")
	}
	return home
}

// run executes the command tree with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// =============================================================================
// ROOT
// =============================================================================

func TestRoot_Version(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "onys "+Version)
}

func TestRoot_UnknownCommand(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "frobnicate")
	require.Error(t, err)
}

func TestRoot_BadConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nurl = \"ftp://nope\"\n"), 0600))

	_, _, err := run(t, "", "--config", path, "config", "show")
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_PrintsReplyAndRecordsUsage(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	out, stderr, err := run(t, "", "--url", ts.apiURL(), "ask", "--raw", "What", "is", "the", "capital?")
	require.NoError(t, err)
	assert.Contains(t, out, "Paris is the capital of **France**.")
	assert.Contains(t, stderr, "openai/gpt-4o")

	ts.mu.Lock()
	require.Len(t, ts.sends, 1)
	req := ts.sends[0]
	saves := len(ts.saves)
	ts.mu.Unlock()
	assert.Equal(t, "openai", req.ProviderID)
	assert.Equal(t, "gpt-4o", req.ModelID)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "What is the capital?", req.Messages[0].Content)
	assert.Equal(t, 1, saves, "auto_save persists the exchange")

	out, _, err = run(t, "", "--url", ts.apiURL(), "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "1 exchanges, 20 tokens (12 prompt, 8 completion)")
	assert.Contains(t, out, "gpt-4o")
}

func TestAsk_FromStdinWithTargetAndJSON(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	out, _, err := run(t, "hello from a pipe\n", "--url", ts.apiURL(), "--json",
		"ask", "--provider", "runpod", "--model", "mistral-7b")
	require.NoError(t, err)

	var resp struct {
		Success bool      `json:"success"`
		Data    askResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "runpod", resp.Data.Provider)
	assert.Equal(t, "mistral-7b", resp.Data.Model)
	require.NotNil(t, resp.Data.Usage)
	assert.Equal(t, 20, resp.Data.Usage.TotalTokens)
	assert.NotEmpty(t, resp.Data.SessionID)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Equal(t, "hello from a pipe\n", ts.sends[0].Messages[0].Content)
}

func TestAsk_WithAttachment(t *testing.T) {
	home := isolate(t)
	ts := newTestServer(t)
	path := filepath.Join(home, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0600))

	_, _, err := run(t, "", "--url", ts.apiURL(), "ask", "--raw", "-a", path, "Summarize @file1")
	require.NoError(t, err)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.sends, 1)
	req := ts.sends[0]
	require.Len(t, req.Messages[0].Attachments, 1)
	assert.Equal(t, "notes.txt", req.Messages[0].Attachments[0].Name)
	require.Len(t, req.Documents, 1)
	assert.Empty(t, req.Images)
}

func TestAsk_Refusals(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	_, _, err := run(t, "   ", "--url", ts.apiURL(), "ask")
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrNothingToSend)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = run(t, "", "--url", ts.apiURL(), "ask", "--provider", "nope", "hi")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Empty(t, ts.sends)
}

func TestAsk_BackendFailure(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)
	home := os.Getenv("ONYS_HOME")
	cfgPath := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
[backend]
url = %q
[chat]
default_provider = "openai"
default_model = "gpt-4o"
`, ts.apiURL())), 0600))

	_, _, err := run(t, "", "ask", "--model", "broken", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrServer)
	assert.Contains(t, err.Error(), "upstream failed")
}

func TestAsk_Unreachable(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)
	url := ts.apiURL()
	ts.Close()

	_, _, err := run(t, "", "--url", url, "ask", "hi")
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessions_ListShowDelete(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	out, _, err := run(t, "", "--url", ts.apiURL(), "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Capital cities")
	assert.Contains(t, out, "s-2")

	out, _, err = run(t, "", "--url", ts.apiURL(), "sessions", "show", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 You")
	assert.Contains(t, out, "#2 Assistant (gpt-4o)")
	assert.Contains(t, out, "2 messages, 9 tokens (7 prompt, 2 completion)")

	out, _, err = run(t, "", "--url", ts.apiURL(), "sessions", "delete", "s-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session s-2")
	ts.mu.Lock()
	assert.Equal(t, []string{"s-2"}, ts.deleted)
	ts.mu.Unlock()
}

func TestSessions_ExportToDirAndStdout(t *testing.T) {
	home := isolate(t)
	ts := newTestServer(t)
	dir := filepath.Join(home, "exports")

	out, _, err := run(t, "", "--url", ts.apiURL(), "sessions", "export", "s-1", "--format", "json", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 messages to ")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var transcript struct {
		ID       string `json:"id"`
		Messages []any  `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &transcript))
	assert.Equal(t, "s-1", transcript.ID)
	assert.Len(t, transcript.Messages, 2)

	out, _, err = run(t, "", "--url", ts.apiURL(), "sessions", "export", "s-1", "-f", "yaml", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "What is the capital of France?")
	assert.Contains(t, out, "prompt_tokens: 7")
}

func TestSessions_ExportUnknownFormat(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	_, _, err := run(t, "", "--url", ts.apiURL(), "sessions", "export", "s-1", "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// PROVIDERS, TOKENS, USAGE
// =============================================================================

func TestProviders_Active(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	out, _, err := run(t, "", "--url", ts.apiURL(), "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o, gpt-4-turbo")
	assert.Contains(t, out, "Default target: openai/gpt-4o")
}

func TestProviders_AllMasksKeys(t *testing.T) {
	isolate(t)
	ts := newTestServer(t)

	out, _, err := run(t, "", "--url", ts.apiURL(), "providers", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "********mnop")
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "https://pod.example/ollama")
	assert.Contains(t, out, "Anthropic")
}

func TestTokens_JSON(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "--json", "tokens", "hello", "world")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Model  string `json:"model"`
			Tokens int    `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, config.Default().Chat.TokenModel, resp.Data.Model)
	assert.Positive(t, resp.Data.Tokens)
}

func TestUsage_DisabledAndEmpty(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "No usage recorded yet.")

	t.Setenv("ONYS_NO_USAGE", "1")
	_, _, err = run(t, "", "usage")
	assert.ErrorIs(t, err, ErrUsageDisabled)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_InitSetGet(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")

	out, _, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, _, err = run(t, "", "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = run(t, "", "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = run(t, "", "config", "set", "ui.word_wrap", "80")
	require.NoError(t, err)

	out, _, err = run(t, "", "config", "get", "ui.word_wrap")
	require.NoError(t, err)
	assert.Equal(t, "80", strings.TrimSpace(out))

	_, _, err = run(t, "", "config", "set", "ui.word_wrap", "5")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestConfig_InitJSON(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.json")

	out, _, err := run(t, "", "config", "init", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(home, "config.toml"))

	// Found through the JSON fallback when no TOML file exists.
	out, _, err = run(t, "", "config", "get", "backend.url")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Backend.URL, strings.TrimSpace(out))

	_, _, err = run(t, "", "--config", path, "config", "set", "ui.word_wrap", "72")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored config.Config
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, 72, stored.UI.WordWrap)

	_, _, err = run(t, "", "config", "init", "--format", "ini")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{&UsageError{Msg: "bad"}, ExitUsageError},
		{newCommandError("ask", "send", context.DeadlineExceeded), ExitTimeout},
		{newCommandError("sessions", "show", &backend.APIError{Status: 404}), ExitNotFound},
		{fmt.Errorf("x: %w", backend.ErrUnavailable), ExitNetworkError},
		{&ConfigError{Err: io.EOF}, ExitConfigError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestTable(t *testing.T) {
	tbl := newTable("ID", "TITLE").withCaps(0, 8)
	tbl.add("a", "short")
	tbl.add("longer-id", "a title that is too long")

	var buf bytes.Buffer
	require.NoError(t, tbl.write(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID         TITLE", lines[0])
	assert.Equal(t, "a          short", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "longer-id  a title"))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1,000", formatCount(1000))
	assert.Equal(t, "12,345,678", formatCount(12345678))
	assert.Equal(t, "-1,234", formatCount(-1234))
}
