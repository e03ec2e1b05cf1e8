// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/providers"
	"github.com/jeranaias/onys-chat/internal/util"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the API root of a locally running backend.
	DefaultBaseURL = "http://localhost:8004/api"

	// DefaultTimeout bounds a single request. The backend itself waits up
	// to 60s on the upstream provider.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "onys/1.0"
)

// sharedTransport pools connections across clients.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
}

// =============================================================================
// ERRORS
// =============================================================================

// Error variables for common backend failures.
var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates the backend rejected the request body.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("backend error")

	// ErrRateLimited indicates the backend or the local limiter refused the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// Is maps the status code onto the package's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrInvalidRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRequest is the body of POST /chat/send.
type ChatRequest struct {
	ChatID     string           `json:"chat_id"`
	ProviderID string           `json:"provider_id"`
	ModelID    string           `json:"model_id"`
	Messages   []model.Message  `json:"messages"`
	Images     []string         `json:"images"`
	Documents  []model.Document `json:"documents"`
}

// ChatResponse is the reply to a chat send. Usage is optional.
type ChatResponse struct {
	Content   string       `json:"content"`
	ModelUsed string       `json:"model_used,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Usage     *model.Usage `json:"usage,omitempty"`
}

// SaveRequest is the body of POST /sessions/save.
type SaveRequest struct {
	ChatID   string          `json:"chat_id"`
	Messages []model.Message `json:"messages"`
}

// errorBody is FastAPI's error shape. Detail is a string for HTTPException
// and a list for request validation failures.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Onys backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *log.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     logging.For("backend"),
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithRateLimit caps outbound requests at rps with the given burst. A
// non-positive rps disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *log.Logger) *Client {
	c.log = l
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Send posts a chat exchange and returns the assistant reply.
func (c *Client) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Images == nil {
		req.Images = []string{}
	}
	if req.Documents == nil {
		req.Documents = []model.Document{}
	}
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns the stored sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	var out []model.SessionSummary
	if err := c.do(ctx, http.MethodGet, "/sessions/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadSession returns the stored message log of a session. An unknown id
// yields an empty log, as the backend does not distinguish the two.
func (c *Client) LoadSession(ctx context.Context, id string) ([]model.Message, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var out []model.Message
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSession stores a session's message log.
func (c *Client) SaveSession(ctx context.Context, id string, messages []model.Message) error {
	if err := checkID(id); err != nil {
		return err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return c.do(ctx, http.MethodPost, "/sessions/save", SaveRequest{ChatID: id, Messages: messages}, nil)
}

// DeleteSession removes a stored session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

// ActiveProviders returns the providers the backend can route to.
func (c *Client) ActiveProviders(ctx context.Context) ([]providers.ActiveProvider, error) {
	var out []providers.ActiveProvider
	if err := c.do(ctx, http.MethodGet, "/providers/active", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Settings returns the validated provider configuration.
func (c *Client) Settings(ctx context.Context) (providers.Settings, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/settings/", nil, &raw); err != nil {
		return providers.Settings{}, err
	}
	return providers.ParseSettings(raw)
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidRequest)
	}
	return nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one request. in, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("response", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(method, path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// maxDetailWidth caps the error detail carried into notifications.
const maxDetailWidth = 500

// handleErrorResponse converts a non-2xx response into an *APIError,
// extracting FastAPI's detail field when present.
func handleErrorResponse(method, path string, status int, body []byte) error {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var detail string
		if json.Unmarshal(eb.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else {
			apiErr.Detail = string(eb.Detail)
		}
	} else {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	apiErr.Detail = util.Truncate(apiErr.Detail, maxDetailWidth)
	return apiErr
}
