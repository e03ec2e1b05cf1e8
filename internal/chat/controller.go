// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/backend"
	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/providers"
	"github.com/jeranaias/onys-chat/internal/session"
	"github.com/jeranaias/onys-chat/internal/tokens"
	"github.com/jeranaias/onys-chat/internal/usage"
)

// DefaultTimeout bounds one exchange with the backend.
const DefaultTimeout = backend.DefaultTimeout

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the subset of the REST API the controller uses.
type Backend interface {
	Send(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	ListSessions(ctx context.Context) ([]model.SessionSummary, error)
	LoadSession(ctx context.Context, id string) ([]model.Message, error)
	SaveSession(ctx context.Context, id string, messages []model.Message) error
	DeleteSession(ctx context.Context, id string) error
	ActiveProviders(ctx context.Context) ([]providers.ActiveProvider, error)
}

// UsageRecorder stores usage for delivered exchanges.
type UsageRecorder interface {
	Record(ctx context.Context, e usage.Entry) error
}

// =============================================================================
// STATE AND OUTCOMES
// =============================================================================

// State is the controller's position in the send cycle. Settled is
// transient: a settled exchange returns the controller to Idle or
// Composing before Run returns.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateSending
)

func (s State) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateSending:
		return "sending"
	default:
		return "idle"
	}
}

// Outcome is how a send attempt ended.
type Outcome int

const (
	OutcomeRefused Outcome = iota
	OutcomeDelivered
	OutcomeFailed
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return "refused"
	}
}

// Result describes a send attempt.
type Result struct {
	Outcome   Outcome
	Reason    error // refusal reason, set only for OutcomeRefused
	SessionID string
	User      model.Message
	Assistant model.Message
	Provider  string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives the active chat session. It is safe for concurrent use.
type Controller struct {
	backend  Backend
	session  *session.State
	store    *attachments.Store
	est      *tokens.Estimator
	live     *tokens.Live
	notifier Notifier
	recorder UsageRecorder
	log      *log.Logger

	timeout  time.Duration
	debounce time.Duration
	autoSave bool
	onTokens func(int)

	prefProvider string
	prefModel    string

	mu      sync.Mutex
	state   State
	input   string
	sending bool
	catalog *providers.Catalog
	target  providers.Target
}

// Option configures a Controller.
type Option func(*Controller)

// WithSession uses an existing session state.
func WithSession(s *session.State) Option {
	return func(c *Controller) { c.session = s }
}

// WithAttachments uses an existing attachment store.
func WithAttachments(s *attachments.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithEstimator sets the token estimator and the input debounce period.
func WithEstimator(est *tokens.Estimator, debounce time.Duration) Option {
	return func(c *Controller) {
		c.est = est
		c.debounce = debounce
	}
}

// WithTokenCallback is called with every published input token count.
func WithTokenCallback(fn func(int)) Option {
	return func(c *Controller) { c.onTokens = fn }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithUsageRecorder records usage of delivered exchanges.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithTimeout bounds each backend request.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAutoSave persists the session after every delivered exchange.
func WithAutoSave(enabled bool) Option {
	return func(c *Controller) { c.autoSave = enabled }
}

// WithPreferredTarget is used when a catalog is loaded and nothing valid is
// selected yet.
func WithPreferredTarget(providerID, modelID string) Option {
	return func(c *Controller) {
		c.prefProvider = providerID
		c.prefModel = modelID
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController creates a controller over b with a fresh session.
func NewController(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  b,
		timeout:  DefaultTimeout,
		debounce: tokens.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrFor(c.log, "chat")
	if c.session == nil {
		c.session = session.New()
	}
	if c.store == nil {
		c.store = attachments.NewStore(attachments.WithLogger(c.log))
	}
	if c.est == nil {
		c.est = tokens.NewEstimator(tokens.DefaultModel, tokens.WithLogger(c.log))
	}
	if c.notifier == nil {
		c.notifier = logNotifier{log: c.log}
	}
	c.live = tokens.NewLive(c.est, c.debounce, c.onTokens)
	return c
}

// Close stops background work.
func (c *Controller) Close() {
	c.live.Stop()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Session returns the session state.
func (c *Controller) Session() *session.State { return c.session }

// Attachments returns the staging area.
func (c *Controller) Attachments() *attachments.Store { return c.store }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Input returns the current input text.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// InputTokens returns the last published estimate for the input.
func (c *Controller) InputTokens() int {
	return c.live.Current()
}

// Stats returns token totals for the active session.
func (c *Controller) Stats() model.SessionStats {
	return c.session.ComputeStats()
}

// Target returns the selected provider and model.
func (c *Controller) Target() providers.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Catalog returns the loaded provider catalog, or nil.
func (c *Controller) Catalog() *providers.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// =============================================================================
// COMPOSING
// =============================================================================

// SetInput replaces the input text and schedules a token estimate.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.settleLocked()
	c.mu.Unlock()
	c.live.Update(text)
}

// InsertTag appends the positional tag of staged attachment index to the
// input. It reports false, changing nothing, if index is out of range.
func (c *Controller) InsertTag(index int) (string, bool) {
	if index < 0 || index >= c.store.Len() {
		return c.Input(), false
	}
	c.mu.Lock()
	prev := c.input
	sep := ""
	if prev != "" && !strings.HasSuffix(prev, " ") {
		sep = " "
	}
	next := prev + sep + attachments.Tag(index) + " "
	c.input = next
	c.settleLocked()
	c.mu.Unlock()

	c.live.Update(next)
	return next, true
}

// AddFiles stages files. Per-file failures are raised as a warning and
// returned; the readable files are staged regardless.
func (c *Controller) AddFiles(ctx context.Context, sources ...attachments.Source) ([]model.Attachment, error) {
	added, err := c.store.Add(ctx, sources...)
	if err != nil && ctx.Err() == nil {
		c.notifier.Notify(Notification{Level: LevelWarning, Message: "Some files could not be attached", Err: err})
	}
	c.mu.Lock()
	c.settleLocked()
	c.mu.Unlock()
	return added, err
}

// RemoveAttachment unstages one attachment.
func (c *Controller) RemoveAttachment(index int) {
	c.store.Remove(index)
	c.mu.Lock()
	c.settleLocked()
	c.mu.Unlock()
}

// Reuse re-stages attachment index of a message from the log without
// reading any file.
func (c *Controller) Reuse(messageID int64, index int) (model.Attachment, error) {
	for _, m := range c.session.Messages() {
		if m.ID != messageID {
			continue
		}
		if index < 0 || index >= len(m.Attachments) {
			return model.Attachment{}, fmt.Errorf("%w: %d", ErrNoSuchAttachment, index)
		}
		a := c.store.ReuseAttachment(m.Attachments[index])
		c.mu.Lock()
		c.settleLocked()
		c.mu.Unlock()
		return a, nil
	}
	return model.Attachment{}, fmt.Errorf("%w: %d", ErrNoSuchMessage, messageID)
}

// settleLocked derives the resting state from the input and staging area.
func (c *Controller) settleLocked() {
	switch {
	case c.sending:
		c.state = StateSending
	case strings.TrimSpace(c.input) != "" || c.store.Len() > 0:
		c.state = StateComposing
	default:
		c.state = StateIdle
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Exchange is a send that passed the guard. Run must be called exactly
// once; the controller stays in Sending until it returns.
type Exchange struct {
	c         *Controller
	sessionID string
	target    providers.Target
	user      model.Message
	history   []model.Message
	once      sync.Once
}

// SessionID returns the session the exchange was started in.
func (x *Exchange) SessionID() string { return x.sessionID }

// UserMessage returns the optimistically appended user message.
func (x *Exchange) UserMessage() model.Message { return x.user }

// Target returns the provider and model the exchange is sent to.
func (x *Exchange) Target() providers.Target { return x.target }

// Prepare checks the guard and, if it passes, applies the optimistic
// update: the user message is appended with the staged attachments, the
// staging area and the input are cleared, and the controller enters
// Sending. On refusal it returns nil and the reason; nothing changes.
func (c *Controller) Prepare() (*Exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.sending:
		return nil, ErrBusy
	case strings.TrimSpace(c.input) == "" && c.store.Len() == 0:
		return nil, ErrNothingToSend
	case c.target.IsZero():
		return nil, ErrNoTarget
	}

	// Replacements of the session happen under c.mu, so the id read here
	// is the session the message lands in.
	sessionID := c.session.ID()
	staged := c.store.Take()
	msg, err := c.session.AppendUserMessage(c.input, staged)
	if err != nil {
		for _, a := range staged {
			c.store.ReuseAttachment(a)
		}
		return nil, ErrNothingToSend
	}

	c.input = ""
	c.sending = true
	c.state = StateSending
	c.live.Update("")

	return &Exchange{
		c:         c,
		sessionID: sessionID,
		target:    c.target,
		user:      msg,
		history:   c.session.Messages(),
	}, nil
}

// Send runs Prepare and, if accepted, the exchange. Refusal is silent:
// OutcomeRefused with a nil error.
func (c *Controller) Send(ctx context.Context) (Result, error) {
	x, reason := c.Prepare()
	if x == nil {
		c.log.Debug("send refused", "reason", reason)
		return Result{Outcome: OutcomeRefused, Reason: reason}, nil
	}
	return x.Run(ctx)
}

// Run performs the request and settles the exchange. A transport failure
// returns a *TransportError after raising a notification; a stale reply
// returns OutcomeStale and a nil error.
func (x *Exchange) Run(ctx context.Context) (Result, error) {
	ran := false
	x.once.Do(func() { ran = true })
	if !ran {
		return Result{}, errors.New("chat: exchange already run")
	}

	c := x.c
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.settleLocked()
		c.mu.Unlock()
	}()

	res := Result{SessionID: x.sessionID, User: x.user, Provider: x.target.ProviderID}
	images, documents := model.SplitAttachments(x.user.Attachments)
	req := backend.ChatRequest{
		ChatID:     x.sessionID,
		ProviderID: x.target.ProviderID,
		ModelID:    x.target.ModelID,
		Messages:   x.history,
		Images:     images,
		Documents:  documents,
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()
	resp, err := c.backend.Send(reqCtx, req)
	cancel()

	if err != nil {
		if c.session.ID() != x.sessionID {
			c.log.Debug("discarding failure for replaced session", "session", x.sessionID, "err", err)
			res.Outcome = OutcomeStale
			return res, nil
		}
		c.session.Fail(x.user.ID)
		res.Outcome = OutcomeFailed
		terr := &TransportError{MessageID: x.user.ID, Err: err}
		c.log.Warn("send failed", "session", x.sessionID, "target", x.target, "err", err)
		c.notifier.Notify(Notification{Level: LevelError, Message: failureMessage(err), Err: terr})
		return res, terr
	}

	asst, ok := c.session.AppendAssistantTo(x.sessionID, resp.Content, x.target.ModelID, resp.Usage)
	if !ok {
		c.log.Info("discarding stale response", "session", x.sessionID, "err", ErrStaleResponse)
		res.Outcome = OutcomeStale
		return res, nil
	}
	c.session.Confirm(x.user.ID)
	res.Outcome = OutcomeDelivered
	res.Assistant = asst
	if resp.Provider != "" {
		res.Provider = resp.Provider
	}
	c.log.Debug("send delivered", "session", x.sessionID, "target", x.target, "duration", time.Since(start))

	if c.recorder != nil && resp.Usage != nil {
		entry := usage.Entry{
			SessionID: x.sessionID,
			Provider:  res.Provider,
			Model:     x.target.ModelID,
			Usage:     *resp.Usage,
			CreatedAt: asst.Timestamp,
		}
		if err := c.recorder.Record(ctx, entry); err != nil {
			c.log.Warn("failed to record usage", "err", err)
		}
	}

	if c.autoSave {
		if err := c.saveIf(ctx, x.sessionID); err != nil {
			c.log.Warn("autosave failed", "session", x.sessionID, "err", err)
		}
	}
	return res, nil
}

// failureMessage turns a send error into a short user-facing sentence.
func failureMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The backend did not answer in time. Your message was kept; send again to retry."
	case errors.Is(err, context.Canceled):
		return "Send cancelled. Your message was kept."
	case errors.Is(err, backend.ErrUnavailable):
		return "Cannot reach the backend. Is it running?"
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return "The backend rejected the message: " + apiErr.Detail
	default:
		return "Failed to send message."
	}
}

// =============================================================================
// PROVIDERS
// =============================================================================

// RefreshProviders loads the active providers and keeps the current
// target if it is still offered, otherwise picks a default.
func (c *Controller) RefreshProviders(ctx context.Context) (*providers.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	active, err := c.backend.ActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	cat := providers.NewCatalog(active)
	c.SetCatalog(cat)
	return cat, nil
}

// SetCatalog installs a provider catalog.
func (c *Controller) SetCatalog(cat *providers.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = cat
	if !c.target.IsZero() {
		if t, err := cat.Select(c.target.ProviderID, c.target.ModelID); err == nil {
			c.target = t
			return
		}
	}
	c.target = cat.Default(c.prefProvider, c.prefModel)
}

// SelectTarget selects a provider and model. An empty model selects the
// provider's first model.
func (c *Controller) SelectTarget(providerID, modelID string) (providers.Target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.catalog == nil {
		return providers.Target{}, ErrNoCatalog
	}
	t, err := c.catalog.Select(providerID, modelID)
	if err != nil {
		return providers.Target{}, err
	}
	c.target = t
	return t, nil
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// NewSession starts a fresh session and returns its id. A reply still in
// flight for the old session will be discarded.
func (c *Controller) NewSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.session.NewSession()
	c.log.Debug("new session", "session", id)
	return id
}

// Sessions lists the stored sessions.
func (c *Controller) Sessions(ctx context.Context) ([]model.SessionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.backend.ListSessions(ctx)
}

// LoadSession fetches a stored session and makes it active.
func (c *Controller) LoadSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return session.ErrInvalidSessionID
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msgs, err := c.backend.LoadSession(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.session.ReplaceSession(id, msgs); err != nil {
		return err
	}
	c.log.Debug("loaded session", "session", id, "messages", len(msgs))
	return nil
}

// Save persists the active session. An empty session is not saved.
func (c *Controller) Save(ctx context.Context) error {
	return c.saveIf(ctx, "")
}

// saveIf persists the active session, only if it is sessionID when that
// is non-empty.
func (c *Controller) saveIf(ctx context.Context, sessionID string) error {
	snap := c.session.Snapshot()
	if sessionID != "" && snap.ID != sessionID {
		return nil
	}
	if len(snap.Messages) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.backend.SaveSession(ctx, snap.ID, snap.Messages); err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	c.session.MarkSaved(snap.ID, snap.Version)
	return nil
}

// DeleteSession removes a stored session. Deleting the active session
// starts a fresh one.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return session.ErrInvalidSessionID
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.backend.DeleteSession(reqCtx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.ID() == id {
		c.session.NewSession()
	}
	return nil
}
