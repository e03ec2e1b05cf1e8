// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokens

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/onys-chat/internal/logging"
)

const (
	// DefaultModel is the reference model whose tokenizer approximates
	// every provider.
	DefaultModel = "gpt-4o"

	// fallbackEncoding is tried when the model has no registered encoding.
	fallbackEncoding = "cl100k_base"

	// DefaultCacheSize bounds the memoized estimates.
	DefaultCacheSize = 256

	// charsPerToken drives the heuristic fallback.
	charsPerToken = 4
)

// ErrEncodingFailure is logged when the tokenizer cannot produce a count.
// It never reaches callers: Estimate falls back to the heuristic instead.
var ErrEncodingFailure = errors.New("token encoding failed")

// Encoder is the subset of *tiktoken.Tiktoken the estimator needs.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// EncoderLoader builds an Encoder for a model name.
type EncoderLoader func(model string) (Encoder, error)

// Option configures an Estimator.
type Option func(*Estimator)

// WithLoader replaces the tiktoken loader.
func WithLoader(loader EncoderLoader) Option {
	return func(e *Estimator) { e.loader = loader }
}

// WithCacheSize sets the number of memoized estimates. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(e *Estimator) { e.cacheSize = n }
}

// WithLogger sets the logger used for encoder failures.
func WithLogger(l *log.Logger) Option {
	return func(e *Estimator) { e.log = l }
}

// Estimator counts tokens. It is safe for concurrent use.
type Estimator struct {
	model     string
	loader    EncoderLoader
	cacheSize int
	log       *log.Logger

	once  sync.Once
	enc   Encoder
	cache *lru.Cache[string, int]
}

// NewEstimator creates an estimator for the given reference model.
func NewEstimator(model string, opts ...Option) *Estimator {
	if model == "" {
		model = DefaultModel
	}
	e := &Estimator{
		model:     model,
		loader:    LoadTiktoken,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrFor(e.log, "tokens")
	if e.cacheSize > 0 {
		// New only fails for non-positive sizes.
		e.cache, _ = lru.New[string, int](e.cacheSize)
	}
	return e
}

// Model returns the reference model name.
func (e *Estimator) Model() string {
	return e.model
}

// Estimate returns the token count for text, always >= 0. Empty input
// returns 0 without touching the encoder.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	text = norm.NFC.String(text)

	if e.cache != nil {
		if n, ok := e.cache.Get(text); ok {
			return n
		}
	}

	n, err := e.encode(text)
	if err != nil {
		e.log.Debug("using heuristic estimate", "err", err)
		n = Heuristic(text)
	}

	if e.cache != nil {
		e.cache.Add(text, n)
	}
	return n
}

// encode runs the encoder, converting a panic into ErrEncodingFailure.
func (e *Estimator) encode(text string) (n int, err error) {
	enc := e.encoder()
	if enc == nil {
		return 0, fmt.Errorf("%w: no encoder for %s", ErrEncodingFailure, e.model)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEncodingFailure, r)
		}
	}()
	return len(enc.Encode(text, nil, nil)), nil
}

func (e *Estimator) encoder() Encoder {
	e.once.Do(func() {
		enc, err := e.loader(e.model)
		if err != nil {
			e.log.Warn("tokenizer unavailable, estimates are approximate", "model", e.model, "err", err)
			return
		}
		e.enc = enc
	})
	return e.enc
}

// Heuristic returns ceil(runes/4), the fallback estimate.
func Heuristic(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// LoadTiktoken resolves the model's encoding, falling back to cl100k_base
// for models tiktoken does not know.
func LoadTiktoken(model string) (Encoder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	enc, fbErr := tiktoken.GetEncoding(fallbackEncoding)
	if fbErr != nil {
		return nil, fmt.Errorf("load encoding for %s: %w", model, errors.Join(err, fbErr))
	}
	return enc, nil
}
