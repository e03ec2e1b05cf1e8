// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachments

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/onys-chat/internal/logging"
	"github.com/jeranaias/onys-chat/internal/model"
)

const (
	// DefaultMaxBytes is the per-file size limit.
	DefaultMaxBytes int64 = 20 << 20

	// readConcurrency bounds simultaneous file reads in one Add call.
	readConcurrency = 4

	previewScheme = "blob:onys/"
)

// ErrTooLarge is returned for files above the store's size limit.
var ErrTooLarge = errors.New("attachment too large")

// FileError reports a file that could not be staged.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STORE
// =============================================================================

// Store is the staging area for the next message. It is safe for
// concurrent use.
type Store struct {
	maxBytes int64
	log      *log.Logger

	mu     sync.Mutex
	staged []model.Attachment

	// Batches commit in ticket order.
	nextTicket uint64
	committed  uint64
	ready      map[uint64][]model.Attachment
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxBytes sets the per-file size limit.
func WithMaxBytes(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore creates an empty staging store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		maxBytes: DefaultMaxBytes,
		ready:    make(map[uint64][]model.Attachment),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrFor(s.log, "attachments")
	return s
}

// Add reads every source concurrently and stages the results in argument
// order. A batch commits only after every batch from an earlier Add call
// has committed. Files that fail to read are skipped and reported together
// in the returned error; the rest are still staged. If ctx is cancelled the
// whole batch is dropped. Zero sources is a no-op.
func (s *Store) Add(ctx context.Context, sources ...Source) ([]model.Attachment, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	ticket := s.nextTicket
	s.nextTicket++
	s.mu.Unlock()

	results := make([]model.Attachment, len(sources))
	failures := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			att, err := s.read(src)
			if err != nil {
				failures[i] = &FileError{Name: src.Name, Err: err}
				return nil
			}
			results[i] = att
			return nil
		})
	}
	waitErr := g.Wait()

	var batch []model.Attachment
	if waitErr == nil {
		for i, att := range results {
			if failures[i] == nil {
				batch = append(batch, att)
			}
		}
	}
	s.commit(ticket, batch)

	if waitErr != nil {
		return nil, fmt.Errorf("attachment read cancelled: %w", waitErr)
	}
	if err := errors.Join(failures...); err != nil {
		s.log.Warn("some attachments were skipped", "err", err)
		return batch, err
	}
	s.log.Debug("staged attachments", "count", len(batch))
	return batch, nil
}

// commit parks a finished batch and flushes every batch whose turn has come.
func (s *Store) commit(ticket uint64, batch []model.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready[ticket] = batch
	for {
		next, ok := s.ready[s.committed]
		if !ok {
			return
		}
		delete(s.ready, s.committed)
		s.staged = append(s.staged, next...)
		s.committed++
	}
}

func (s *Store) read(src Source) (model.Attachment, error) {
	if src.Open == nil {
		return model.Attachment{}, errors.New("no reader")
	}
	rc, err := src.Open()
	if err != nil {
		return model.Attachment{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return model.Attachment{}, err
	}
	if int64(len(data)) > s.maxBytes {
		return model.Attachment{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}

	att := model.Attachment{
		Name:     src.Name,
		MimeType: detectType(src, data),
		Payload:  base64.StdEncoding.EncodeToString(data),
	}
	if att.IsImage() {
		att.PreviewHandle = newPreviewHandle()
	}
	return att, nil
}

// detectType prefers the caller's hint, then the file extension, then the
// content itself. Parameters such as charset are dropped.
func detectType(src Source, data []byte) string {
	candidates := []string{
		src.MimeType,
		mime.TypeByExtension(strings.ToLower(filepath.Ext(src.Name))),
		mimetype.Detect(data).String(),
	}
	for _, c := range candidates {
		if t := baseType(c); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

func baseType(t string) string {
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.TrimSpace(strings.SplitN(t, ";", 2)[0])
}

func newPreviewHandle() string {
	return previewScheme + uuid.NewString()
}

// =============================================================================
// STAGING OPERATIONS
// =============================================================================

// Remove removes the attachment at index. Later items shift down. An
// out-of-range index is a no-op.
func (s *Store) Remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.staged) {
		return
	}
	s.staged = append(s.staged[:index], s.staged[index+1:]...)
}

// Reuse re-stages a previously sent attachment without reading any file.
// Missing metadata defaults to "Reused" and image/png.
func (s *Store) Reuse(payload, previewHandle, name, mimeType string) model.Attachment {
	if name == "" {
		name = model.DefaultReuseName
	}
	if mimeType == "" {
		mimeType = model.DefaultReuseMimeType
	}
	att := model.Attachment{
		Name:          name,
		MimeType:      mimeType,
		Payload:       payload,
		PreviewHandle: previewHandle,
	}
	if att.PreviewHandle == "" && att.IsImage() {
		att.PreviewHandle = newPreviewHandle()
	}

	s.mu.Lock()
	s.staged = append(s.staged, att)
	s.mu.Unlock()
	return att
}

// ReuseAttachment re-stages an attachment taken from a message.
func (s *Store) ReuseAttachment(a model.Attachment) model.Attachment {
	return s.Reuse(a.Payload, a.PreviewHandle, a.Name, a.MimeType)
}

// Clear empties the staging list.
func (s *Store) Clear() {
	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()
}

// Take returns the staged attachments and clears the list in one step.
func (s *Store) Take() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.staged
	s.staged = nil
	return out
}

// Staged returns a copy of the staging list.
func (s *Store) Staged() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Attachment, len(s.staged))
	copy(out, s.staged)
	return out
}

// Len returns the number of staged attachments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// Tags returns the positional tags for the staged list: @file1 for the
// first item, and so on.
func (s *Store) Tags() []string {
	n := s.Len()
	tags := make([]string, n)
	for i := range tags {
		tags[i] = Tag(i)
	}
	return tags
}

// Tag returns the positional tag for a zero-based staging index.
func Tag(index int) string {
	return fmt.Sprintf("@file%d", index+1)
}
