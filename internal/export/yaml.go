// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/onys-chat/internal/model"
)

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter writes a reviewable transcript. Attachment payloads are
// replaced by their decoded sizes.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

type yamlTranscript struct {
	ID       string        `yaml:"id,omitempty"`
	Title    string        `yaml:"title,omitempty"`
	Stats    *yamlStats    `yaml:"stats,omitempty"`
	Messages []yamlMessage `yaml:"messages"`
}

type yamlStats struct {
	PromptTokens     int `yaml:"prompt_tokens"`
	CompletionTokens int `yaml:"completion_tokens"`
	GrandTotal       int `yaml:"grand_total"`
}

type yamlMessage struct {
	ID          int64            `yaml:"id"`
	Role        string           `yaml:"role"`
	Model       string           `yaml:"model,omitempty"`
	Timestamp   string           `yaml:"timestamp,omitempty"`
	Content     string           `yaml:"content"`
	Attachments []yamlAttachment `yaml:"attachments,omitempty"`
	Usage       *model.Usage     `yaml:"usage,omitempty"`
}

type yamlAttachment struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Bytes int    `yaml:"bytes"`
}

// Export renders the transcript as YAML.
func (e *YAMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	doc := yamlTranscript{Messages: make([]yamlMessage, 0, len(t.Messages))}
	if e.options.IncludeMetadata {
		doc.ID = t.ID
		doc.Title = t.Title
		doc.Stats = &yamlStats{
			PromptTokens:     t.Stats.PromptTokens,
			CompletionTokens: t.Stats.CompletionTokens,
			GrandTotal:       t.Stats.GrandTotal,
		}
	}
	for _, m := range t.Messages {
		ym := yamlMessage{
			ID:      m.ID,
			Role:    m.Role.String(),
			Model:   m.Model,
			Content: m.Content,
			Usage:   m.Usage,
		}
		if e.options.IncludeTimestamps && !m.Timestamp.IsZero() {
			ym.Timestamp = m.Timestamp.Format(time.RFC3339)
		}
		for _, a := range m.Attachments {
			ym.Attachments = append(ym.Attachments, yamlAttachment{Name: a.Name, Type: a.MimeType, Bytes: a.Size()})
		}
		doc.Messages = append(doc.Messages, ym)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
