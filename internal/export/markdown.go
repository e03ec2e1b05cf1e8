// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a readable transcript.
type MarkdownExporter struct {
	options *Options
	now     func() time.Time
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts, now: time.Now}
}

// Export renders the transcript as Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm, err := e.frontMatter(t)
		if err != nil {
			return nil, err
		}
		sb.WriteString("---\n")
		sb.Write(fm)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	for i, msg := range t.Messages {
		sb.WriteString(e.formatHeading(msg))
		sb.WriteString("\n\n")

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}

		if len(msg.Attachments) > 0 {
			sb.WriteString(formatAttachments(msg.Attachments))
			sb.WriteString("\n")
		}

		if msg.IsAssistant() && msg.Usage != nil && e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "<sub>Tokens: %d prompt | %d completion</sub>\n\n",
				msg.Usage.PromptTokens, msg.Usage.CompletionTokens)
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// frontMatter is the YAML block at the top of a Markdown transcript.
type frontMatter struct {
	ID               string    `yaml:"id"`
	Title            string    `yaml:"title"`
	Messages         int       `yaml:"messages"`
	PromptTokens     *int      `yaml:"prompt_tokens,omitempty"`
	CompletionTokens *int      `yaml:"completion_tokens,omitempty"`
	Exported         time.Time `yaml:"exported"`
	Generator        string    `yaml:"generator"`
}

func (e *MarkdownExporter) frontMatter(t *Transcript) ([]byte, error) {
	fm := frontMatter{
		ID:        t.ID,
		Title:     t.Title,
		Messages:  len(t.Messages),
		Exported:  e.now().Truncate(time.Second),
		Generator: "onys",
	}
	if t.Stats.GrandTotal > 0 {
		prompt, completion := t.Stats.PromptTokens, t.Stats.CompletionTokens
		fm.PromptTokens, fm.CompletionTokens = &prompt, &completion
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	return data, nil
}

func (e *MarkdownExporter) formatHeading(msg model.Message) string {
	label := msg.Role.DisplayName()
	if msg.IsAssistant() && msg.Model != "" {
		label += " (" + msg.Model + ")"
	}
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		return fmt.Sprintf("### %s <sub>%s</sub>", label, msg.Timestamp.Format("2006-01-02 15:04"))
	}
	return "### " + label
}

func formatAttachments(atts []model.Attachment) string {
	var sb strings.Builder
	for i, a := range atts {
		fmt.Fprintf(&sb, "- `%s` %s (%s, %s)\n", attachments.Tag(i), escapeMarkdown(a.Name), a.MimeType, formatBytes(a.Size()))
	}
	return sb.String()
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return r.Replace(s)
}
