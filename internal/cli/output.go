// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/onys-chat/internal/util"
)

// JSONResponse is the envelope printed by --json.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write prints the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// TABLES
// =============================================================================

// table writes width-aligned columns. Cells wider than a column's cap are
// truncated.
type table struct {
	headers []string
	caps    []int
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

// withCaps sets maximum column widths; zero means no cap.
func (t *table) withCaps(caps ...int) *table {
	t.caps = caps
	return t
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) error {
	widths := make([]int, len(t.headers))
	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		s := row[i]
		if i < len(t.caps) && t.caps[i] > 0 {
			s = util.Truncate(s, t.caps[i])
		}
		return s
	}

	all := append([][]string{t.headers}, t.rows...)
	for _, row := range all {
		for i := range widths {
			if n := util.Width(cell(row, i)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for _, row := range all {
		parts := make([]string, len(widths))
		for i := range widths {
			if i == len(widths)-1 {
				parts[i] = cell(row, i)
				continue
			}
			parts[i] = util.PadRight(cell(row, i), widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// formatCount formats an integer with thousands separators.
func formatCount(n int) string {
	s := fmt.Sprint(n)
	if n < 0 {
		return "-" + formatCount(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
