// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachments

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is a file selected for attachment. MimeType is an optional hint;
// when empty the type is detected.
type Source struct {
	Name     string
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// FromPath returns a Source reading a file on disk.
func FromPath(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FromBytes returns a Source over in-memory content.
func FromBytes(name, mimeType string, data []byte) Source {
	return Source{
		Name:     name,
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
