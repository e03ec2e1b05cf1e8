// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// DefaultReuseName and DefaultReuseMimeType fill in missing metadata when an
// image is re-staged from history.
const (
	DefaultReuseName     = "Reused"
	DefaultReuseMimeType = "image/png"
)

// Attachment is a file carried by value. PreviewHandle is a process-local
// reference used by the UI and is never serialized.
type Attachment struct {
	Name          string `json:"name"`
	MimeType      string `json:"type"`
	Payload       string `json:"base64"`
	PreviewHandle string `json:"-"`
}

// IsImage reports whether the attachment's MIME type is image/*.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// Size returns the decoded payload size in bytes, computed from the
// base64 length.
func (a Attachment) Size() int {
	n := len(a.Payload)
	if n == 0 {
		return 0
	}
	pad := 0
	if strings.HasSuffix(a.Payload, "==") {
		pad = 2
	} else if strings.HasSuffix(a.Payload, "=") {
		pad = 1
	}
	return n/4*3 - pad
}

// Document is the wire shape of a non-image attachment in a chat request.
type Document struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SplitAttachments partitions attachments into image payloads and document
// descriptors, preserving order within each group.
func SplitAttachments(atts []Attachment) (images []string, documents []Document) {
	images = []string{}
	documents = []Document{}
	for _, a := range atts {
		if a.IsImage() {
			images = append(images, a.Payload)
			continue
		}
		documents = append(documents, Document{Name: a.Name, Type: a.MimeType, Content: a.Payload})
	}
	return images, documents
}
