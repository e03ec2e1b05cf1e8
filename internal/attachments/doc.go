// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachments manages files staged for the next chat message.
//
// Files are read concurrently, but the staging list always matches the
// order in which files were selected: within one Add call by argument
// position, and across concurrent Add calls by call order. Positional
// tags (@file1, @file2, ...) therefore stay stable.
//
// # Usage
//
//	store := attachments.NewStore()
//	added, err := store.Add(ctx, attachments.FromPath("a.png"), attachments.FromPath("notes.md"))
//	store.Remove(0)
//	staged := store.Take() // copy and clear, used when a message is sent
package attachments
