// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokens estimates how many tokens a piece of text will cost.
//
// # Key Types
//
//   - Estimator: tiktoken-backed counter with a ceil(runes/4) fallback
//   - Debouncer: delayed task scheduling with explicit cancellation
//   - Live: debounced estimator that only reports counts for the latest input
//
// The encoder is loaded lazily on first use. tiktoken-go fetches BPE ranks
// on first load (cached under TIKTOKEN_CACHE_DIR); when that fails the
// heuristic is used for the life of the Estimator.
//
// # Usage
//
//	est := tokens.NewEstimator("gpt-4o")
//	live := tokens.NewLive(est, 500*time.Millisecond, func(n int) {
//	    fmt.Println("input tokens:", n)
//	})
//	live.Update("hello wor")
//	live.Update("hello world") // only this one is reported
package tokens
