// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package providers models the backend's provider configuration and the
// catalog of providers available as send targets.
//
// Stored settings are untyped JSON. ParseSettings turns them into a closed
// set of variants, CloudProvider (API keys) and LocalProvider (an endpoint
// URL), and rejects malformed entries at the boundary.
//
// A Catalog holds the active providers reported by the backend. It is an
// immutable value owned by whoever fetched it; there is no package-level
// cache.
//
// # Usage
//
//	cat := providers.NewCatalog(active)
//	target, err := cat.Select("openai", "") // first model of openai
package providers
