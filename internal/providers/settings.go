// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// =============================================================================
// PROVIDER VARIANTS
// =============================================================================

// Kind distinguishes provider variants.
type Kind string

const (
	KindCloud Kind = "cloud"
	KindLocal Kind = "local"
)

// Provider is a configured provider. The set of implementations is closed.
type Provider interface {
	ProviderID() string
	DisplayName() string
	Kind() Kind

	// IsActive reports whether the provider has enough configuration to
	// be offered as a send target.
	IsActive() bool

	sealed()
}

// CloudProvider is a hosted API reached with keys.
type CloudProvider struct {
	ID   string
	Name string
	Keys []string
}

func (p CloudProvider) ProviderID() string  { return p.ID }
func (p CloudProvider) DisplayName() string { return p.Name }
func (p CloudProvider) Kind() Kind          { return KindCloud }
func (CloudProvider) sealed()               {}

// IsActive is true when the first key is set, matching the backend's rule.
func (p CloudProvider) IsActive() bool {
	return len(p.Keys) > 0 && strings.TrimSpace(p.Keys[0]) != ""
}

// MaskedKeys returns the keys with all but the last four characters hidden.
func (p CloudProvider) MaskedKeys() []string {
	out := make([]string, len(p.Keys))
	for i, k := range p.Keys {
		out[i] = maskKey(k)
	}
	return out
}

func maskKey(k string) string {
	k = strings.TrimSpace(k)
	if k == "" {
		return "[not set]"
	}
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", 8) + k[len(k)-4:]
}

// LocalProvider is a self-hosted endpoint such as Ollama on RunPod.
type LocalProvider struct {
	ID          string
	Name        string
	EndpointURL string
}

func (p LocalProvider) ProviderID() string  { return p.ID }
func (p LocalProvider) DisplayName() string { return p.Name }
func (p LocalProvider) Kind() Kind          { return KindLocal }
func (LocalProvider) sealed()               {}

// IsActive is true when an endpoint URL is set.
func (p LocalProvider) IsActive() bool {
	return strings.TrimSpace(p.EndpointURL) != ""
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError describes one rejected settings entry.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("providers[%d].%s: %s", e.Index, e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// =============================================================================
// DECODING
// =============================================================================

// rawProvider is the stored shape. Type is written by the web client but
// not always persisted, so the variant falls back to the presence of url.
type rawProvider struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type string   `json:"type"`
	Keys []string `json:"keys"`
	URL  *string  `json:"url"`
}

type rawSettings struct {
	Providers []rawProvider `json:"providers"`
}

// Settings is the validated provider configuration.
type Settings struct {
	Providers []Provider
}

// Active returns the providers that can be used as send targets.
func (s Settings) Active() []Provider {
	var out []Provider
	for _, p := range s.Providers {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// ParseSettings decodes and validates a settings document. Every problem
// is reported; nothing is returned unless all entries are valid.
func ParseSettings(data []byte) (Settings, error) {
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	var (
		errs ValidationErrors
		out  Settings
		seen = make(map[string]bool)
	)
	for i, rp := range raw.Providers {
		p, perrs := convert(i, rp)
		errs = append(errs, perrs...)
		if p == nil {
			continue
		}
		if seen[p.ProviderID()] {
			errs = append(errs, ValidationError{Index: i, Field: "id", Message: fmt.Sprintf("duplicate id %q", p.ProviderID())})
			continue
		}
		seen[p.ProviderID()] = true
		out.Providers = append(out.Providers, p)
	}

	if len(errs) > 0 {
		return Settings{}, errs
	}
	return out, nil
}

func convert(i int, rp rawProvider) (Provider, ValidationErrors) {
	var errs ValidationErrors
	id := strings.TrimSpace(rp.ID)
	if id == "" {
		errs = append(errs, ValidationError{Index: i, Field: "id", Message: "required"})
	}
	name := strings.TrimSpace(rp.Name)
	if name == "" {
		name = id
	}

	kind := Kind(strings.ToLower(rp.Type))
	switch kind {
	case KindCloud, KindLocal:
	case "":
		kind = KindCloud
		if rp.URL != nil {
			kind = KindLocal
		}
	default:
		errs = append(errs, ValidationError{Index: i, Field: "type", Message: fmt.Sprintf("unknown type %q", rp.Type)})
	}

	if kind == KindLocal {
		endpoint := ""
		if rp.URL != nil {
			endpoint = strings.TrimSpace(*rp.URL)
		}
		if endpoint != "" {
			u, err := url.Parse(endpoint)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, ValidationError{Index: i, Field: "url", Message: fmt.Sprintf("must be an http(s) URL, got %q", endpoint)})
			}
		}
		if len(rp.Keys) > 0 && strings.TrimSpace(rp.Keys[0]) != "" {
			errs = append(errs, ValidationError{Index: i, Field: "keys", Message: "local providers take a url, not keys"})
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return LocalProvider{ID: id, Name: name, EndpointURL: endpoint}, nil
	}

	if len(errs) > 0 {
		return nil, errs
	}
	keys := make([]string, len(rp.Keys))
	copy(keys, rp.Keys)
	return CloudProvider{ID: id, Name: name, Keys: keys}, nil
}
