// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"errors"
	"fmt"
	"slices"
)

// Errors returned by Catalog.Select.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownModel    = errors.New("unknown model")
	ErrNoModels        = errors.New("provider has no models")
)

// ActiveProvider is a provider the backend can currently route to.
type ActiveProvider struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// Target is the provider and model a message is sent to.
type Target struct {
	ProviderID string
	ModelID    string
}

// IsZero reports whether the target is incomplete. Sends require a
// complete target.
func (t Target) IsZero() bool {
	return t.ProviderID == "" || t.ModelID == ""
}

// String returns "provider/model".
func (t Target) String() string {
	if t.IsZero() {
		return "(none)"
	}
	return t.ProviderID + "/" + t.ModelID
}

// Catalog is an immutable list of active providers.
type Catalog struct {
	providers []ActiveProvider
}

// NewCatalog creates a catalog. Entries without an id are dropped.
func NewCatalog(active []ActiveProvider) *Catalog {
	c := &Catalog{}
	for _, p := range active {
		if p.ID == "" {
			continue
		}
		p.Models = slices.Clone(p.Models)
		c.providers = append(c.providers, p)
	}
	return c
}

// Providers returns a copy of the catalog entries.
func (c *Catalog) Providers() []ActiveProvider {
	out := make([]ActiveProvider, len(c.providers))
	for i, p := range c.providers {
		p.Models = slices.Clone(p.Models)
		out[i] = p
	}
	return out
}

// Len returns the number of providers.
func (c *Catalog) Len() int {
	return len(c.providers)
}

// Find looks up a provider by id.
func (c *Catalog) Find(id string) (ActiveProvider, bool) {
	for _, p := range c.providers {
		if p.ID == id {
			return p, true
		}
	}
	return ActiveProvider{}, false
}

// Select resolves a target. An empty model selects the provider's first
// model.
func (c *Catalog) Select(providerID, modelID string) (Target, error) {
	p, ok := c.Find(providerID)
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}
	if len(p.Models) == 0 {
		return Target{}, fmt.Errorf("%w: %q", ErrNoModels, providerID)
	}
	if modelID == "" {
		return Target{ProviderID: p.ID, ModelID: p.Models[0]}, nil
	}
	if !slices.Contains(p.Models, modelID) {
		return Target{}, fmt.Errorf("%w: %q for provider %q", ErrUnknownModel, modelID, providerID)
	}
	return Target{ProviderID: p.ID, ModelID: modelID}, nil
}

// Default picks the preferred target when it is available, otherwise the
// first model of the first provider. It returns the zero Target for an
// empty catalog.
func (c *Catalog) Default(preferredProvider, preferredModel string) Target {
	if preferredProvider != "" {
		if t, err := c.Select(preferredProvider, preferredModel); err == nil {
			return t
		}
		if t, err := c.Select(preferredProvider, ""); err == nil {
			return t
		}
	}
	for _, p := range c.providers {
		if len(p.Models) > 0 {
			return Target{ProviderID: p.ID, ModelID: p.Models[0]}
		}
	}
	return Target{}
}
