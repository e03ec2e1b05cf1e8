// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/providers"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

// providerView is the --json shape of one stored provider. Keys are always
// masked.
type providerView struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Kind   providers.Kind `json:"kind"`
	Active bool           `json:"active"`
	Keys   []string       `json:"keys,omitempty"`
	URL    string         `json:"url,omitempty"`
}

func viewOf(p providers.Provider) providerView {
	v := providerView{
		ID:     p.ProviderID(),
		Name:   p.DisplayName(),
		Kind:   p.Kind(),
		Active: p.IsActive(),
	}
	switch p := p.(type) {
	case providers.CloudProvider:
		v.Keys = p.MaskedKeys()
	case providers.LocalProvider:
		v.URL = p.EndpointURL
	}
	return v
}

func newProvidersCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the providers and models the backend can use",
		Long: `List the active providers and their models.

With --all the stored provider settings are shown instead, including
inactive providers. API keys are masked.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			client := a.client()

			if all {
				settings, err := client.Settings(ctx)
				if err != nil {
					return newCommandError("providers", "settings", err)
				}
				views := make([]providerView, len(settings.Providers))
				for i, p := range settings.Providers {
					views[i] = viewOf(p)
				}
				if a.jsonOut {
					return NewJSONResponse("providers", views).Write(out)
				}
				if len(views) == 0 {
					fmt.Fprintln(out, styles.RenderInfo("No providers configured."))
					return nil
				}
				t := newTable("ID", "NAME", "KIND", "ACTIVE", "KEYS / URL").withCaps(0, 24, 0, 0, 60)
				for _, v := range views {
					detail := v.URL
					if v.Kind == providers.KindCloud {
						detail = strings.Join(v.Keys, ", ")
					}
					t.add(v.ID, v.Name, string(v.Kind), yesNo(v.Active), detail)
				}
				return t.write(out)
			}

			active, err := client.ActiveProviders(ctx)
			if err != nil {
				return newCommandError("providers", "active", err)
			}
			cat := providers.NewCatalog(active)
			if a.jsonOut {
				return NewJSONResponse("providers", cat.Providers()).Write(out)
			}
			if cat.Len() == 0 {
				fmt.Fprintln(out, styles.RenderInfo("No active providers. Add a key or URL in the web settings."))
				return nil
			}
			def := cat.Default(a.cfg.Chat.DefaultProvider, a.cfg.Chat.DefaultModel)
			t := newTable("", "ID", "NAME", "MODELS").withCaps(0, 0, 24, 70)
			for _, p := range cat.Providers() {
				marker := ""
				if p.ID == def.ProviderID {
					marker = "*"
				}
				t.add(marker, p.ID, p.Name, strings.Join(p.Models, ", "))
			}
			if err := t.write(out); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nDefault target: %s\n", def)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "show stored settings, including inactive providers")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
