// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/ui/styles"
	"github.com/jeranaias/onys-chat/internal/usage"
)

// usageReport is the --json shape of the usage command.
type usageReport struct {
	Overall   usage.Total   `json:"overall"`
	ByModel   []usage.Total `json:"by_model"`
	BySession []usage.Total `json:"by_session"`
}

func newUsageCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage recorded by this client",
		Long: `Show token usage from the local ledger.

Every delivered reply that carried usage is recorded, from both the TUI and
ask. Totals are shown overall, per provider/model and for the most recent
sessions.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ledger, err := a.ledger()
			if err != nil {
				return newCommandError("usage", "", err)
			}
			if ledger == nil {
				return ErrUsageDisabled
			}

			ctx := cmd.Context()
			var report usageReport
			if report.Overall, err = ledger.Overall(ctx); err != nil {
				return newCommandError("usage", "overall", err)
			}
			if report.ByModel, err = ledger.ByModel(ctx); err != nil {
				return newCommandError("usage", "by model", err)
			}
			if report.BySession, err = ledger.BySession(ctx, limit); err != nil {
				return newCommandError("usage", "by session", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("usage", report).Write(out)
			}
			return writeUsage(out, report)
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent sessions to show")
	return cmd
}

func writeUsage(w io.Writer, r usageReport) error {
	if r.Overall.Exchanges == 0 {
		_, err := fmt.Fprintln(w, styles.RenderInfo("No usage recorded yet."))
		return err
	}

	fmt.Fprintf(w, "%s exchanges, %s tokens (%s prompt, %s completion)\n\n",
		formatCount(r.Overall.Exchanges), formatCount(r.Overall.TotalTokens),
		formatCount(r.Overall.PromptTokens), formatCount(r.Overall.CompletionTokens))

	byModel := newTable("MODEL", "EXCHANGES", "PROMPT", "COMPLETION", "TOTAL").withCaps(40)
	for _, t := range r.ByModel {
		byModel.add(t.Key, formatCount(t.Exchanges), formatCount(t.PromptTokens),
			formatCount(t.CompletionTokens), formatCount(t.TotalTokens))
	}
	if err := byModel.write(w); err != nil {
		return err
	}

	fmt.Fprintln(w)
	bySession := newTable("SESSION", "EXCHANGES", "TOTAL", "LAST").withCaps(36)
	for _, t := range r.BySession {
		last := ""
		if !t.Last.IsZero() {
			last = t.Last.Local().Format("2006-01-02 15:04")
		}
		bySession.add(t.Key, formatCount(t.Exchanges), formatCount(t.TotalTokens), last)
	}
	return bySession.write(w)
}
