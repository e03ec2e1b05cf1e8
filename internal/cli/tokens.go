// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/tokens"
)

func newTokensCommand(a *app) *cobra.Command {
	var tokenModel string

	cmd := &cobra.Command{
		Use:   "tokens [text]",
		Short: "Estimate the token count of text",
		Long: `Estimate the token count of text with the configured tokenizer.

The text is taken from the arguments, or from stdin when there are none.
The count is the same estimate the chat composer shows.`,
		Example: `  onys tokens "How many tokens is this?"
  cat prompt.txt | onys tokens --model gpt-4`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			text, err := questionText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			est := a.estimator()
			if tokenModel != "" {
				est = tokens.NewEstimator(tokenModel)
			}
			n := est.Estimate(text)

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("tokens", map[string]any{
					"model":      est.Model(),
					"tokens":     n,
					"characters": len([]rune(text)),
				}).Write(out)
			}
			fmt.Fprintf(out, "%s tokens (%s)\n", formatCount(n), est.Model())
			return nil
		}),
	}

	cmd.Flags().StringVarP(&tokenModel, "model", "m", "", "tokenizer model (default chat.token_model)")
	return cmd
}
