// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/chat"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/render"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

// askResult is the --json payload of ask.
type askResult struct {
	SessionID string       `json:"session_id"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Content   string       `json:"content"`
	Usage     *model.Usage `json:"usage,omitempty"`
}

func newAskCommand(a *app) *cobra.Command {
	var (
		attach     []string
		providerID string
		modelID    string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one message and print the reply",
		Long: `Send one message in a new session and print the reply.

The question is taken from the arguments, or from stdin when there are
none or the only argument is "-". Attachments are referenced in the text
as @file1, @file2, ... in the order given.`,
		Example: `  onys ask "What is the capital of France?"
  onys ask -a report.pdf -a chart.png "Compare @file1 with @file2"
  git diff | onys ask --provider openai --model gpt-4o`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			errOut := cmd.ErrOrStderr()

			text, err := questionText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctrl := a.controller(a.client(), chat.WithNotifier(chat.NotifierFunc(func(n chat.Notification) {
				// Send failures come back as errors; only warnings are shown here.
				if n.Level == chat.LevelWarning {
					fmt.Fprintln(errOut, styles.RenderWarning(n.Message))
				}
			})))
			defer ctrl.Close()

			if _, err := ctrl.RefreshProviders(ctx); err != nil {
				return newCommandError("ask", "providers", err)
			}
			if providerID != "" || modelID != "" {
				pid := providerID
				if pid == "" {
					pid = ctrl.Target().ProviderID
				}
				if _, err := ctrl.SelectTarget(pid, modelID); err != nil {
					return &UsageError{Msg: err.Error()}
				}
			}

			if len(attach) > 0 {
				sources := make([]attachments.Source, len(attach))
				for i, p := range attach {
					sources[i] = attachments.FromPath(p)
				}
				if _, err := ctrl.AddFiles(ctx, sources...); err != nil {
					return newCommandError("ask", "attach", err)
				}
			}

			ctrl.SetInput(text)
			res, err := ctrl.Send(ctx)
			if err != nil {
				return newCommandError("ask", "send", err)
			}
			switch res.Outcome {
			case chat.OutcomeRefused:
				return newCommandError("ask", "send", res.Reason)
			case chat.OutcomeDelivered:
			default:
				return newCommandError("ask", "send", fmt.Errorf("reply not delivered (%s)", res.Outcome))
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("ask", askResult{
					SessionID: res.SessionID,
					Provider:  res.Provider,
					Model:     res.Assistant.Model,
					Content:   res.Assistant.Content,
					Usage:     res.Assistant.Usage,
				}).Write(out)
			}

			content := res.Assistant.Content
			if !raw {
				r := render.New(a.cfg.UI.Theme, out)
				content = r.Render(content, render.TerminalWidth(out))
			}
			fmt.Fprintln(out, strings.TrimRight(content, "\n"))
			if u := res.Assistant.Usage; u != nil {
				fmt.Fprintf(errOut, "%s/%s  %s prompt + %s completion tokens\n",
					res.Provider, res.Assistant.Model,
					formatCount(u.PromptTokens), formatCount(u.CompletionTokens))
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringArrayVarP(&attach, "attach", "a", nil, "attach a file (repeatable)")
	f.StringVarP(&providerID, "provider", "p", "", "provider id (default: chat.default_provider or the first active)")
	f.StringVarP(&modelID, "model", "m", "", "model id within the provider")
	f.BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

// questionText joins args, or reads r when args are empty or "-".
func questionText(r io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
