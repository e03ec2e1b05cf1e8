// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/attachments"
	"github.com/jeranaias/onys-chat/internal/export"
	"github.com/jeranaias/onys-chat/internal/model"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

func newSessionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage sessions stored by the backend",
	}
	cmd.AddCommand(
		newSessionsListCommand(a),
		newSessionsShowCommand(a),
		newSessionsDeleteCommand(a),
		newSessionsExportCommand(a),
	)
	return cmd
}

func newSessionsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			list, err := a.client().ListSessions(cmd.Context())
			if err != nil {
				return newCommandError("sessions", "list", err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				if list == nil {
					list = []model.SessionSummary{}
				}
				return NewJSONResponse("sessions list", list).Write(out)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, styles.RenderInfo("No stored sessions."))
				return nil
			}
			t := newTable("#", "ID", "TITLE").withCaps(0, 0, 60)
			for i, s := range list {
				t.add(fmt.Sprint(i+1), s.ID, s.Title)
			}
			return t.write(out)
		}),
	}
}

func newSessionsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id := args[0]
			msgs, err := a.client().LoadSession(cmd.Context(), id)
			if err != nil {
				return newCommandError("sessions", "show", err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("sessions show", export.NewTranscript(id, "", msgs)).Write(out)
			}
			if len(msgs) == 0 {
				fmt.Fprintf(out, "Session %s has no messages.\n", id)
				return nil
			}

			for i, m := range msgs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				heading := fmt.Sprintf("#%d %s", i+1, m.Role.DisplayName())
				if m.IsAssistant() && m.Model != "" {
					heading += " (" + m.Model + ")"
				}
				if !m.Timestamp.IsZero() {
					heading += "  " + m.Timestamp.Format("2006-01-02 15:04")
				}
				fmt.Fprintln(out, heading)
				if body := strings.TrimSpace(m.Content); body != "" {
					fmt.Fprintln(out, body)
				}
				for j, att := range m.Attachments {
					fmt.Fprintf(out, "  %s %s (%s)\n", attachments.Tag(j), att.Name, att.MimeType)
				}
			}

			stats := model.ComputeStats(msgs)
			fmt.Fprintf(out, "\n%d messages, %s tokens (%s prompt, %s completion)\n",
				len(msgs), formatCount(stats.GrandTotal),
				formatCount(stats.PromptTokens), formatCount(stats.CompletionTokens))
			return nil
		}),
	}
}

func newSessionsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored session",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteSession(cmd.Context(), args[0]); err != nil {
				return newCommandError("sessions", "delete", err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("sessions delete", map[string]string{"id": args[0]}).Write(out)
			}
			fmt.Fprintln(out, styles.RenderSuccess("Deleted session "+args[0]))
			return nil
		}),
	}
}

func newSessionsExportCommand(a *app) *cobra.Command {
	var (
		format      string
		outDir      string
		title       string
		noMetadata  bool
		noTimestamp bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored session to a file",
		Long: `Export a stored session as JSON, YAML or Markdown.

With --out - the export is written to stdout instead of a file.`,
		Example: `  onys sessions export 3f2a... --format md --out ./exports
  onys sessions export 3f2a... --format yaml --out -`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.IncludeMetadata = !noMetadata
			opts.IncludeTimestamps = !noTimestamp
			opts.OutputDir = outDir

			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}

			id := args[0]
			msgs, err := a.client().LoadSession(cmd.Context(), id)
			if err != nil {
				return newCommandError("sessions", "export", err)
			}
			t := export.NewTranscript(id, title, msgs)

			out := cmd.OutOrStdout()
			if outDir == "-" {
				data, err := exporter.Export(t)
				if err != nil {
					return newCommandError("sessions", "export", err)
				}
				_, err = out.Write(data)
				return err
			}

			path, err := export.ExportToFile(t, exporter, opts)
			if err != nil {
				return newCommandError("sessions", "export", err)
			}
			if a.jsonOut {
				return NewJSONResponse("sessions export", map[string]string{"id": id, "path": path}).Write(out)
			}
			fmt.Fprintln(out, styles.RenderSuccess(fmt.Sprintf("Exported %d messages to %s", len(msgs), path)))
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "md", "export format: "+strings.Join(export.Formats(), ", "))
	f.StringVarP(&outDir, "out", "o", ".", `output directory, or "-" for stdout`)
	f.StringVar(&title, "title", "", "title (default: derived from the first message)")
	f.BoolVar(&noMetadata, "no-metadata", false, "omit title, stats and front matter")
	f.BoolVar(&noTimestamp, "no-timestamps", false, "omit message timestamps")
	return cmd
}
