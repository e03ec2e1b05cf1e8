// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/onys-chat/internal/config"
	"github.com/jeranaias/onys-chat/internal/ui/styles"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(a),
		newConfigPathCommand(a),
		newConfigInitCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
	)
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return NewJSONResponse("config show", a.cfg).Write(out)
			}
			_, err := fmt.Fprintln(out, a.cfg.String())
			return err
		}),
	}
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.targetPath()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newConfigInitCommand(a *app) *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		Long: `Write a config file with the default values.

The file is TOML unless --format json is given. Without --config it is
written to the onys config directory as config.toml or config.json.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			save := config.SaveTOML
			pathFor := config.ConfigPathTOML
			switch strings.ToLower(format) {
			case "toml":
			case "json":
				save = config.SaveJSON
				pathFor = config.ConfigPathJSON
			default:
				return &UsageError{Msg: fmt.Sprintf("unknown config format %q (use toml or json)", format)}
			}

			path := a.configPath
			if path == "" {
				p, err := pathFor()
				if err != nil {
					return &ConfigError{Err: err}
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &UsageError{Msg: fmt.Sprintf("%s already exists (use --force to overwrite)", path)}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := save(config.Default(), path); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess("Wrote "+path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "file format: toml or json")
	return cmd
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Long:  "Print one configuration value. Keys:\n  " + strings.Join(config.GetAllKeys(), "\n  "),
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		}),
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration value and save the file",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			path, err := a.targetPath()
			if err != nil {
				return err
			}

			// Edit the file as stored, so flag and environment overrides
			// are not written back.
			load, save := config.LoadTOML, config.SaveTOML
			if strings.HasSuffix(path, ".json") {
				load, save = config.LoadJSON, config.SaveJSON
			}
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if err := load(cfg, path); err != nil {
					return &ConfigError{Path: path, Err: err}
				}
			}

			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Msg: err.Error()}
			}
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := save(cfg, path); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess(args[0]+" = "+args[1]))
			return nil
		}),
	}
}

// targetPath is the file config commands read and write.
func (a *app) targetPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}
