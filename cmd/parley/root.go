// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-dev/parley/internal/config"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// NewRootCmd creates the root parley command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "Parley - mock-interview orchestration gateway",
		Long:          "Parley runs timed, multi-phase practice and mock interview sessions driven by an LLM planner under deterministic supervision.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags, mapped to viper keys in initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newSecretCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover parley.yaml from standard locations.
		// SetConfigType is intentionally omitted: when set, Viper also
		// tries the bare config name without extension, which collides
		// with the ./parley binary in the project root.
		v.SetConfigName("parley")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/parley")
		v.AddConfigPath("/etc/parley")
		// No config file is fine; defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere: bootstrap a default to ~/.config/parley/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return parleyerr.Errorf(parleyerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
