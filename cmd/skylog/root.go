// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/skylog/skylog/internal/config"
	"github.com/skylog/skylog/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the skylog CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skylog",
		Short: "Skylog - aviation record keeping",
		Long: `Skylog keeps flight logs, inspections, and pilot records.
This CLI manages the credential core: schema migrations, account
administration, and the ops endpoint.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("log.format", "", "log format: json or text")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewOpsCmd())
	cmd.AddCommand(NewAccountCmd())
	cmd.AddCommand(NewWebCmd())

	return cmd
}

// NewWebCmd creates the web subcommand.
func NewWebCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Start the record-keeping web server",
		Long: `Start the web server for flight log, inspection, and pilot
record management.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("web: not implemented yet")
			return nil
		},
	}
}

// loadConfig builds the runtime configuration from the --config file and
// any bound flags, and installs the default logger.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	logging.SetDefault("skylog", version, cfg.Log.Format)
	return cfg, nil
}
