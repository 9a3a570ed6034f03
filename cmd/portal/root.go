// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the portal CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Vysus Training Platform - authentication-gated training portal",
		Long: `The training portal serves the Vysus Group engineering training content
behind cookie-session authentication restricted to company email addresses.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}
