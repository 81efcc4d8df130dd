// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Keygate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygate",
		Short: "Keygate - account and token lifecycle service",
		Long: `Keygate is an authentication service handling registration,
credential login, password reset, email verification, and external
identity linking, issuing purpose-scoped signed tokens.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
