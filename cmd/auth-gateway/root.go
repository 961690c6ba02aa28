package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the auth-gateway CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth-gateway",
		Short: "PropPicks authentication gateway",
		Long: `auth-gateway registers users, verifies credentials and issues
signed access tokens for the PropPicks API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}
