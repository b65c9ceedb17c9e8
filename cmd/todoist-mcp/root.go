package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Running the binary without a
// subcommand starts the server.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "todoist-mcp",
		Short: "MCP server exposing Todoist tasks, projects, sections and comments",
		Long: `todoist-mcp serves batch Todoist tools over MCP streamable HTTP.

Clients authenticate with OAuth 2.1 (relayed to an upstream identity
provider) or with pre-shared bearer tokens. All configuration is read
from the environment or a .env file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.SetVersionTemplate(`{{printf "todoist-mcp version %s\n" .Version}}`)
	root.AddCommand(newServeCmd(), newVersionCmd())

	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "todoist-mcp version %s\n", Version)
		},
	}
}
