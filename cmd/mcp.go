package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/comply/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client check and review copy and read audit logs.
Configure it with:

  {
    "mcpServers": {
      "comply": { "command": "comply", "args": ["mcp"] }
    }
  }

Available tools: comply_check, comply_review, comply_list_rules,
comply_list_runs, comply_get_audit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, set, err := newServerService()
		if err != nil {
			return err
		}
		return mcp.NewServer(svc, set, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
