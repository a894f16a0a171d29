package cli

import (
	"fmt"

	"github.com/neilberkman/p0pkit/cmd/p0pkit/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing loss analysis and run history",
	Long: `Start an MCP (Model Context Protocol) server on stdio so that an MCP
client can analyze logs and browse recorded runs.

Example client configuration:
  {
    "mcpServers": {
      "p0pkit": {
        "command": "p0pkit",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	if err := mcp.StartServer(dbPath); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
