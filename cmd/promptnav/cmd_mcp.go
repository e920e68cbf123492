package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptnav/overlay"
)

// version is set at build time.
var version = "dev"

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <url>",
		Short: "Attach to a chat page and serve its prompts as MCP tools on stdio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := openLive(ctx, g, args[0])
			if err != nil {
				return err
			}
			defer l.Close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "promptnav", Version: version}, nil)
			overlay.RegisterMCP(srv, overlay.MakeEndpoints(l.session))
			g.logger.Info("promptnav: mcp serving on stdio", "session", l.session.ID())
			return srv.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
