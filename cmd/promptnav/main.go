// Command promptnav is a floating prompt navigator for AI chat pages.
//
// Usage:
//
//	promptnav open https://chatgpt.com/c/...           # drive a live Chrome tab
//	promptnav open --listen 127.0.0.1:7777 <url>       # plus the HTTP control surface
//	promptnav mcp <url>                                # expose the session as MCP tools on stdio
//	promptnav scan --url https://claude.ai/chat/x page.html
//	promptnav tui --url https://claude.ai/chat/x page.html
//	promptnav platforms [--json]
//	promptnav platforms seed --platform-db platforms.db
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptnav/overlay"
)

// flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	platforms  string
	platformDB string

	cfg    overlay.Config
	logger *slog.Logger
}

func (g *globals) load(cmd *cobra.Command) error {
	var level slog.Level
	switch g.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	g.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.logger)

	cfg, err := overlay.LoadConfig(g.configPath)
	if err != nil {
		return err
	}
	if g.platforms != "" {
		cfg.Platforms = g.platforms
	}
	if g.platformDB != "" {
		cfg.PlatformDB = g.platformDB
	}
	g.cfg = cfg
	return nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "promptnav",
		Short:         "Floating navigator over the user prompts of AI chat pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to promptnav.yaml")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.platforms, "platforms", "", "YAML platform table (watched for changes)")
	pf.StringVar(&g.platformDB, "platform-db", "", "SQLite platform table (watched for changes)")

	root.AddCommand(
		newOpenCmd(g),
		newMCPCmd(g),
		newScanCmd(g),
		newTUICmd(g),
		newPlatformsCmd(g),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "promptnav:", err)
		os.Exit(1)
	}
}
