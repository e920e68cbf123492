package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptnav/tui"
)

func newTUICmd(g *globals) *cobra.Command {
	var href string
	cmd := &cobra.Command{
		Use:   "tui <file.html>",
		Short: "Browse the prompts of a saved chat page in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := loadPage(args[0], href)
			if err != nil {
				return err
			}
			reg, err := openRegistry(ctx, g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer reg.Close()

			opts := g.cfg.Options(reg.Registry, g.logger)
			opts.Panel = tui.CellPanel
			return tui.Run(ctx, doc, opts)
		},
	}
	cmd.Flags().StringVar(&href, "url", "", "address the page was saved from (selects the platform)")
	cmd.MarkFlagRequired("url")
	return cmd
}
