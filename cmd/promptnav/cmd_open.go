package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newOpenCmd(g *globals) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "open <url>",
		Short: "Open a chat page in Chrome and attach the prompt panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := openLive(ctx, g, args[0])
			if err != nil {
				return err
			}
			defer l.Close()

			if listen == "" {
				listen = g.cfg.Listen
			}
			eg, ctx := errgroup.WithContext(ctx)
			if listen != "" {
				eg.Go(func() error { return l.serveHTTP(ctx, listen) })
			}
			eg.Go(func() error {
				<-ctx.Done()
				return nil
			})
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP control address, e.g. 127.0.0.1:7777")
	return cmd
}
