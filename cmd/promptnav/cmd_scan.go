package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptnav/dom/htmldoc"
	"github.com/hazyhaar/promptnav/scanner"
)

// loadPage parses a saved HTML page as if it were served from href.
func loadPage(path, href string) (*htmldoc.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return htmldoc.Parse(f, href)
}

func newScanCmd(g *globals) *cobra.Command {
	var href string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <file.html>",
		Short: "List the prompts of a saved chat page",
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
			scfg := opts.Scanner
			scfg.StartDelay = time.Hour // the single scan below is explicit
			s := scanner.New(doc, scfg)
			if err := s.Start(ctx); err != nil {
				return err
			}
			defer s.Stop()

			rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			st, err := s.Rescan(rctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			return printPrompts(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&href, "url", "", "address the page was saved from (selects the platform)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagRequired("url")
	return cmd
}

func printPrompts(w io.Writer, st scanner.State) error {
	fmt.Fprintf(w, "platform: %s, %d prompts\n", st.Platform, len(st.Prompts))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTEXT")
	for _, p := range st.Prompts {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Index, p.ID, p.Text)
	}
	return tw.Flush()
}
