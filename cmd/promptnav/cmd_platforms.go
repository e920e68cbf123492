package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptnav/platform"
)

func newPlatformsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "Show the platform table in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := openRegistry(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer reg.Close()

			configs := reg.Configs()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(configs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tHOSTNAME\tCONTAINER\tSELECTORS")
			for _, c := range configs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.HostnameMatch, c.ContainerSelector, strings.Join(c.Selectors, " | "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.AddCommand(newPlatformsSeedCmd(g))
	return cmd
}

func newPlatformsSeedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the platform table (--platforms file, or built-in) into --platform-db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.cfg.PlatformDB == "" {
				return fmt.Errorf("seed: --platform-db is required")
			}
			configs := platform.Defaults()
			if g.cfg.Platforms != "" {
				var err error
				if configs, err = platform.LoadFile(g.cfg.Platforms); err != nil {
					return err
				}
			}
			db, err := platform.OpenDB(g.cfg.PlatformDB)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := platform.SaveDB(cmd.Context(), db, configs); err != nil {
				return err
			}
			g.logger.Info("promptnav: platform table written", "path", g.cfg.PlatformDB, "platforms", len(configs))
			return nil
		},
	}
}
