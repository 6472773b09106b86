package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSearchCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Look up locations by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			if a.registry.Geocoder == nil {
				return a.registry.GeocoderErr
			}

			simulate := a.cfg.Simulate
			if cmd.Flags().Changed("simulate") {
				simulate, _ = cmd.Flags().GetBool("simulate")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.FetchTimeout)
			defer cancel()

			locations, err := a.registry.Geocoder.Search(ctx, strings.Join(args, " "), simulate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(locations) == 0 {
				fmt.Fprintln(out, "No locations found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE\tCOUNTRY\tLAT\tLON\tPLACE ID")
			for _, l := range locations {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%s\n", l.Name, l.State, l.Country, l.Latitude, l.Longitude, l.PlaceID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("simulate", false, "serve the embedded sample payload instead of calling the geocoder")
	return cmd
}
