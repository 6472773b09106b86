package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

func newForecastCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fetch and print the aggregated forecast for a location",
		Example: `  weather-aggregation forecast --lat 52.374 --lon 4.8897 --name Amsterdam
  weather-aggregation forecast --lat 52.374 --lon 4.8897 --mode week --simulate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			req, asJSON, err := forecastRequest(cmd, a.cfg.Simulate)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.FetchTimeout)
			defer cancel()

			result := a.service.Fetch(ctx, req)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().Float64("lat", 0, "latitude of the location (required)")
	cmd.Flags().Float64("lon", 0, "longitude of the location (required)")
	cmd.Flags().String("name", "", "display name of the location")
	cmd.Flags().String("date", "", "forecast date as YYYY-MM-DD (default: today)")
	cmd.Flags().String("mode", string(weather.ModeDay), "aggregation mode: day or week")
	cmd.Flags().Bool("simulate", false, "serve embedded sample payloads instead of calling the providers")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func forecastRequest(cmd *cobra.Command, defaultSimulate bool) (weather.FetchRequest, bool, error) {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	name, _ := cmd.Flags().GetString("name")
	dateStr, _ := cmd.Flags().GetString("date")
	modeStr, _ := cmd.Flags().GetString("mode")
	asJSON, _ := cmd.Flags().GetBool("json")

	simulate := defaultSimulate
	if cmd.Flags().Changed("simulate") {
		simulate, _ = cmd.Flags().GetBool("simulate")
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return weather.FetchRequest{}, false, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}

	mode, err := weather.ParseMode(modeStr)
	if err != nil {
		return weather.FetchRequest{}, false, err
	}

	date := time.Now()
	if dateStr != "" {
		date, err = time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			return weather.FetchRequest{}, false, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateStr)
		}
	}

	return weather.FetchRequest{
		Location: weather.Location{Name: name, Latitude: lat, Longitude: lon},
		Date:     date,
		Mode:     mode,
		Simulate: simulate,
	}, asJSON, nil
}

func printResult(out io.Writer, result weather.AggregationResult) error {
	title := result.Location.Name
	if title == "" {
		title = result.Location.Key()
	}
	fmt.Fprintf(out, "%s (%s)\n\n", title, result.Mode)

	if result.Empty() {
		fmt.Fprintln(out, "No forecast data available.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tCONDITION\tMIN °C\tMAX °C\tHUMIDITY\tSOURCES")
		fmt.Fprintln(w, "----\t---------\t------\t------\t--------\t-------")
		for _, b := range result.Buckets {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%.0f%%\t%s\n",
				b.Key, b.Record.Condition, b.Record.MinTemperature, b.Record.MaxTemperature,
				b.Record.Humidity, strings.Join(b.Sources, ", "))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(out, "\nProvider errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	return nil
}
