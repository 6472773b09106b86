package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBudgetsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "budgets",
		Short: "Show request counters and limits per provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			names := make([]string, 0, len(a.registry.Budgets))
			for name := range a.registry.Budgets {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tENABLED\tTODAY\tDAILY LIMIT\tMONTH\tMONTHLY LIMIT")
			for _, name := range names {
				st := a.registry.Budgets[name].Status()
				fmt.Fprintf(w, "%s\t%t\t%d\t%s\t%d\t%s\n",
					name, a.settings.Enabled(name),
					st.State.RequestsDay.Count, limitString(st.Limits.Daily),
					st.State.RequestsMonth.Count, limitString(st.Limits.Monthly))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nCounters: %s\n", a.budgets.Path())
			return nil
		},
	}
}

func limitString(limit int) string {
	if limit <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}
