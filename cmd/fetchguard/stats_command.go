package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/spf13/cobra"
)

func newStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show download and classification counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))

			return nil
		},
	}
}

func renderStats(stats *entity.Stats) string {
	files := make([][]string, 0, len(stats.Files))
	for _, f := range stats.Files {
		files = append(files, []string{f.Path, strconv.FormatInt(f.Counter, 10)})
	}

	outcomes := make([][]string, 0, len(stats.Outcomes))
	for _, o := range stats.Outcomes {
		outcomes = append(outcomes, []string{o.Kind, strconv.FormatInt(o.Counter, 10)})
	}

	recent := make([][]string, 0, len(stats.Recent))
	for _, r := range stats.Recent {
		recent = append(recent, []string{r.Finished.Local().Format(time.DateTime), r.Path, r.Elapsed.Round(time.Millisecond).String()})
	}

	return renderTable([]string{"File", "Downloads"}, files, []columnAlignment{alignLeft, alignRight}) + "\n" +
		renderTable([]string{"Outcome", "Count"}, outcomes, []columnAlignment{alignLeft, alignRight}) + "\n" +
		renderTable([]string{"Finished", "File", "Took"}, recent, []columnAlignment{alignLeft, alignLeft, alignRight})
}
