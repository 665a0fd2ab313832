package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and sizes for both caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, err := ctx.githubCache()
			if err != nil {
				return err
			}
			ly, err := ctx.lyricsCache()
			if err != nil {
				return err
			}

			ghStats := gh.Stats()
			lastUpdate := int64(0)
			if ghStats.LastUpdate != nil {
				lastUpdate = *ghStats.LastUpdate
			}
			lyStats := ly.Stats()

			rows := [][]string{
				{"github", gh.Prefix(), strconv.Itoa(len(ghStats.Keys)), humanBytes(ghStats.Size), humanMillis(lastUpdate)},
				{"lyrics", ctx.settings().LyricsCachePrefix, fmt.Sprintf("%d / %d", lyStats.Entries, ly.MaxEntries()), humanBytes(lyStats.SizeBytes), "-"},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", ctx.settings().StoreBackend)
			fmt.Fprintln(out, renderTable(
				[]string{"Cache", "Prefix", "Entries", "Size", "Last update"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
