package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
)

func newLyricsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lyrics",
		Short: "Inspect and manage the lyrics cache",
	}
	cmd.AddCommand(newLyricsGetCommand(ctx))
	cmd.AddCommand(newLyricsClearCommand(ctx))
	cmd.AddCommand(newLyricsKeyCommand(ctx))
	return cmd
}

func newLyricsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <track> <artist>",
		Short: "Print cached lyrics for a track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ly, err := ctx.lyricsCache()
			if err != nil {
				return err
			}
			d, ok := ly.Get(args[0], args[1])
			if !ok {
				return fmt.Errorf("no cached lyrics for %q by %q", args[0], args[1])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s (synced: %s)\n", d.Source, yesNo(d.Synced))
			if len(d.Lines) == 0 {
				fmt.Fprintln(out, "No lyrics")
				return nil
			}
			rows := make([][]string, 0, len(d.Lines))
			for _, line := range d.Lines {
				rows = append(rows, []string{formatOffset(line.Time), line.Text})
			}
			fmt.Fprintln(out, renderTable([]string{"Time", "Line"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}
}

func newLyricsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every lyrics cache entry and the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ly, err := ctx.lyricsCache()
			if err != nil {
				return err
			}
			n := ly.Stats().Entries
			ly.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d lyrics entries\n", n)
			return nil
		},
	}
}

func newLyricsKeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "key <track> <artist>",
		Short: "Print the store key derived for a track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ly := lyrics.NewCache(nil, ctx.settings())
			fmt.Fprintln(cmd.OutOrStdout(), ly.DeriveKey(args[0], args[1]))
			return nil
		},
	}
}

// formatOffset renders seconds as m:ss.cc.
func formatOffset(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(sec*100 + 0.5)
	return fmt.Sprintf("%d:%02d.%02d", cs/6000, (cs/100)%60, cs%100)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
