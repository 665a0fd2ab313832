package main

import (
	"fmt"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/tsijukebox/jukebox-backend/internal/integrity"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check both caches for entries they can no longer serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.settings()
			if repair && cfg.StoreBackend == "sqlite" {
				lock := flock.New(cfg.SQLitePath + ".lock")
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire repair lock: %w", err)
				}
				if !ok {
					return fmt.Errorf("another repair holds %s", lock.Path())
				}
				defer lock.Unlock()
			}

			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			svc := integrity.NewService(store, cfg)
			results, err := svc.CheckAllIntegrity(cmd.Context())
			if err != nil {
				return fmt.Errorf("integrity checks: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			var total int64
			for _, r := range results {
				total += r.IssueCount
				rows = append(rows, []string{r.CheckName, statusLabel(r.HasIssues, colorize), strconv.FormatInt(r.IssueCount, 10), r.Details})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Issues", "Details"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))

			if total == 0 {
				fmt.Fprintln(out, "No issues found")
				return nil
			}
			if !repair {
				fmt.Fprintln(out, "Run with --repair to remove flagged entries")
				return nil
			}
			removed, err := svc.Cleanup(cmd.Context(), results)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Fprintf(out, "Removed %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Remove flagged entries and rewrite the lyrics index")
	return cmd
}
