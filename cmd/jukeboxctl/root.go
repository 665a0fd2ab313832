package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "jukeboxctl",
		Short:         "Inspect and manage the jukebox caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.backendFlag, "backend", "", "Store backend: memory, sqlite or postgres (default from STORE_BACKEND)")
	flags.StringVar(&ctx.sqlitePathFlag, "sqlite-path", "", "SQLite database file (default from STORE_SQLITE_PATH)")
	flags.StringVar(&ctx.databaseURLFlag, "database-url", "", "Postgres connection string (default from DATABASE_URL)")

	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newGitHubCommand(ctx))
	rootCmd.AddCommand(newLyricsCommand(ctx))
	rootCmd.AddCommand(newVerifyCommand(ctx))
	rootCmd.AddCommand(newManCommand(rootCmd))

	return rootCmd
}
