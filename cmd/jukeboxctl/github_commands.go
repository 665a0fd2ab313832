package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGitHubCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "Inspect and manage the GitHub stats cache",
	}
	cmd.AddCommand(newGitHubGetCommand(ctx))
	cmd.AddCommand(newGitHubSetCommand(ctx))
	cmd.AddCommand(newGitHubClearCommand(ctx))
	return cmd
}

func newGitHubGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached entry and its expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, err := ctx.githubCache()
			if err != nil {
				return err
			}
			key := args[0]
			cachedAt, ok := gh.Timestamp(key)
			if !ok {
				return fmt.Errorf("no cache entry for %q", key)
			}
			expiresAt, _ := gh.Expiration(key)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:     %s\n", key)
			fmt.Fprintf(out, "Cached:  %s\n", humanMillis(cachedAt))
			if gh.IsExpired(key) {
				fmt.Fprintf(out, "Expired: %s\n", humanMillis(expiresAt))
				return nil
			}
			fmt.Fprintf(out, "Expires: %s\n", humanMillis(expiresAt))

			var raw json.RawMessage
			if !gh.Get(key, &raw) {
				return fmt.Errorf("entry %q could not be read", key)
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(raw)
			}
			fmt.Fprintln(out, pretty.String())
			return nil
		},
	}
}

func newGitHubSetCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value, using the key's default TTL unless --ttl is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], []byte(args[1])
			if !json.Valid(value) {
				return errors.New("value must be valid JSON")
			}
			if ttl < 0 {
				return errors.New("--ttl must not be negative")
			}
			gh, err := ctx.githubCache()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = gh.TTLFor(key)
			}
			gh.SetWithTTL(key, json.RawMessage(value), ttl)
			if _, ok := gh.Timestamp(key); !ok {
				return fmt.Errorf("entry %q was not written (store full or unavailable)", key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (ttl %s)\n", key, ttl)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Freshness window, e.g. 5m (default: per-key TTL table)")
	return cmd
}

func newGitHubClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one entry, or every GitHub cache entry when no key is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, err := ctx.githubCache()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			gh.Clear(key)
			if key == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared all GitHub cache entries")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", key)
			}
			return nil
		},
	}
}
