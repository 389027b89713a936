package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/artifactcache"
	"splice/internal/ipc"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the artifact cache",
	}
	cmd.AddCommand(newCacheStatsCommand(ctx))
	cmd.AddCommand(newCacheSweepCommand(ctx))
	cmd.AddCommand(newCacheClearCommand(ctx))
	cmd.AddCommand(newCacheSetLimitsCommand(ctx))
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var useJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show artifact cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheStats()
				if err != nil {
					return err
				}
				if useJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, renderTable(
					[]string{"Region", "Entries", "Limit", "Size", "Requests", "Hits", "Hit Ratio"},
					buildCacheDetailRows(resp.Stats),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				fmt.Fprintf(stdout, "Total: %s of %s budget\n",
					formatBytes(resp.Usage.TotalBytes), formatBytes(resp.Usage.BudgetBytes))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&useJSON, "json", false, "Emit statistics as JSON")
	return cmd
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Drop expired artifact cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheSweep()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d expired entries\n", resp.Removed)
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [region]",
		Short: "Empty the artifact cache, or one region of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region := ""
			if len(args) == 1 {
				region = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheClear(region)
				if err != nil {
					return err
				}
				if region == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached entries\n", resp.Removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries from %s cache\n", resp.Removed, region)
				}
				return nil
			})
		},
	}
}

func newCacheSetLimitsCommand(ctx *commandContext) *cobra.Command {
	var preview, metadata, render int
	cmd := &cobra.Command{
		Use:   "set-limits",
		Short: "Change per-region entry limits",
		Long:  "Change per-region entry limits. Regions without a flag keep their current limit; a zero limit empties and disables the region.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.CacheStats()
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("preview") {
					preview = current.Stats.Preview.MaxEntries
				}
				if !cmd.Flags().Changed("metadata") {
					metadata = current.Stats.Metadata.MaxEntries
				}
				if !cmd.Flags().Changed("render") {
					render = current.Stats.Render.MaxEntries
				}
				resp, err := client.CacheSetLimits(preview, metadata, render)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cache limits updated: preview=%d metadata=%d render=%d\n",
					resp.Stats.Preview.MaxEntries, resp.Stats.Metadata.MaxEntries, resp.Stats.Render.MaxEntries)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&preview, "preview", 0, "Entry limit for the preview region")
	cmd.Flags().IntVar(&metadata, "metadata", 0, "Entry limit for the metadata region")
	cmd.Flags().IntVar(&render, "render", 0, "Entry limit for the render region")
	return cmd
}

func buildCacheDetailRows(stats artifactcache.Stats) [][]string {
	regions := []struct {
		name  string
		stats artifactcache.RegionStats
	}{
		{"preview", stats.Preview},
		{"metadata", stats.Metadata},
		{"render", stats.Render},
	}
	rows := make([][]string, 0, len(regions))
	for _, region := range regions {
		rows = append(rows, []string{
			region.name,
			fmt.Sprintf("%d", region.stats.Entries),
			fmt.Sprintf("%d", region.stats.MaxEntries),
			formatBytes(region.stats.Bytes),
			fmt.Sprintf("%d", region.stats.Requests),
			fmt.Sprintf("%d", region.stats.Hits),
			formatRatio(region.stats.HitRatio),
		})
	}
	return rows
}
