package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/history"
	"splice/internal/ipc"
	"splice/internal/tracker"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished renders",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryClearCommand(ctx))
	cmd.AddCommand(newHistoryHealthCommand(ctx))
	return cmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		useJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List finished renders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if useJSON {
					return writeJSON(cmd, resp.Entries)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No render history")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Name", "Status", "Output", "Duration", "Finished"},
					buildHistoryRows(resp.Entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 for all)")
	cmd.Flags().BoolVar(&useJSON, "json", false, "Emit entries as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var useJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one finished render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryShow(args[0])
				if err != nil {
					return err
				}
				if !resp.Found {
					return fmt.Errorf("no history entry for job %s", args[0])
				}
				if useJSON {
					return writeJSON(cmd, resp.Entry)
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range historyEntryLines(*resp.Entry, colorize) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&useJSON, "json", false, "Emit the entry as JSON")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries\n", resp.Removed)
				return nil
			})
		},
	}
}

func newHistoryHealthCommand(ctx *commandContext) *cobra.Command {
	var useJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if useJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, resp.DBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Exists", statusKindFromResult(resp.DatabaseExists), yesNo(resp.DatabaseExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", statusKindFromResult(resp.DatabaseReadable), yesNo(resp.DatabaseReadable), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Table", statusKindFromResult(resp.TableExists), yesNo(resp.TableExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Integrity", statusKindFromResult(resp.IntegrityCheck), yesNo(resp.IntegrityCheck), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Entries", statusInfo, fmt.Sprintf("%d", resp.TotalEntries), colorize))
				if resp.Error != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, resp.Error, colorize))
					return fmt.Errorf("history database unhealthy")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&useJSON, "json", false, "Emit the report as JSON")
	return cmd
}

func buildHistoryRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			shortID(entry.JobID),
			truncate(entry.JobName, 32),
			string(entry.Status),
			truncate(entry.OutputPath, 40),
			formatDuration(entry.Duration),
			formatRelativeTime(entry.FinishedAt),
		})
	}
	return rows
}

func historyEntryLines(entry history.Entry, colorize bool) []string {
	lines := []string{
		renderStatusLine("Job", statusInfo, entry.JobID, colorize),
		renderStatusLine("Name", statusInfo, entry.JobName, colorize),
		renderStatusLine("Status", statusKindForJob(entry.Status), string(entry.Status), colorize),
		renderStatusLine("Output", statusInfo, entry.OutputPath, colorize),
		renderStatusLine("Frames", statusInfo, formatFrames(entry.RenderedFrames, entry.TotalFrames), colorize),
		renderStatusLine("Duration", statusInfo, formatDuration(entry.Duration), colorize),
		renderStatusLine("Started", statusInfo, entry.StartedAt.Local().Format("2006-01-02 15:04:05"), colorize),
		renderStatusLine("Finished", statusInfo, entry.FinishedAt.Local().Format("2006-01-02 15:04:05"), colorize),
	}
	if entry.ErrorMessage != "" {
		lines = append(lines, renderStatusLine("Error", statusError, entry.ErrorMessage, colorize))
	}
	return lines
}

func statusKindForJob(status tracker.Status) statusKind {
	switch status {
	case tracker.StatusCompleted:
		return statusOK
	case tracker.StatusCancelled:
		return statusWarn
	case tracker.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
