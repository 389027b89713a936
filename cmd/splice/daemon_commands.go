package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"splice/internal/artifactcache"
	"splice/internal/daemonctl"
	"splice/internal/ipc"
	"splice/internal/tracker"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the splice daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the splice daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time, killed process %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the splice daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, cache, and history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.StatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonLines(ctx, status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Artifact Cache", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderTable(
					[]string{"Region", "Entries", "Limit", "Size", "Hit Ratio"},
					buildCacheRegionRows(status.Cache),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				fmt.Fprintf(stdout, "Total: %s of %s budget\n", formatBytes(status.Cache.TotalBytes), formatBytes(status.Cache.BudgetBytes))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Cache", statusInfo, "Unavailable (daemon not running)", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Render History", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildHistoryStatusRows(status.History)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No render history")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonLines(ctx *commandContext, status ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 6)
	if status.Running {
		lines = append(lines, renderStatusLine("Splice", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		lines = append(lines, renderStatusLine("Active jobs", statusInfo, fmt.Sprintf("%d of %d", status.ActiveJobs, status.MaxActiveJobs), colorize))
	} else {
		lines = append(lines, renderStatusLine("Splice", statusWarn, "Not running (run `splice start`)", colorize))
	}

	if cfg := ctx.configValue(); cfg != nil {
		if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
			lines = append(lines, renderStatusLine("Notifications", statusOK, "Configured", colorize))
		} else {
			lines = append(lines, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
		}
	}

	lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	lines = append(lines, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	lines = append(lines, renderStatusLine("Log file", statusInfo, status.LogFilePath, colorize))
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Detail)
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func buildCacheRegionRows(stats artifactcache.Stats) [][]string {
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
			formatRatio(region.stats.HitRatio),
		})
	}
	return rows
}

func buildHistoryStatusRows(stats map[tracker.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	order := []tracker.Status{tracker.StatusCompleted, tracker.StatusFailed, tracker.StatusCancelled}
	seen := make(map[tracker.Status]bool, len(order))
	rows := make([][]string, 0, len(stats))
	for _, status := range order {
		seen[status] = true
		if count, ok := stats[status]; ok {
			rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
		}
	}
	rest := make([]string, 0)
	for status := range stats {
		if !seen[status] {
			rest = append(rest, string(status))
		}
	}
	sort.Strings(rest)
	for _, status := range rest {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[tracker.Status(status)])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if configPath := strings.TrimSpace(*ctx.configFlag); configPath != "" {
			opts.ConfigPath = configPath
		}
	}
	return opts
}
