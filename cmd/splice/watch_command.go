package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"splice/internal/ipc"
	"splice/internal/tracker"
)

const eventPollWindow = 2 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Follow a render job with a progress bar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				jobID := ""
				if len(args) == 1 {
					jobID = args[0]
				} else {
					resolved, err := resolveSingleJob(client)
					if err != nil {
						return err
					}
					jobID = resolved
				}
				return followJob(cmd, client, jobID)
			})
		},
	}
}

func resolveSingleJob(client *ipc.Client) (string, error) {
	resp, err := client.Jobs()
	if err != nil {
		return "", err
	}
	switch len(resp.Jobs) {
	case 0:
		return "", fmt.Errorf("no live render jobs")
	case 1:
		return resp.Jobs[0].JobID, nil
	default:
		ids := make([]string, 0, len(resp.Jobs))
		for _, job := range resp.Jobs {
			ids = append(ids, job.JobID)
		}
		return "", fmt.Errorf("multiple live jobs, specify one of: %s", strings.Join(ids, ", "))
	}
}

// followJob streams lifecycle events for one job until it reaches a
// terminal state. Jobs that already finished are reported from history.
func followJob(cmd *cobra.Command, client *ipc.Client, jobID string) error {
	stdout := cmd.OutOrStdout()

	progress, err := client.Progress(jobID)
	if err != nil {
		return err
	}
	if !progress.Found {
		return reportFinishedJob(cmd, client, jobID)
	}

	total := progress.Progress.TotalFrames
	if total <= 0 {
		total = -1
	}
	description := truncate(progress.Progress.Name, 24)
	if description == "" {
		description = shortID(jobID)
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(stdout),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
	if progress.Progress.CurrentFrame > 0 {
		_ = bar.Set64(progress.Progress.CurrentFrame)
	}

	// Start from the oldest buffered event so a terminal event that
	// raced the progress lookup is not missed.
	var cursor uint64
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		resp, err := client.Events(cursor, 500, true, eventPollWindow)
		if err != nil {
			return err
		}
		cursor = resp.Next
		for _, evt := range resp.Events {
			if evt.JobID != jobID {
				continue
			}
			switch evt.Type {
			case tracker.EventProgressChanged:
				if evt.Progress != nil {
					_ = bar.Set64(evt.Progress.CurrentFrame)
				}
			case tracker.EventJobCompleted:
				_ = bar.Finish()
				fmt.Fprintln(stdout)
				fmt.Fprintf(stdout, "Render complete: %s (%s)\n", evt.OutputPath, formatDuration(evt.Duration))
				return nil
			case tracker.EventJobFailed:
				fmt.Fprintln(stdout)
				return fmt.Errorf("render failed: %s", evt.Error)
			case tracker.EventJobCancelled:
				fmt.Fprintln(stdout)
				fmt.Fprintf(stdout, "Render cancelled: job %s\n", jobID)
				return nil
			}
		}
	}
}

func reportFinishedJob(cmd *cobra.Command, client *ipc.Client, jobID string) error {
	shown, err := client.HistoryShow(jobID)
	if err != nil {
		return err
	}
	if !shown.Found {
		return fmt.Errorf("unknown job %s", jobID)
	}
	entry := shown.Entry
	stdout := cmd.OutOrStdout()
	switch entry.Status {
	case tracker.StatusCompleted:
		fmt.Fprintf(stdout, "Render complete: %s (%s)\n", entry.OutputPath, formatDuration(entry.Duration))
		return nil
	case tracker.StatusCancelled:
		fmt.Fprintf(stdout, "Render cancelled: job %s\n", jobID)
		return nil
	default:
		return fmt.Errorf("render failed: %s", entry.ErrorMessage)
	}
}
