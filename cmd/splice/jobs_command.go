package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/ipc"
	"splice/internal/tracker"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jobsJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List live render jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Jobs()
				if err != nil {
					return err
				}
				if jobsJSON {
					return writeJSON(cmd, resp.Jobs)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No live render jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Name", "Status", "Stage", "Progress", "Frames", "Elapsed"},
					buildJobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jobsJSON, "json", false, "Emit jobs as JSON")
	return cmd
}

func buildJobRows(jobs []tracker.Progress) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.JobID),
			truncate(job.Name, 32),
			string(job.Status),
			job.StageLabel,
			formatPercent(job.Percent),
			formatFrames(job.CurrentFrame, job.TotalFrames),
			formatDuration(job.Elapsed),
		})
	}
	return rows
}
