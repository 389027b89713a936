package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"splice/internal/ipc"
	"splice/internal/tracker"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		since   uint64
		limit   int
		follow  bool
		useJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the render event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if !follow {
					resp, err := client.Events(since, limit, false, 0)
					if err != nil {
						return err
					}
					if useJSON {
						return writeJSON(cmd, resp.Events)
					}
					if len(resp.Events) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No events")
						return nil
					}
					for _, evt := range resp.Events {
						printEventLine(cmd.OutOrStdout(), evt)
					}
					return nil
				}

				cursor := since
				for {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					resp, err := client.Events(cursor, limit, true, eventPollWindow)
					if err != nil {
						return err
					}
					cursor = resp.Next
					for _, evt := range resp.Events {
						if useJSON {
							if err := writeJSON(cmd, evt); err != nil {
								return err
							}
							continue
						}
						printEventLine(cmd.OutOrStdout(), evt)
					}
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events per fetch")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().BoolVar(&useJSON, "json", false, "Output events as JSON")
	return cmd
}

func printEventLine(out io.Writer, evt tracker.Event) {
	fmt.Fprintf(out, "%6d  %s  %-17s  %-8s  %s\n",
		evt.Sequence,
		evt.Timestamp.Local().Format("15:04:05"),
		evt.Type,
		shortID(evt.JobID),
		eventDetail(evt))
}

func eventDetail(evt tracker.Event) string {
	switch evt.Type {
	case tracker.EventJobStarted:
		if evt.Progress != nil {
			return evt.Progress.Name
		}
	case tracker.EventProgressChanged:
		if evt.Progress != nil {
			return fmt.Sprintf("%s %s", formatPercent(evt.Progress.Percent), evt.Progress.StageLabel)
		}
	case tracker.EventJobCompleted:
		return evt.OutputPath
	case tracker.EventJobFailed:
		return evt.Error
	case tracker.EventJobCancelled:
		if evt.Progress != nil {
			return evt.Progress.Name
		}
	}
	return ""
}
