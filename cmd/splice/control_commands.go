package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/ipc"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				if !resp.Cancelled {
					return fmt.Errorf("no live job %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Pause a render job at its next stage boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause(args[0])
				if err != nil {
					return err
				}
				if !resp.Paused {
					return fmt.Errorf("no live job %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pause requested for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Resume a paused render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume(args[0])
				if err != nil {
					return err
				}
				if !resp.Resumed {
					return fmt.Errorf("no live job %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed job %s\n", args[0])
				return nil
			})
		},
	}
}
