package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"splice/internal/config"
	"splice/internal/ipc"
	"splice/internal/project"
	"splice/internal/textutil"
)

const defaultContainerExt = ".mp4"

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "render <project.json>",
		Short: "Submit a project document for rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(projectPath)
			if err != nil {
				return fmt.Errorf("read project file: %w", err)
			}
			p, err := project.Parse(data)
			if err != nil {
				return err
			}

			output := outputPath
			if output == "" {
				output = defaultOutputPath(ctx.configValue(), p.Name)
			}
			output, err = config.ExpandPath(output)
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Render(data, output)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Render accepted: job %s\n", resp.JobID)
				fmt.Fprintf(stdout, "Output: %s\n", output)
				if watch {
					return followJob(cmd, client, resp.JobID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (defaults to the configured output directory)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow render progress until the job finishes")
	return cmd
}

func defaultOutputPath(cfg *config.Config, projectName string) string {
	name := textutil.SanitizeFileName(projectName)
	if name == "" {
		name = "render"
	}
	dir := ""
	if cfg != nil {
		dir = cfg.Paths.OutputDir
	}
	return filepath.Join(dir, name+defaultContainerExt)
}
