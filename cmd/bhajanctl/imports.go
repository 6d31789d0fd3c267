package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/derWhity/bhajanbook/internal/importer"
)

var jobStatusNames = map[importer.JobStatus]string{
	importer.StatusQueued:    "queued",
	importer.StatusRunning:   "running",
	importer.StatusFinished:  "finished",
	importer.StatusFailed:    "failed",
	importer.StatusCancelled: "cancelled",
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import song collections on the server",
	}
	start := &cobra.Command{
		Use:   "start <dir>",
		Short: "Queue the import of a collection directory below the server's import root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.client.StartImport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printf(cmd, "Import of %s %s\n", job.RootDir, jobStatusNames[job.Status])
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the imports known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := a.client.Imports(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIRECTORY\tSTATUS\tIMPORTED\tSKIPPED\tFAILED\tTOTAL")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
					j.RootDir, jobStatusNames[j.Status], j.Imported, j.Skipped, j.Failed, j.Total)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(start, list)
	return cmd
}
