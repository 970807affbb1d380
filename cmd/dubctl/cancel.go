package main

import (
	"fmt"
	"os"

	"github.com/kovacsmedia/dubctl/internal/job"
	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Request cooperative cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, args[0])
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// runCancel drops a cancellation marker the submitting process's watchJob
// loop polls for; cancellation takes effect at the job's next stage
// boundary or chunk checkpoint. There is no other channel back into a job
// running in a
// different process's in-memory registry, so this is
// the only mechanism available to a separate `dubctl cancel` invocation.
func runCancel(cmd *cobra.Command, jobID string) error {
	dir, err := statusDir()
	if err != nil {
		return fmt.Errorf("resolve state directory: %w", err)
	}
	rec, err := readRecord(dir, jobID)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no job found with id %q", jobID)
		}
		return err
	}
	if job.IsTerminal(job.Status(rec.Status)) {
		fmt.Fprintf(cmd.OutOrStdout(), "job %s already finished with status %s\n", jobID, rec.Status)
		return nil
	}

	if err := requestCancel(dir, jobID); err != nil {
		return fmt.Errorf("request cancellation: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for job %s\n", jobID)
	return nil
}
