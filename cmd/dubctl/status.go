package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0])
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runStatus(cmd *cobra.Command, jobID string) error {
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job_id: %s\n", rec.JobID)
	fmt.Fprintf(out, "url: %s\n", rec.URL)
	fmt.Fprintf(out, "status: %s\n", rec.Status)
	fmt.Fprintf(out, "progress: %d%%\n", rec.Progress)
	if rec.Error != "" {
		fmt.Fprintf(out, "error: %s\n", rec.Error)
	}
	if rec.TranscriptFile != "" {
		fmt.Fprintf(out, "transcript_file: %s\n", rec.TranscriptFile)
	}
	if rec.TranslationFile != "" {
		fmt.Fprintf(out, "translation_file: %s\n", rec.TranslationFile)
	}
	if rec.AudioFile != "" {
		fmt.Fprintf(out, "audio_file: %s\n", rec.AudioFile)
	}
	if rec.VideoFile != "" {
		fmt.Fprintf(out, "video_file: %s\n", rec.VideoFile)
	}
	fmt.Fprintf(out, "estimated_cost_usd: %.4f\n", rec.EstimatedCostUSD)
	fmt.Fprintf(out, "actual_cost_usd: %.4f\n", rec.ActualCostUSD)
	if rec.ProcessingTimeSeconds > 0 {
		fmt.Fprintf(out, "processing_time_seconds: %.1f\n", rec.ProcessingTimeSeconds)
	}
	return nil
}
