package main

import (
	"fmt"

	"github.com/kovacsmedia/dubctl/internal/job"
	"github.com/kovacsmedia/dubctl/internal/language"
	"github.com/spf13/cobra"
)

type listOptions struct {
	limit   int
	offset  int
	dataDir string
}

func newListCmd() *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum jobs to show (0 for no limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of most-recent jobs to skip")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", defaultDataDir(), "Directory also scanned for finalized transcripts with no job record")

	cmd.AddCommand(newListLanguagesCmd())
	return cmd
}

func newListLanguagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported target languages",
		Run: func(cmd *cobra.Command, args []string) {
			langs := language.GetSupportedLanguages()
			fmt.Fprintln(cmd.OutOrStdout(), "Supported target languages:")
			for _, l := range langs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-35s [%s]\n", l.Name, l.ID)
			}
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// runList prints every durable job record; the
// live, in-process registry a submit is running against is invisible here
// by design, so this reads back the
// same records submit persists as it progresses.
func runList(cmd *cobra.Command, opts *listOptions) error {
	dir, err := statusDir()
	if err != nil {
		return fmt.Errorf("resolve state directory: %w", err)
	}
	records, err := listRecords(dir)
	if err != nil {
		return fmt.Errorf("list job records: %w", err)
	}

	total := len(records)
	if opts.offset > 0 && opts.offset < len(records) {
		records = records[opts.offset:]
	} else if opts.offset >= len(records) {
		records = nil
	}
	if opts.limit > 0 && opts.limit < len(records) {
		records = records[:opts.limit]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d job(s) total\n", total)
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.JobID] = true
		fmt.Fprintf(out, "%s  %-12s  %3d%%  %s\n", rec.JobID, rec.Status, rec.Progress, rec.URL)
	}

	// Transcripts left on disk by an earlier process with no surviving job
	// record still show up, tagged as disk-only entries.
	for _, entry := range job.ScanTranscriptDir(opts.dataDir) {
		if seen[entry.JobID] {
			continue
		}
		fmt.Fprintf(out, "%s  %-12s   --   %s\n", entry.JobID, "ON-DISK", entry.FilePath)
	}
	return nil
}
