package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type downloadOptions struct {
	output string
}

var downloadableKinds = map[string]func(jobRecord) string{
	"transcript":  func(r jobRecord) string { return r.TranscriptFile },
	"translation": func(r jobRecord) string { return r.TranslationFile },
	"audio":       func(r jobRecord) string { return r.AudioFile },
	"video":       func(r jobRecord) string { return r.VideoFile },
}

func newDownloadCmd() *cobra.Command {
	opts := downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download <job_id> <transcript|translation|audio|video>",
		Short: "Download a job's produced file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0], args[1], &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write to this path instead of stdout")
	return cmd
}

// runDownload streams a single stage's output file for jobID: an unknown
// job or kind is reported as not found, and
// a kind the job never produced (wrong kind for its enabled stages, or not
// reached yet) is reported as not ready, mirroring the HTTP surface's
// 404/400 distinction in CLI exit-error form.
func runDownload(cmd *cobra.Command, jobID, kind string, opts *downloadOptions) error {
	getter, ok := downloadableKinds[kind]
	if !ok {
		return fmt.Errorf("unknown file kind %q: must be one of transcript, translation, audio, video", kind)
	}

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

	path := getter(rec)
	if path == "" {
		return fmt.Errorf("job %s has no %s file (not produced, or the stage has not completed yet)", jobID, kind)
	}

	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("job %s's %s file is no longer on disk: %s", jobID, kind, path)
		}
		return err
	}
	defer src.Close()

	if opts.output == "" {
		_, err := io.Copy(cmd.OutOrStdout(), src)
		return err
	}

	dst, err := os.OpenFile(opts.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open output path: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s to %s\n", kind, opts.output)
	return nil
}
