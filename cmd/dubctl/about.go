package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "dubctl — multilingual video dubbing pipeline engine")
			fmt.Fprintln(out, "transcribe, translate, synthesize, and mux dubbed video from a single source URL")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
