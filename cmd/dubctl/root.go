package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kovacsmedia/dubctl/internal/cleanup"
	"github.com/kovacsmedia/dubctl/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// normalizeFlagName lets the snake_case spellings of the submission options
// (test_mode, target_language, max_cost, ...) resolve to their dashed flag
// names, so a request pasted from an API-shaped document works unchanged.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	submitOpts := submitOptions{}

	cmd := &cobra.Command{
		Use:   "dubctl",
		Short: "Multilingual video dubbing pipeline engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if isSubcommand(cmd, args[0]) {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return runSubmit(cmd, args, &submitOpts)
		},
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
	}

	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	addSubmitFlags(cmd, &submitOpts)

	cmd.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newDownloadCmd(),
		newCancelCmd(),
		newEnvCmd(),
		newAboutCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.Short = "dubctl — multilingual video dubbing pipeline engine"
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func isSubcommand(cmd *cobra.Command, name string) bool {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}
