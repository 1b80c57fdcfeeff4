// CropDoctor - crop problem diagnosis from a description or a photo.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/config"
	"github.com/matiasleandrokruk/cropdoctor/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// usageError marks bad flags or arguments (exit code 2).
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
}

func run(args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(out, "error:", err) //nolint:errcheck
	var uErr usageError
	if errors.As(err, &uErr) {
		return 2
	}
	return 1
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	var showVersion bool

	root := &cobra.Command{
		Use:   "cropdoctor",
		Short: "CropDoctor - AI crop diagnosis with organic treatments",
		Long: `CropDoctor diagnoses crop problems from a description of the symptoms or a
photo of the affected plant, and suggests organic treatments and prevention tips.

Configuration comes from config.yaml, a .env file and environment variables
(GEMINI_API_KEY, LLM_PROVIDER, HTTP_PORT, DB_PATH, REDIS_ADDR, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
				return nil
			}
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	root.PersistentFlags().StringVar(&flags.configFile, "config", config.ConfigFileFromEnv(), "Path to a YAML config file")

	root.AddCommand(
		newServeCmd(flags),
		newDiagnoseCmd(flags),
		newMCPCmd(flags),
		newMigrateCmd(flags),
		newTokenCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}
