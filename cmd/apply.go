package cmd

import (
	"errors"
	"fmt"
	"time"

	"pluginrunner/internal/formatting"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// errApplyFailed is returned when Apply could not honor every intent. The
// report has already been printed.
var errApplyFailed = errors.New("apply did not reach every intent")

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Start and stop plugins to match the intents",
		Long: `Runs one Apply: stops what must stop, then starts every component demanded
by a start intent together with the providers it needs, running the start
and stop hooks of their manifests.

The command exits with status 1 when a start intent could not be honored.`,
		Args: cobra.NoArgs,
		RunE: runApply,
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if outputFormat == string(formatting.FormatTable) && !debug && isTerminal(cmd.ErrOrStderr()) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = cmd.ErrOrStderr()
		s.Suffix = " Applying intents..."
		s.Start()
	}

	report := env.orchestrator.ApplyWithReport(cmd.Context())

	if s != nil {
		if report.Success {
			s.FinalMSG = text.FgGreen.Sprint("✓") + " Applied\n"
		} else {
			s.FinalMSG = text.FgRed.Sprint("✗") + " Apply incomplete\n"
		}
		s.Stop()
	}

	if err := f.FormatReport(formatting.NewReportView(report)); err != nil {
		return err
	}
	if !report.Success {
		return fmt.Errorf("%w: %d failures", errApplyFailed, len(report.Failures))
	}
	return nil
}
