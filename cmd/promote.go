package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/monitor"
	"github.com/openlabtools/datamon/pkg/observability"
	"github.com/openlabtools/datamon/pkg/report"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var promoteDataset string

//nolint:gochecknoglobals // Cobra commands are typically global
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote reviewer-approved identifiers into the checked tree",
	Long: `Moves every identifier whose QA checklist rows all carry reviewer sign-off
from the staging tree into checked/, records it in the file record and prunes
the emptied staging directories.`,
	RunE: runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCmd)
	promoteCmd.Flags().StringVar(&promoteDataset, "dataset", "", "dataset root directory")
}

func runPromote(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	run, err := newRun(promoteDataset)
	if err != nil {
		return err
	}

	started := time.Now()
	app, err := monitor.NewApplication(logger, run, fsops.New())
	if err != nil {
		return err
	}

	promoted, err := app.QA().Promote()
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	if err := renderer.Write(run, report.Summarize(run, nil, promoted)); err != nil {
		return err
	}

	observability.RunDuration.WithLabelValues("promote").Observe(time.Since(started).Seconds())
	logger.WithFields(logrus.Fields{
		"run":      run.ID,
		"promoted": len(promoted),
	}).Info("Promotion pass complete")
	return nil
}
