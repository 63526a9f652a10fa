package cmd

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/monitor"
	"github.com/openlabtools/datamon/pkg/observability"
)

// ErrDatasetRequired is returned when no dataset directory is given
var ErrDatasetRequired = errors.New("dataset directory is required")

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	checkDataset      string
	checkLegacy       bool
	checkIgnoreBefore string
	checkSkipQA       bool
	checkSkipChecked  bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate raw and checked data and write the pending ledgers",
	Long: `Validates the checked tree (pruning newly failing accepted data), then the
raw tree, writes the pending-files and pending-errors ledgers, and stages
passing identifiers for QA review.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkDataset, "dataset", "", "dataset root directory")
	checkCmd.Flags().BoolVar(&checkLegacy, "legacy-exceptions", false, "use bare deviation.txt/no-data.txt marker names")
	checkCmd.Flags().StringVar(&checkIgnoreBefore, "ignore-before", "", "grandfather files last modified before this date (YYYY-MM-DD)")
	checkCmd.Flags().BoolVar(&checkSkipQA, "no-qa", false, "skip QA staging")
	checkCmd.Flags().BoolVar(&checkSkipChecked, "no-checked", false, "skip checked-tree validation")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	run, err := newRun(checkDataset)
	if err != nil {
		return err
	}
	if checkLegacy {
		run.Config.LegacyExceptions = true
	}
	if checkIgnoreBefore != "" {
		run.Config.IgnoreBefore = checkIgnoreBefore
		if err := run.Config.Validate(); err != nil {
			return err
		}
	}

	started := time.Now()
	app, err := monitor.NewApplication(logger, run, fsops.New())
	if err != nil {
		return err
	}

	if err := app.Check(monitor.CheckOptions{
		SkipChecked: checkSkipChecked,
		SkipQA:      checkSkipQA,
	}); err != nil {
		return err
	}

	observability.RunDuration.WithLabelValues("check").Observe(time.Since(started).Seconds())
	logger.WithField("run", run.ID).Info("Check complete")
	return nil
}

// newRun loads the dataset config and builds the per-invocation context.
func newRun(root string) (*dataset.Run, error) {
	if root == "" {
		return nil, ErrDatasetRequired
	}

	config, err := dataset.LoadConfig(root)
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(config.Logging)
	if err == nil {
		logger.SetLevel(level)
	}
	if config.MetricsAddr != "" {
		observability.StartMetricsServer(config.MetricsAddr)
	}

	return dataset.NewRun(root, config), nil
}
