package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/monitor"
	"github.com/openlabtools/datamon/pkg/observability"
	"github.com/openlabtools/datamon/pkg/tracker"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	trackerDataset    string
	trackerSession    string
	trackerRun        string
	trackerExportDir  string
	trackerAllowedDup []string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Reconcile accepted data and survey exports into the central tracker",
	Long: `Updates the central tracker for one (session, run) pair: accepted and
failing identifiers become 1/0 cells, mapped survey exports fill their
columns, and derived columns are recomputed last.`,
	RunE: runTracker,
}

func init() {
	rootCmd.AddCommand(trackerCmd)
	trackerCmd.Flags().StringVar(&trackerDataset, "dataset", "", "dataset root directory")
	trackerCmd.Flags().StringVar(&trackerSession, "session", "s1", "session segment, e.g. s1")
	trackerCmd.Flags().StringVar(&trackerRun, "run", "r1", "run segment, e.g. r1")
	trackerCmd.Flags().StringVar(&trackerExportDir, "redcap", "", "survey export directory (default sourcedata/raw/{session_run}/redcap)")
	trackerCmd.Flags().StringSliceVar(&trackerAllowedDup, "allow-duplicate", nil, "spreadsheet columns allowed in more than one export")
}

func runTracker(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	run, err := newRun(trackerDataset)
	if err != nil {
		return err
	}

	started := time.Now()
	app, err := monitor.NewApplication(logger, run, fsops.New())
	if err != nil {
		return err
	}

	params := tracker.Params{
		Session:                 trackerSession,
		RunSegment:              trackerRun,
		ExportDir:               trackerExportDir,
		AllowedDuplicateColumns: trackerAllowedDup,
	}

	params.Passed, params.Failed, err = outcomeIdentifiers(app.Store(), params.SessionRun())
	if err != nil {
		return err
	}

	engine := tracker.New(logger, app.Dictionary(), run)
	if err := engine.Reconcile(params); err != nil {
		return err
	}

	observability.RunDuration.WithLabelValues("tracker").Observe(time.Since(started).Seconds())
	logger.WithFields(logrus.Fields{
		"run":     run.ID,
		"session": params.SessionRun(),
	}).Info("Tracker reconciliation complete")
	return nil
}

// outcomeIdentifiers derives the passed and failed lists for one session_run
// pair. Accepted identifiers come from the file record; every non-pass row of
// the newest pending-files ledger counts as failed, including no-data
// outcomes, so covered absences still write a 0 cell. Rows whose identifier
// column is a path, like directory summaries, do not parse and are skipped.
func outcomeIdentifiers(store *ledger.Store, sessionRun string) (passed, failed []identifier.Identifier, err error) {
	accepted, err := store.ReadFileRecord()
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range accepted {
		id, err := identifier.Parse(rec.Identifier)
		if err != nil || id.SessionRun() != sessionRun {
			continue
		}
		passed = append(passed, id)
	}

	pending, err := store.ReadLatestPendingFiles()
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range pending {
		if rec.PassRaw {
			continue
		}
		id, err := identifier.Parse(rec.Identifier)
		if err != nil || id.SessionRun() != sessionRun {
			continue
		}
		failed = append(failed, id)
	}

	return passed, failed, nil
}
