package monitor

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/ledger"
)

func dictRows() [][]string {
	return [][]string{
		{"variable", "dataType", "encrypted", "allowedSuffix", "expectedFileExt", "allowedValues", "provenance"},
		{"id", "id", "false", "", "", "1-300", ""},
		{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
	}
}

func writeCSVFile(t *testing.T, path string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, f.Close())
}

func newTestRun(t *testing.T) *dataset.Run {
	t.Helper()
	root := t.TempDir()
	run := &dataset.Run{
		ID:        "test-run",
		User:      "tester",
		Timestamp: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Config:    &dataset.Config{Logging: "info", DatasetName: "study"},
		Paths:     dataset.Paths{Root: root},
	}
	writeCSVFile(t, run.Paths.DictionaryFile(), dictRows())
	return run
}

func addFile(t *testing.T, root string, segments []string, name, content string) {
	t.Helper()
	dir := filepath.Join(append([]string{root}, segments...)...)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCheck(t *testing.T) {
	run := newTestRun(t)
	addFile(t, run.Paths.Root, []string{"sourcedata", "raw", "s1_r1", "visit_data", "sub-1"},
		"sub-1_consent_visit_data_s1_r1_e1.csv", "signed")

	app, err := NewApplication(logrus.New(), run, fsops.New())
	require.NoError(t, err)
	require.NoError(t, app.Check(CheckOptions{}))

	// The full outcome ledger carries the pass row.
	pending, err := app.Store().ReadLatestPendingFiles()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].PassRaw)
	assert.Equal(t, "sub-1_consent_visit_data_s1_r1_e1", pending[0].Identifier)

	// The pass was staged for QA review.
	checklist, err := app.Store().ReadChecklist()
	require.NoError(t, err)
	require.Len(t, checklist, 1)
	_, err = os.Stat(filepath.Join(run.Paths.PendingQA(), "s1_r1", "visit_data", "sub-1",
		"sub-1_consent_visit_data_s1_r1_e1.csv"))
	require.NoError(t, err)

	// Dictionary snapshot and run report were written.
	_, err = os.Stat(run.Paths.DictionarySnapshot())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(run.Paths.Logs(), "report-2026-01-01_10-00.txt"))
	require.NoError(t, err)
}

func TestCheckSkipsQAWhenAsked(t *testing.T) {
	run := newTestRun(t)
	addFile(t, run.Paths.Root, []string{"sourcedata", "raw", "s1_r1", "visit_data", "sub-1"},
		"sub-1_consent_visit_data_s1_r1_e1.csv", "signed")

	app, err := NewApplication(logrus.New(), run, fsops.New())
	require.NoError(t, err)
	require.NoError(t, app.Check(CheckOptions{SkipQA: true}))

	checklist, err := app.Store().ReadChecklist()
	require.NoError(t, err)
	assert.Empty(t, checklist)
}

func TestCheckPrunesFailingAcceptedData(t *testing.T) {
	run := newTestRun(t)

	// An accepted identifier whose checked file has since become empty.
	addFile(t, run.Paths.Root, []string{"sourcedata", "checked", "sub-1", "s1_r1", "visit_data"},
		"sub-1_consent_visit_data_s1_r1_e1.csv", "")

	store := ledger.NewStore(logrus.New(), run.Paths.Pending(), run.Paths.FileRecord(), run.Paths.QAChecklist())
	require.NoError(t, store.WriteFileRecord([]ledger.Record{{
		DateTime:   "2025-12-01 09:00:00",
		User:       "tester",
		Identifier: "sub-1_consent_visit_data_s1_r1_e1",
		Subject:    "sub-1",
		DataType:   "visit_data",
		Suffix:     "s1_r1_e1",
	}}))

	app, err := NewApplication(logrus.New(), run, fsops.New())
	require.NoError(t, err)
	require.NoError(t, app.Check(CheckOptions{}))

	// Pruned from the file record and deleted from the checked tree.
	fileRecord, err := app.Store().ReadFileRecord()
	require.NoError(t, err)
	assert.Empty(t, fileRecord)

	_, err = os.Stat(filepath.Join(run.Paths.Checked(), "sub-1", "s1_r1", "visit_data",
		"sub-1_consent_visit_data_s1_r1_e1.csv"))
	assert.True(t, os.IsNotExist(err))

	// The failure is on the accumulated errors ledger.
	_, err = os.Stat(app.Store().PendingErrorsPath(run.FileStamp()))
	require.NoError(t, err)
}

func TestNewApplicationRejectsDictionaryDrift(t *testing.T) {
	run := newTestRun(t)

	// Snapshot from a previous run differs from the current dictionary.
	data, err := os.ReadFile(run.Paths.DictionaryFile())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(run.Paths.DictionarySnapshot(), append(data, '\n'), 0o644))

	_, err = NewApplication(logrus.New(), run, fsops.New())
	assert.ErrorIs(t, err, dictionary.ErrChanged)
}
