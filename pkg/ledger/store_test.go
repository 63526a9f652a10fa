package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	return NewStore(logrus.New(),
		filepath.Join(root, "pending"),
		filepath.Join(root, "validated-file-record.csv"),
		filepath.Join(root, "qa-checklist.csv"))
}

func testRecord(identifier string) Record {
	return Record{
		DateTime:   "2026-01-01 10:00:00",
		User:       "tester",
		Identifier: identifier,
		Subject:    "sub-1",
		DataType:   "visit_data",
		Suffix:     "s1_r1_e1",
	}
}

func TestFileRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)

	records := []Record{
		testRecord("sub-1_notes_s1_r1_e1"),
		testRecord("sub-1_consent_s1_r1_e1"),
	}
	require.NoError(t, store.WriteFileRecord(records))

	got, err := store.ReadFileRecord()
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Rows come back sorted by identifier.
	assert.Equal(t, "sub-1_consent_s1_r1_e1", got[0].Identifier)
	assert.Equal(t, "sub-1_notes_s1_r1_e1", got[1].Identifier)
	assert.Equal(t, "tester", got[0].User)
	assert.Equal(t, "visit_data", got[0].DataType)
}

func TestReadFileRecordMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.ReadFileRecord()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteFileRecordReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.WriteFileRecord([]Record{testRecord("sub-1_consent_s1_r1_e1")}))
	require.NoError(t, store.WriteFileRecord([]Record{testRecord("sub-2_consent_s1_r1_e1")}))

	got, err := store.ReadFileRecord()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub-2_consent_s1_r1_e1", got[0].Identifier)
}

func TestWritePendingErrorsIsAdditive(t *testing.T) {
	store := newTestStore(t)
	stamp := "2026-01-01_10-00"

	first := testRecord("sub-2_consent_s1_r1_e1")
	first.ErrorType = ErrorEmptyFile
	first.ErrorDetails = "file is empty"
	require.NoError(t, store.WritePendingErrors(stamp, []Record{first}))

	second := testRecord("sub-1_consent_s1_r1_e1")
	second.ErrorType = ErrorMissingFile
	second.ErrorDetails = "expected file not found"
	require.NoError(t, store.WritePendingErrors(stamp, []Record{second}))

	rows, err := readCSV(store.PendingErrorsPath(stamp))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Union of both writes, sorted by identifier.
	assert.Equal(t, "sub-1_consent_s1_r1_e1", rows[0]["identifier"])
	assert.Equal(t, ErrorMissingFile, rows[0]["errorType"])
	assert.Equal(t, "sub-2_consent_s1_r1_e1", rows[1]["identifier"])
	assert.Equal(t, ErrorEmptyFile, rows[1]["errorType"])
}

func TestWritePendingFiles(t *testing.T) {
	store := newTestStore(t)
	stamp := "2026-01-01_10-00"

	pass := testRecord("sub-1_consent_s1_r1_e1")
	pass.PassRaw = true
	require.NoError(t, store.WritePendingFiles(stamp, []Record{pass}))

	rows, err := readCSV(store.PendingFilesPath(stamp))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "true", rows[0]["passRaw"])
	assert.Equal(t, "", rows[0]["errorType"])
}

func TestReadLatestPendingFiles(t *testing.T) {
	store := newTestStore(t)

	old := testRecord("sub-1_consent_s1_r1_e1")
	old.PassRaw = true
	require.NoError(t, store.WritePendingFiles("2026-01-01_10-00", []Record{old}))

	recent := testRecord("sub-2_consent_s1_r1_e1")
	recent.PassRaw = true
	require.NoError(t, store.WritePendingFiles("2026-01-02_09-30", []Record{recent}))

	got, err := store.ReadLatestPendingFiles()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub-2_consent_s1_r1_e1", got[0].Identifier)
}

func TestReadLatestPendingFilesNone(t *testing.T) {
	store := newTestStore(t)

	got, err := store.ReadLatestPendingFiles()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChecklistRoundTrip(t *testing.T) {
	store := newTestStore(t)

	rows := []ChecklistRow{
		{
			DateTime:        "2026-01-01 10:00:00",
			User:            "tester",
			Identifier:      "sub-1_consent_s1_r1_e1",
			DeviationString: "retake",
			Subject:         "sub-1",
			DataType:        "visit_data",
			Suffix:          "s1_r1_e1",
			QA:              true,
			LocalMove:       false,
		},
	}
	require.NoError(t, store.WriteChecklist(rows))

	got, err := store.ReadChecklist()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rows[0], got[0])
}

func TestWriteCreatesParentDirs(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.WritePendingFiles("2026-01-01_10-00", nil))

	_, err := os.Stat(store.PendingFilesPath("2026-01-01_10-00"))
	require.NoError(t, err)
}
