package cmd

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
)

func TestOutcomeIdentifiers(t *testing.T) {
	dir := t.TempDir()
	store := ledger.NewStore(logrus.New(), filepath.Join(dir, "pending"),
		filepath.Join(dir, "file-record.csv"), filepath.Join(dir, "checklist.csv"))

	require.NoError(t, store.WriteFileRecord([]ledger.Record{
		{DateTime: "2026-01-01 10:00:00", User: "tester", Identifier: "sub-1_consent_visit_data_s1_r1_e1"},
		// Other session, excluded from this pass.
		{DateTime: "2026-01-01 10:00:00", User: "tester", Identifier: "sub-2_consent_visit_data_s2_r1_e1"},
	}))

	require.NoError(t, store.WritePendingFiles("2026-01-01_10-00", []ledger.Record{
		{Identifier: "sub-3_consent_visit_data_s1_r1_e1", PassRaw: true},
		{Identifier: "sub-4_consent_visit_data_s1_r1_e1", ErrorType: ledger.ErrorEmptyFile, ErrorDetails: "file is empty"},
		// An absent directory yields per-identifier rows plus a path summary
		// row; only the former can feed the tracker.
		{Identifier: "sub-5_consent_visit_data_s1_r1_e1", ErrorType: ledger.ErrorMissingIdentifier, ErrorDetails: "no data found"},
		{Identifier: "sourcedata/raw/s1_r1/visit_data/sub-5", ErrorType: ledger.ErrorMissingIdentifier, ErrorDetails: "expected directory missing"},
		// A no-data outcome carries neither passRaw nor an errorType and still
		// counts as failed.
		{Identifier: "sub-6_consent_visit_data_s1_r1_e1", ErrorDetails: "no data expected, marker present"},
	}))

	passed, failed, err := outcomeIdentifiers(store, "s1_r1")
	require.NoError(t, err)

	assert.Equal(t, []identifier.Identifier{mustParseID(t, "sub-1_consent_visit_data_s1_r1_e1")}, passed)
	assert.ElementsMatch(t, []identifier.Identifier{
		mustParseID(t, "sub-4_consent_visit_data_s1_r1_e1"),
		mustParseID(t, "sub-5_consent_visit_data_s1_r1_e1"),
		mustParseID(t, "sub-6_consent_visit_data_s1_r1_e1"),
	}, failed)
}

func mustParseID(t *testing.T, s string) identifier.Identifier {
	t.Helper()
	id, err := identifier.Parse(s)
	require.NoError(t, err)
	return id
}
