package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlabtools/datamon/pkg/identifier"
)

type rowSourceStub struct{}

func (rowSourceStub) DataType(variable string) (string, bool) {
	if variable == "consent" {
		return "visit_data", true
	}
	return "", false
}

func (rowSourceStub) Encrypted(variable string) bool {
	return variable == "notes"
}

func TestRecorderPass(t *testing.T) {
	rec := NewRecorder("2026-01-01 10:00:00", "tester", rowSourceStub{})
	id, err := identifier.Parse("sub-1_consent_s1_r1_e1")
	require.NoError(t, err)

	got := rec.Pass(id)
	assert.True(t, got.PassRaw)
	assert.Empty(t, got.ErrorType)
	assert.Empty(t, got.ErrorDetails)
	assert.Equal(t, "sub-1_consent_s1_r1_e1", got.Identifier)
	assert.Equal(t, "sub-1", got.Subject)
	assert.Equal(t, "visit_data", got.DataType)
	assert.Equal(t, "s1_r1_e1", got.Suffix)
	assert.Equal(t, "2026-01-01 10:00:00", got.DateTime)
	assert.Equal(t, "tester", got.User)
}

func TestRecorderError(t *testing.T) {
	rec := NewRecorder("2026-01-01 10:00:00", "tester", rowSourceStub{})
	id, err := identifier.Parse("sub-1_consent_s1_r1_e1")
	require.NoError(t, err)

	got := rec.Error(id, ErrorEmptyFile, "file is empty")
	assert.False(t, got.PassRaw)
	assert.Equal(t, ErrorEmptyFile, got.ErrorType)
	assert.Equal(t, "file is empty", got.ErrorDetails)
}

func TestRecorderNoData(t *testing.T) {
	rec := NewRecorder("2026-01-01 10:00:00", "tester", rowSourceStub{})
	id, err := identifier.Parse("sub-1_consent_s1_r1_e1")
	require.NoError(t, err)

	got := rec.NoData(id)
	assert.False(t, got.PassRaw)
	assert.Empty(t, got.ErrorType)
	assert.Contains(t, got.ErrorDetails, "marker present")
	assert.Equal(t, "sub-1_consent_s1_r1_e1", got.Identifier)
	assert.Equal(t, "visit_data", got.DataType)
}

func TestRecorderStructureError(t *testing.T) {
	rec := NewRecorder("2026-01-01 10:00:00", "tester", rowSourceStub{})

	got := rec.StructureError("sourcedata/raw/bogus", "segment \"bogus\" is not a session_run")
	assert.Equal(t, ErrorImproperStructure, got.ErrorType)
	assert.Equal(t, "sourcedata/raw/bogus", got.Identifier)
	assert.Empty(t, got.Subject)
}

func TestRecorderDirectoryError(t *testing.T) {
	rec := NewRecorder("2026-01-01 10:00:00", "tester", rowSourceStub{})

	got := rec.DirectoryError("s1_r1/visit_data/sub-4", ErrorMissingIdentifier, "expected directory missing")
	assert.Equal(t, ErrorMissingIdentifier, got.ErrorType)
	assert.Equal(t, "s1_r1/visit_data/sub-4", got.Identifier)
}
