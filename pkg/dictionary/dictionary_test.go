package dictionary

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDict(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datadict.csv")

	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	header := []string{"variable", "dataType", "encrypted", "allowedSuffix", "expectedFileExt", "allowedValues", "provenance"}
	require.NoError(t, w.Write(header))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, f.Close())

	return path
}

func fixtureRows() [][]string {
	return [][]string{
		{"id", "id", "false", "", "", "1-300,9000-9999", ""},
		{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
		{"consentalt_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
		{"notes_visit_data", "visit_data", "true", "s1_r1_e1,s2_r1_e1", ".txt", "", ""},
		{"consentall", "combination", "false", "s1_r1_e1", "", "", `variables: "consent_visit_data", "consentalt_visit_data"`},
		{"mood_redcap_data", "redcap_data", "false", "s1_r1_e1", "", "", `file: "mysurvey" variable: "mood_complete" id: "record_id"`},
	}
}

func loadFixture(t *testing.T) *Repository {
	t.Helper()
	repo, err := Load(writeDict(t, fixtureRows()))
	require.NoError(t, err)
	return repo
}

func TestLoad(t *testing.T) {
	repo := loadFixture(t)

	vars := repo.Variables()
	require.Len(t, vars, 6)
	assert.Equal(t, "id", vars[0].Variable)
	assert.Equal(t, "consent_visit_data", vars[1].Variable)

	dataType, ok := repo.DataType("notes_visit_data")
	require.True(t, ok)
	assert.Equal(t, TypeVisitData, dataType)

	assert.True(t, repo.Encrypted("notes_visit_data"))
	assert.False(t, repo.Encrypted("consent_visit_data"))

	row, ok := repo.Row("notes_visit_data")
	require.True(t, ok)
	assert.Equal(t, []string{"s1_r1_e1", "s2_r1_e1"}, row.AllowedSuffixes)
	assert.Equal(t, []string{".txt"}, row.ExpectedFileExts)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		wantErr error
	}{
		{
			name: "duplicate variable",
			rows: [][]string{
				{"id", "id", "false", "", "", "1-300", ""},
				{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
				{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
			},
			wantErr: ErrDuplicateVariable,
		},
		{
			name: "no id row",
			rows: [][]string{
				{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", ""},
			},
			wantErr: ErrNoIDRow,
		},
		{
			name: "bad subject range",
			rows: [][]string{
				{"id", "id", "false", "", "", "one-300", ""},
			},
			wantErr: ErrInvalidRange,
		},
		{
			name: "bad provenance",
			rows: [][]string{
				{"id", "id", "false", "", "", "1-300", ""},
				{"consent_visit_data", "visit_data", "false", "s1_r1_e1", ".csv", "", "sourced from somewhere"},
			},
			wantErr: ErrInvalidProvenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDict(t, tt.rows))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datadict.csv")
	require.NoError(t, os.WriteFile(path, []byte("variable,dataType\nid,id\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestSubjectAllowed(t *testing.T) {
	repo := loadFixture(t)

	tests := []struct {
		subject int
		want    bool
	}{
		{1, true},
		{300, true},
		{301, false},
		{8999, false},
		{9000, true},
		{9999, true},
		{0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, repo.SubjectAllowed(tt.subject), "subject %d", tt.subject)
	}
}

func TestCombinationRows(t *testing.T) {
	repo := loadFixture(t)

	combos := repo.CombinationRows()
	require.Len(t, combos, 1)
	assert.Equal(t, "consentall", combos[0].Name)
	assert.Equal(t, []string{"consent_visit_data", "consentalt_visit_data"}, combos[0].Variables)

	name, ok := repo.CombinationFor("consent_visit_data")
	require.True(t, ok)
	assert.Equal(t, "consentall", name)

	_, ok = repo.CombinationFor("notes_visit_data")
	assert.False(t, ok)
}

func TestVisitVariablesExcludeCombinationChildren(t *testing.T) {
	repo := loadFixture(t)

	var names []string
	for _, row := range repo.VisitVariables() {
		names = append(names, row.Variable)
	}
	assert.Equal(t, []string{"notes_visit_data"}, names)
}

func TestCheckDrift(t *testing.T) {
	path := writeDict(t, fixtureRows())
	repo, err := Load(path)
	require.NoError(t, err)

	snapshot := filepath.Join(t.TempDir(), "datadict-latest.csv")

	// Missing snapshot is not drift.
	require.NoError(t, repo.CheckDrift(snapshot))

	// Identical snapshot is not drift.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snapshot, data, 0o644))
	require.NoError(t, repo.CheckDrift(snapshot))

	// Any difference is drift.
	require.NoError(t, os.WriteFile(snapshot, append(data, '\n'), 0o644))
	assert.ErrorIs(t, repo.CheckDrift(snapshot), ErrChanged)
}
