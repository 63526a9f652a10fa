package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSetGet(t *testing.T) {
	table := NewTable()

	table.Set("1", "consent_visit_data_s1_r1_e1", "1")
	table.Set("2", "consent_visit_data_s1_r1_e1", "0")

	assert.Equal(t, "1", table.Get("1", "consent_visit_data_s1_r1_e1"))
	assert.Equal(t, "0", table.Get("2", "consent_visit_data_s1_r1_e1"))
	assert.Equal(t, "", table.Get("3", "consent_visit_data_s1_r1_e1"))
	assert.Equal(t, "", table.Get("1", "unknown_column"))

	assert.True(t, table.HasColumn("consent_visit_data_s1_r1_e1"))
	assert.False(t, table.HasColumn("unknown_column"))
	assert.True(t, table.HasSubject("1"))
	assert.False(t, table.HasSubject("3"))
}

func TestTableSubjectsNumericSort(t *testing.T) {
	table := NewTable()
	for _, s := range []string{"10", "2", "100", "1"} {
		table.Set(s, "col", "1")
	}
	assert.Equal(t, []string{"1", "2", "10", "100"}, table.Subjects())
}

func TestTableWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "central-tracker_study.csv")

	table := NewTable()
	table.Set("1", "consent_visit_data_s1_r1_e1", "1")
	table.Set("1", "notes_visit_data_s1_r1_e1", "0")
	table.Set("2", "consent_visit_data_s1_r1_e1", "0")
	require.NoError(t, table.Write(path, false))

	loaded, err := LoadTable(path)
	require.NoError(t, err)

	assert.Equal(t, table.Columns(), loaded.Columns())
	assert.Equal(t, table.Subjects(), loaded.Subjects())
	assert.Equal(t, "1", loaded.Get("1", "consent_visit_data_s1_r1_e1"))
	assert.Equal(t, "0", loaded.Get("2", "consent_visit_data_s1_r1_e1"))
	// Cells never written load back blank.
	assert.Equal(t, "", loaded.Get("2", "notes_visit_data_s1_r1_e1"))
}

func TestLoadTableMissingFile(t *testing.T) {
	table, err := LoadTable(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Empty(t, table.Subjects())
	assert.Empty(t, table.Columns())
}

func TestTableWriteViewable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "central-tracker_study_viewable.csv")

	table := NewTable()
	table.ensureColumn("allblank_s1_r1_e1")
	table.Set("1", "consent_visit_data_s1_r1_e1", "1")
	table.Set("2", "notes_visit_data_s1_r1_e1", "0")
	require.NoError(t, table.Write(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	// Uniformly blank columns are dropped; missing cells render as NA.
	assert.NotContains(t, text, "allblank_s1_r1_e1")
	assert.Contains(t, text, "id,consent_visit_data_s1_r1_e1,notes_visit_data_s1_r1_e1\n")
	assert.Contains(t, text, "1,1,NA\n")
	assert.Contains(t, text, "2,NA,0\n")
}
