// Package tracker merges the file record, the latest external survey exports
// and per-variable provenance rules into one wide table, one row per subject.
package tracker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Table is the central tracker: one row per subject, one column per
// variable_session_run_event. Cells are "1", "0" or "" (blank).
type Table struct {
	columns []string
	colSet  map[string]bool
	cells   map[string]map[string]string // subject → column → value
}

// NewTable creates an empty tracker table.
func NewTable() *Table {
	return &Table{
		colSet: make(map[string]bool),
		cells:  make(map[string]map[string]string),
	}
}

// LoadTable reads an existing tracker CSV. A missing file is an empty table,
// so the first run of a (session, run) pair starts fresh.
func LoadTable(path string) (*Table, error) {
	t := NewTable()

	f, err := os.Open(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker %s: %w", path, err)
	}
	if len(rows) == 0 {
		return t, nil
	}

	header := rows[0]
	for _, col := range header[1:] {
		t.ensureColumn(col)
	}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		subject := row[0]
		t.ensureSubject(subject)
		for i, col := range header[1:] {
			if i+1 < len(row) {
				t.cells[subject][col] = row[i+1]
			}
		}
	}

	return t, nil
}

func (t *Table) ensureColumn(col string) {
	if !t.colSet[col] {
		t.colSet[col] = true
		t.columns = append(t.columns, col)
	}
}

func (t *Table) ensureSubject(subject string) {
	if t.cells[subject] == nil {
		t.cells[subject] = make(map[string]string)
	}
}

// HasColumn reports whether the column already exists.
func (t *Table) HasColumn(col string) bool { return t.colSet[col] }

// HasSubject reports whether the subject already has a row.
func (t *Table) HasSubject(subject string) bool { return t.cells[subject] != nil }

// Set writes one cell, creating column and row as needed.
func (t *Table) Set(subject, col, value string) {
	t.ensureColumn(col)
	t.ensureSubject(subject)
	t.cells[subject][col] = value
}

// Get reads one cell.
func (t *Table) Get(subject, col string) string {
	if t.cells[subject] == nil {
		return ""
	}
	return t.cells[subject][col]
}

// Subjects returns all subject ids, numerically sorted where possible.
func (t *Table) Subjects() []string {
	out := make([]string, 0, len(t.cells))
	for s := range t.cells {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i])
		b, errB := strconv.Atoi(out[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// Columns returns the column order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Write persists the table. When viewable is true, uniformly blank columns
// are dropped and missing values are rendered as "NA".
func (t *Table) Write(path string, viewable bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	columns := t.columns
	if viewable {
		columns = nil
		for _, col := range t.columns {
			blank := true
			for subject := range t.cells {
				if t.cells[subject][col] != "" {
					blank = false
					break
				}
			}
			if !blank {
				columns = append(columns, col)
			}
		}
	}

	f, err := os.Create(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"id"}, columns...)); err != nil {
		return err
	}
	for _, subject := range t.Subjects() {
		row := make([]string, 0, len(columns)+1)
		row = append(row, subject)
		for _, col := range columns {
			v := t.cells[subject][col]
			if viewable && v == "" {
				v = "NA"
			}
			row = append(row, v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
