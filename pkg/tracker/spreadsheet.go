package tracker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoSpreadsheets is returned when provenance requires external exports
	// and none were found
	ErrNoSpreadsheets = errors.New("no survey exports found")
	// ErrWrongSessionExport is returned when an export for another session is
	// found in this session's folder
	ErrWrongSessionExport = errors.New("survey export found in the wrong session folder")
	// ErrDuplicateColumns is returned when one spreadsheet declares the same
	// column twice
	ErrDuplicateColumns = errors.New("duplicate columns in spreadsheet")
	// ErrRelocatedColumn is returned when a mapped column is missing from its
	// designated spreadsheet but present in another
	ErrRelocatedColumn = errors.New("relocated column")
	// ErrDuplicateAcrossFiles is returned when a mapped column appears in
	// more than one spreadsheet without being allow-listed
	ErrDuplicateAcrossFiles = errors.New("duplicate columns across spreadsheets")
	// ErrVariantOverlap is returned when the in-person and remote-only
	// variants of a spreadsheet share subjects
	ErrVariantOverlap = errors.New("in-person and remote-only variants share subjects")
	// ErrMissingIDColumn is returned when a spreadsheet lacks its declared
	// subject-id column
	ErrMissingIDColumn = errors.New("spreadsheet missing its id column")
)

// remoteSuffix marks the remote-only variant of a split spreadsheet stem.
const remoteSuffix = "remoteonly"

var exportRe = regexp.MustCompile(`^(.+)_DATA_(\d{4}-\d{2}-\d{2}_\d{4})\.csv$`)

const exportStampLayout = "2006-01-02_1504"

// Spreadsheet is one resolved external export (in-person and remote-only
// variants already unioned).
type Spreadsheet struct {
	Stem    string
	Paths   []string
	columns map[string]bool
	rows    map[string]map[string]string // subject id → column → value
}

// HasColumn reports whether the export carries a column.
func (s *Spreadsheet) HasColumn(col string) bool { return s.columns[col] }

// Subjects returns the subject ids present in the export.
func (s *Spreadsheet) Subjects() []string {
	out := make([]string, 0, len(s.rows))
	for id := range s.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Value returns one cell by subject and column.
func (s *Spreadsheet) Value(subject, col string) (string, bool) {
	row, ok := s.rows[subject]
	if !ok {
		return "", false
	}
	return row[col], true
}

// findExports indexes every export in dir by stem, resolved to the newest
// file by the timestamp embedded in its name. An export whose stem names a
// different session than sessionRun is fatal.
func findExports(dir, sessionRun string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	sessRe := regexp.MustCompile(`s\d+_r\d+`)
	newest := make(map[string]string)
	newestAt := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := exportRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		stem := m[1]

		if sess := sessRe.FindString(stem); sess != "" && sess != sessionRun {
			return nil, fmt.Errorf("%w: %s declares %s, folder is %s", ErrWrongSessionExport, entry.Name(), sess, sessionRun)
		}

		at, err := time.Parse(exportStampLayout, m[2])
		if err != nil {
			continue
		}
		if at.After(newestAt[stem]) {
			newestAt[stem] = at
			newest[stem] = filepath.Join(dir, entry.Name())
		}
	}

	return newest, nil
}

// loadSpreadsheet loads a stem, unioning the remote-only variant if present.
// The variants' subject sets must be disjoint.
func loadSpreadsheet(exports map[string]string, stem, idColumn string) (*Spreadsheet, error) {
	path, ok := exports[stem]
	if !ok {
		return nil, nil
	}

	sheet := &Spreadsheet{
		Stem:    stem,
		columns: make(map[string]bool),
		rows:    make(map[string]map[string]string),
	}
	if err := sheet.merge(path, idColumn, false); err != nil {
		return nil, err
	}

	if remotePath, ok := exports[stem+remoteSuffix]; ok {
		if err := sheet.merge(remotePath, idColumn, true); err != nil {
			return nil, err
		}
	}

	return sheet, nil
}

func (s *Spreadsheet) merge(path, idColumn string, mustBeDisjoint bool) error {
	f, err := os.Open(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		if seen[col] {
			return fmt.Errorf("%w %s: column %q", ErrDuplicateColumns, filepath.Base(path), col)
		}
		seen[col] = true
		s.columns[col] = true
	}

	idIdx := -1
	for i, col := range header {
		if col == idColumn {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return fmt.Errorf("%w: %s needs column %q", ErrMissingIDColumn, filepath.Base(path), idColumn)
	}

	for _, rec := range rows[1:] {
		if idIdx >= len(rec) || strings.TrimSpace(rec[idIdx]) == "" {
			continue
		}
		subject := strings.TrimSpace(rec[idIdx])
		if mustBeDisjoint {
			if _, clash := s.rows[subject]; clash {
				return fmt.Errorf("%w: stem %s subject %s", ErrVariantOverlap, s.Stem, subject)
			}
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		s.rows[subject] = row
	}

	s.Paths = append(s.Paths, path)
	return nil
}
