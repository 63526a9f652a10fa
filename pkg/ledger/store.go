package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// Store reads and writes the four ledgers for one dataset.
type Store struct {
	log logrus.FieldLogger

	pendingDir     string // data-monitoring/pending
	fileRecordPath string // data-monitoring/validated-file-record.csv
	checklistPath  string // sourcedata/pending-qa/qa-checklist.csv
}

// NewStore creates a ledger store rooted at the given paths.
func NewStore(log logrus.FieldLogger, pendingDir, fileRecordPath, checklistPath string) *Store {
	return &Store{
		log:            log.WithField("service", "ledger"),
		pendingDir:     pendingDir,
		fileRecordPath: fileRecordPath,
		checklistPath:  checklistPath,
	}
}

// PendingFilesPath returns the pending-files path for a run stamp.
func (s *Store) PendingFilesPath(stamp string) string {
	return filepath.Join(s.pendingDir, fmt.Sprintf("pending-files-%s.csv", stamp))
}

// PendingErrorsPath returns the pending-errors path for a run stamp.
func (s *Store) PendingErrorsPath(stamp string) string {
	return filepath.Join(s.pendingDir, fmt.Sprintf("pending-errors-%s.csv", stamp))
}

// WritePendingFiles writes the full outcome set of one raw-validation run.
func (s *Store) WritePendingFiles(stamp string, records []Record) error {
	rows := recordRows(records)
	if err := Validate(rows, PendingFilesSchema); err != nil {
		return err
	}

	sortRows(rows)
	return writeCSV(s.PendingFilesPath(stamp), PendingFilesSchema, rows)
}

// WritePendingErrors unions the supplied error records with any rows already
// at the target path. Checked-mode and raw-mode validation both append to the
// same errors file within one run.
func (s *Store) WritePendingErrors(stamp string, records []Record) error {
	rows := recordRows(records)
	if err := Validate(rows, PendingErrorsSchema); err != nil {
		return err
	}

	path := s.PendingErrorsPath(stamp)
	existing, err := readCSV(path)
	if err != nil {
		return err
	}
	rows = append(existing, rows...)

	sortRows(rows)
	return writeCSV(path, PendingErrorsSchema, rows)
}

// ReadLatestPendingFiles loads the newest pending-files ledger. Run stamps
// sort lexicographically, so the last matching path is the newest. No prior
// run means an empty ledger.
func (s *Store) ReadLatestPendingFiles() ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(s.pendingDir, "pending-files-*.csv"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)

	rows, err := readCSV(matches[len(matches)-1])
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

// WriteFileRecord replaces the durable accepted-set ledger. Callers pass the
// complete desired table.
func (s *Store) WriteFileRecord(records []Record) error {
	rows := recordRows(records)
	if err := Validate(rows, FileRecordSchema); err != nil {
		return err
	}

	sortRows(rows)
	return writeCSV(s.fileRecordPath, FileRecordSchema, rows)
}

// ReadFileRecord loads the accepted set. A missing file is an empty ledger.
func (s *Store) ReadFileRecord() ([]Record, error) {
	rows, err := readCSV(s.fileRecordPath)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

// WriteChecklist replaces the QA checklist. Callers pass the complete desired
// table.
func (s *Store) WriteChecklist(rows []ChecklistRow) error {
	raw := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		raw = append(raw, r.toRow())
	}
	if err := Validate(raw, QAChecklistSchema); err != nil {
		return err
	}

	sortRows(raw)
	return writeCSV(s.checklistPath, QAChecklistSchema, raw)
}

// ReadChecklist loads the QA checklist. A missing file is an empty checklist.
func (s *Store) ReadChecklist() ([]ChecklistRow, error) {
	raw, err := readCSV(s.checklistPath)
	if err != nil {
		return nil, err
	}

	rows := make([]ChecklistRow, 0, len(raw))
	for _, row := range raw {
		rows = append(rows, checklistRowFromRow(row))
	}
	return rows, nil
}

func recordRows(records []Record) []map[string]string {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.toRow())
	}
	return rows
}

func sortRows(rows []map[string]string) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i]["identifier"] != rows[j]["identifier"] {
			return rows[i]["identifier"] < rows[j]["identifier"]
		}
		return rows[i]["datetime"] < rows[j]["datetime"]
	})
}

func writeCSV(path string, schema Schema, rows []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // Ledger paths are dataset-derived
	if err != nil {
		return fmt.Errorf("failed to create ledger %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(schema.Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(project(row, schema)); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // Ledger paths are dataset-derived
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	rows := make([]map[string]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
