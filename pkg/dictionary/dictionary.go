// Package dictionary loads the data dictionary: the read-only reference table
// with one row per variable that drives validation and tracker provenance.
package dictionary

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when the dictionary file lacks a required column
	ErrMissingColumn = errors.New("data dictionary missing required column")
	// ErrDuplicateVariable is returned when two rows declare the same variable
	ErrDuplicateVariable = errors.New("duplicate variable in data dictionary")
	// ErrNoIDRow is returned when the dictionary has no "id" row to derive subject ranges from
	ErrNoIDRow = errors.New("data dictionary has no id row")
	// ErrInvalidRange is returned when an allowed-values range cannot be parsed
	ErrInvalidRange = errors.New("invalid allowed-values range")
	// ErrChanged is returned when the dictionary differs from the recorded snapshot
	ErrChanged = errors.New("data dictionary changed since last accepted run")
)

// Well-known data types.
const (
	TypeVisitData   = "visit_data"
	TypeCombination = "combination"
	TypeEEG         = "eeg"
	TypePsychopy    = "psychopy"
	TypeRedcap      = "redcap_data"
	TypeStatus      = "visit_status"
)

var requiredColumns = []string{"variable", "dataType", "encrypted", "allowedSuffix", "expectedFileExt", "allowedValues", "provenance"}

// Row is one data dictionary entry.
type Row struct {
	Variable         string
	DataType         string
	Encrypted        bool
	AllowedSuffixes  []string
	ExpectedFileExts []string
	AllowedValues    string
	Provenance       Provenance
}

// Repository is the explicit read-only lookup constructed once per invocation
// and passed to every component that needs it.
type Repository struct {
	rows          map[string]Row
	order         []string
	subjectRanges [][2]int
	fingerprint   string
}

// Load reads the dictionary CSV at path.
func Load(path string) (*Repository, error) {
	f, err := os.Open(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		return nil, fmt.Errorf("failed to open data dictionary: %w", err)
	}
	defer f.Close() //nolint:errcheck

	hash := sha256.New()
	r := csv.NewReader(io.TeeReader(f, hash))
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read data dictionary: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}

	col := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		col[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	repo := &Repository{
		rows:        make(map[string]Row, len(all)-1),
		fingerprint: hex.EncodeToString(hash.Sum(nil)),
	}
	for _, rec := range all[1:] {
		row := Row{
			Variable:         rec[col["variable"]],
			DataType:         rec[col["dataType"]],
			Encrypted:        parseBool(rec[col["encrypted"]]),
			AllowedSuffixes:  splitList(rec[col["allowedSuffix"]]),
			ExpectedFileExts: splitList(rec[col["expectedFileExt"]]),
			AllowedValues:    rec[col["allowedValues"]],
		}
		row.Provenance, err = ParseProvenance(rec[col["provenance"]])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", row.Variable, err)
		}

		if _, dup := repo.rows[row.Variable]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVariable, row.Variable)
		}
		repo.rows[row.Variable] = row
		repo.order = append(repo.order, row.Variable)
	}

	idRow, ok := repo.rows["id"]
	if !ok {
		return nil, ErrNoIDRow
	}
	repo.subjectRanges, err = parseRanges(idRow.AllowedValues)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Row returns the dictionary entry for a variable.
func (r *Repository) Row(variable string) (Row, bool) {
	row, ok := r.rows[variable]
	return row, ok
}

// Variables returns all rows in file order.
func (r *Repository) Variables() []Row {
	out := make([]Row, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.rows[v])
	}
	return out
}

// DataType resolves a variable to its data type.
func (r *Repository) DataType(variable string) (string, bool) {
	row, ok := r.rows[variable]
	if !ok {
		return "", false
	}
	return row.DataType, true
}

// Encrypted reports whether a variable's data is encrypted at rest.
func (r *Repository) Encrypted(variable string) bool {
	return r.rows[variable].Encrypted
}

// CombinationFor returns the combination row name a variable belongs to.
func (r *Repository) CombinationFor(variable string) (string, bool) {
	for _, v := range r.order {
		row := r.rows[v]
		if row.DataType != TypeCombination {
			continue
		}
		for _, child := range row.Provenance.Variables {
			if child == variable {
				return row.Variable, true
			}
		}
	}
	return "", false
}

// SubjectAllowed reports whether a subject number falls in the dictionary's
// allowed ranges (taken from the id row's allowedValues).
func (r *Repository) SubjectAllowed(n int) bool {
	for _, rng := range r.subjectRanges {
		if n >= rng[0] && n <= rng[1] {
			return true
		}
	}
	return false
}

// Fingerprint is the sha256 of the dictionary file, used for drift detection.
func (r *Repository) Fingerprint() string {
	return r.fingerprint
}

// CheckDrift compares the loaded dictionary against the snapshot recorded at
// snapshotPath. A missing snapshot is not drift; it is written by the caller
// after a successful run.
func (r *Repository) CheckDrift(snapshotPath string) error {
	data, err := os.ReadFile(snapshotPath) //nolint:gosec // Dataset-derived path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != r.fingerprint {
		return ErrChanged
	}
	return nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRanges parses "1-300,9000-9999" style allowed-values ranges.
func parseRanges(s string) ([][2]int, error) {
	var out [][2]int
	for _, part := range splitList(s) {
		lo, hi, found := strings.Cut(part, "-")
		if !found {
			hi = lo
		}
		loN, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, part)
		}
		hiN, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, part)
		}
		out = append(out, [2]int{loN, hiN})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRange)
	}
	return out, nil
}
