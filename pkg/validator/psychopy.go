package validator

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/scanner"
)

// subjectColumns are the embedded subject-identity column names checked in
// row-oriented psychopy output.
var subjectColumns = map[string]bool{"id": true, "participant": true}

// checkPsychopy verifies that embedded subject-identity columns in any
// accompanying row-oriented data file match the filename's subject number.
// Exactly one blank terminal row is tolerated.
func (v *Validator) checkPsychopy(s *listingState, p scanner.Present) {
	subject := strings.TrimPrefix(p.ID.Subject, "sub-")

	for _, f := range p.Files {
		if !strings.HasSuffix(f.Name, ".csv") {
			continue
		}

		mismatches, err := subjectMismatches(f.Path, subject)
		if err != nil {
			s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorPsychopy,
				fmt.Sprintf("cannot read %s: %v", f.Name, err)))
			continue
		}
		for _, m := range mismatches {
			s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorPsychopy,
				fmt.Sprintf("file %s: %s", f.Name, m)))
		}
	}
}

func subjectMismatches(path, subject string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var cols []int
	for i, name := range rows[0] {
		if subjectColumns[strings.ToLower(strings.TrimSpace(name))] {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return nil, nil
	}

	body := rows[1:]
	if n := len(body); n > 0 && isBlankRow(body[n-1]) {
		body = body[:n-1] // one blank terminal row is tolerated
	}

	var mismatches []string
	for rowIdx, row := range body {
		if isBlankRow(row) {
			mismatches = append(mismatches, fmt.Sprintf("row %d is blank", rowIdx+1))
			continue
		}
		for _, c := range cols {
			if c >= len(row) {
				continue
			}
			if got := strings.TrimSpace(row[c]); trimLeadingZeros(got) != trimLeadingZeros(subject) {
				mismatches = append(mismatches,
					fmt.Sprintf("row %d column %q has subject %q, expected %q", rowIdx+1, rows[0][c], got, subject))
			}
		}
	}
	return mismatches, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}
