package dictionary

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidProvenance is returned when a provenance clause does not match
// either grammar form.
var ErrInvalidProvenance = errors.New("invalid provenance clause")

// ProvenanceKind discriminates the two clause forms.
type ProvenanceKind int

const (
	// ProvenanceNone means the variable has no external or derived source
	ProvenanceNone ProvenanceKind = iota
	// ProvenanceFile links the variable to a column in an external spreadsheet:
	// file: "X" variable: "Y" id: "Z"
	ProvenanceFile
	// ProvenanceVariables links the variable to a set of child variables:
	// variables: "A", "B"
	ProvenanceVariables
)

// Provenance links a variable to an external spreadsheet column or to a set
// of child variables (combination/status/data relationships).
type Provenance struct {
	Kind ProvenanceKind

	File     string // spreadsheet name stem
	Variable string // column name in the spreadsheet
	ID       string // subject-id column in the spreadsheet

	Variables []string // child variables
}

var (
	fileClauseRe = regexp.MustCompile(`^file:\s*"([^"]+)"\s+variable:\s*"([^"]*)"\s+id:\s*"([^"]+)"$`)
	varsClauseRe = regexp.MustCompile(`^variables:\s*((?:"[^"]+"\s*,?\s*)+)$`)
	quotedRe     = regexp.MustCompile(`"([^"]+)"`)
)

// ParseProvenance parses one provenance clause. An empty clause is
// ProvenanceNone.
func ParseProvenance(s string) (Provenance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Provenance{Kind: ProvenanceNone}, nil
	}

	if m := fileClauseRe.FindStringSubmatch(s); m != nil {
		return Provenance{
			Kind:     ProvenanceFile,
			File:     m[1],
			Variable: m[2],
			ID:       m[3],
		}, nil
	}

	if m := varsClauseRe.FindStringSubmatch(s); m != nil {
		var vars []string
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			vars = append(vars, q[1])
		}
		return Provenance{Kind: ProvenanceVariables, Variables: vars}, nil
	}

	return Provenance{}, fmt.Errorf("%w: %q", ErrInvalidProvenance, s)
}

// CombinationRow names a logical slot satisfied by exactly one of several
// alternative child variables.
type CombinationRow struct {
	Name      string
	Variables []string
}

// CombinationRows returns every combination-typed dictionary row parsed into
// {name, variables}.
func (r *Repository) CombinationRows() []CombinationRow {
	var out []CombinationRow
	for _, v := range r.order {
		row := r.rows[v]
		if row.DataType != TypeCombination {
			continue
		}
		out = append(out, CombinationRow{
			Name:      row.Variable,
			Variables: append([]string(nil), row.Provenance.Variables...),
		})
	}
	return out
}

// VisitVariables returns the variables expected on disk for every visit:
// visit_data rows, excluding ones whose provenance resolves to a combination
// row (those are satisfied through their alternatives instead).
func (r *Repository) VisitVariables() []Row {
	combined := make(map[string]bool)
	for _, combo := range r.CombinationRows() {
		for _, child := range combo.Variables {
			combined[child] = true
		}
	}

	var out []Row
	for _, v := range r.order {
		row := r.rows[v]
		if row.DataType != TypeVisitData {
			continue
		}
		if combined[row.Variable] {
			continue
		}
		out = append(out, row)
	}
	return out
}

// CombinationVariables returns every variable reachable through a combination
// row, keyed by child variable.
func (r *Repository) CombinationVariables() map[string]bool {
	combined := make(map[string]bool)
	for _, combo := range r.CombinationRows() {
		for _, child := range combo.Variables {
			combined[child] = true
		}
	}
	return combined
}
