package tracker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/heimdalr/dag"

	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/observability"
)

// applyDerived evaluates combination and status/data columns. Their child
// relationships form a dependency graph, so evaluation order is a DAG walk:
// children before parents, cycles rejected at build time.
func (e *Engine) applyDerived(table *Table, p Params) error {
	derived := make(map[string]dictionary.Row)
	for _, row := range e.dict.Variables() {
		if row.Provenance.Kind == dictionary.ProvenanceVariables {
			derived[row.Variable] = row
		}
	}
	if len(derived) == 0 {
		return nil
	}

	order, err := derivedOrder(derived)
	if err != nil {
		return err
	}

	for _, name := range order {
		row := derived[name]
		for _, suffix := range row.AllowedSuffixes {
			if !strings.HasPrefix(suffix, p.SessionRun()) {
				continue
			}
			if row.DataType == dictionary.TypeCombination {
				e.applyCombination(table, row, suffix)
			} else {
				e.applyConjunction(table, row, suffix)
			}
		}
	}

	return nil
}

// derivedOrder topologically sorts the derived variables so children are
// evaluated first.
func derivedOrder(derived map[string]dictionary.Row) ([]string, error) {
	d := dag.NewDAG()
	added := make(map[string]bool)
	ensure := func(name string) error {
		if added[name] {
			return nil
		}
		added[name] = true
		return d.AddVertexByID(name, name)
	}

	names := make([]string, 0, len(derived))
	for name := range derived {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ensure(name); err != nil {
			return nil, err
		}
		for _, child := range derived[name].Provenance.Variables {
			if err := ensure(child); err != nil {
				return nil, err
			}
			if err := d.AddEdge(child, name); err != nil {
				return nil, fmt.Errorf("invalid provenance %s → %s: %w", child, name, err)
			}
		}
	}

	done := make(map[string]bool)
	var order []string
	for len(order) < len(names) {
		progressed := false
		for _, name := range names {
			if done[name] {
				continue
			}
			parents, err := d.GetParents(name)
			if err != nil {
				return nil, err
			}
			ready := true
			for parent := range parents {
				if _, isDerived := derived[parent]; isDerived && !done[parent] {
					ready = false
					break
				}
			}
			if ready {
				done[name] = true
				order = append(order, name)
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("provenance graph did not resolve: %s", strings.Join(names, ", "))
		}
	}

	return order, nil
}

// applyCombination sets the logical OR of the child columns, blanked rather
// than zeroed when the OR is uniformly false for every subject.
func (e *Engine) applyCombination(table *Table, row dictionary.Row, suffix string) {
	col := row.Variable + "_" + suffix
	subjects := table.Subjects()

	anyTrue := false
	values := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		v := "0"
		for _, child := range row.Provenance.Variables {
			if table.Get(subject, child+"_"+suffix) == "1" {
				v = "1"
				anyTrue = true
				break
			}
		}
		values[subject] = v
	}

	if !anyTrue {
		return // leave the column blank
	}
	for _, subject := range subjects {
		table.Set(subject, col, values[subject])
		observability.TrackerCells.WithLabelValues("derived").Inc()
	}
}

// applyConjunction sets the boolean AND across the child columns.
func (e *Engine) applyConjunction(table *Table, row dictionary.Row, suffix string) {
	col := row.Variable + "_" + suffix
	for _, subject := range table.Subjects() {
		v := "1"
		for _, child := range row.Provenance.Variables {
			if table.Get(subject, child+"_"+suffix) != "1" {
				v = "0"
				break
			}
		}
		table.Set(subject, col, v)
		observability.TrackerCells.WithLabelValues("derived").Inc()
	}
}
