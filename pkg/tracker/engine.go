package tracker

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/observability"
)

// Engine reconciles accepted data and external survey exports into the
// central tracker. It is run once per (session, run) pair; accumulated state
// is read-modify-write on the output file.
type Engine struct {
	log  logrus.FieldLogger
	dict *dictionary.Repository
	run  *dataset.Run
}

// New creates a tracker engine for one invocation.
func New(log logrus.FieldLogger, dict *dictionary.Repository, run *dataset.Run) *Engine {
	return &Engine{
		log:  log.WithField("service", "tracker"),
		dict: dict,
		run:  run,
	}
}

// Params select one reconciliation pass. Passed and Failed are supplied
// explicitly rather than re-derived from the ledgers.
type Params struct {
	Session    string // e.g. "s1"
	RunSegment string // e.g. "r1"

	Passed []identifier.Identifier
	Failed []identifier.Identifier

	// ExportDir holds the survey exports for this session. Defaults to
	// sourcedata/raw/{session_run}/redcap.
	ExportDir string

	// AllowedDuplicateColumns may legitimately appear in more than one
	// mapped spreadsheet.
	AllowedDuplicateColumns []string
}

// SessionRun returns the combined session_run segment.
func (p Params) SessionRun() string {
	return p.Session + "_" + p.RunSegment
}

// Reconcile runs all three population mechanisms and writes the tracker and
// its viewable copy.
func (e *Engine) Reconcile(p Params) error {
	if p.ExportDir == "" {
		p.ExportDir = filepath.Join(e.run.Paths.Raw(), p.SessionRun(), "redcap")
	}

	path := e.run.Paths.CentralTracker(e.run.Config.DatasetName)
	table, err := LoadTable(path)
	if err != nil {
		return err
	}

	e.applyFileOutcomes(table, p)

	if err := e.applySpreadsheets(table, p); err != nil {
		return err
	}

	if err := e.applyDerived(table, p); err != nil {
		return err
	}

	if err := table.Write(path, false); err != nil {
		return err
	}
	return table.Write(e.run.Paths.CentralTrackerViewable(e.run.Config.DatasetName), true)
}

// applyFileOutcomes sets 1/0 cells from the supplied passed and failed
// identifier lists. Unknown columns or subjects are dropped with a warning,
// never fatal.
func (e *Engine) applyFileOutcomes(table *Table, p Params) {
	known := e.knownColumns()

	apply := func(ids []identifier.Identifier, value string) {
		for _, id := range ids {
			col := id.Variable + "_" + id.Suffix()
			if !known[col] {
				e.log.WithField("column", col).Warn("Unknown tracker column, dropping")
				continue
			}
			n, err := id.SubjectNumber()
			if err != nil || !e.dict.SubjectAllowed(n) {
				e.log.WithField("subject", id.Subject).Warn("Unknown subject id, dropping")
				continue
			}
			table.Set(fmt.Sprintf("%d", n), col, value)
			observability.TrackerCells.WithLabelValues("file").Inc()
		}
	}

	apply(p.Failed, "0")
	apply(p.Passed, "1")
}

// knownColumns is the tracker column universe: every dictionary variable
// crossed with its allowed suffixes.
func (e *Engine) knownColumns() map[string]bool {
	known := make(map[string]bool)
	for _, row := range e.dict.Variables() {
		for _, suffix := range row.AllowedSuffixes {
			known[row.Variable+"_"+suffix] = true
		}
	}
	return known
}

// applySpreadsheets populates tracker columns mapped to external survey
// exports, enforcing the column-collision rules.
func (e *Engine) applySpreadsheets(table *Table, p Params) error {
	fileVars := e.fileProvenanceRows()
	if len(fileVars) == 0 {
		return nil
	}

	exports, err := findExports(p.ExportDir, p.SessionRun())
	if err != nil {
		return err
	}
	if len(exports) == 0 {
		return fmt.Errorf("%w: expected at least one export under %s", ErrNoSpreadsheets, p.ExportDir)
	}

	sheets := make(map[string]*Spreadsheet)
	for _, row := range fileVars {
		stem := row.Provenance.File
		if _, loaded := sheets[stem]; loaded {
			continue
		}
		sheet, err := loadSpreadsheet(exports, stem, row.Provenance.ID)
		if err != nil {
			return err
		}
		sheets[stem] = sheet // may be nil when the export is absent
	}

	if err := e.checkCollisions(fileVars, sheets, p.AllowedDuplicateColumns); err != nil {
		return err
	}

	for _, row := range fileVars {
		sheet := sheets[row.Provenance.File]
		if sheet == nil {
			e.log.WithField("spreadsheet", row.Provenance.File).Warn("Export not found, skipping mapped columns")
			continue
		}
		e.applySheetColumns(table, p, row, sheet)
	}

	return nil
}

// applySheetColumns fills one variable's tracker cells for the current
// session's suffixes. Subjects absent from the spreadsheet get 0.
func (e *Engine) applySheetColumns(table *Table, p Params, row dictionary.Row, sheet *Spreadsheet) {
	col := row.Provenance.Variable
	hasCol := sheet.HasColumn(col)

	subjects := make(map[string]bool)
	for _, s := range sheet.Subjects() {
		subjects[s] = true
	}
	for _, s := range table.Subjects() {
		subjects[s] = true
	}

	for _, suffix := range row.AllowedSuffixes {
		if !strings.HasPrefix(suffix, p.SessionRun()) {
			continue
		}
		trackerCol := row.Variable + "_" + suffix

		ordered := make([]string, 0, len(subjects))
		for s := range subjects {
			ordered = append(ordered, s)
		}
		sort.Strings(ordered)
		for _, subject := range ordered {
			value := "0"
			if hasCol {
				if v, ok := sheet.Value(subject, col); ok && completed(v) {
					value = "1"
				}
			}
			table.Set(subject, trackerCol, value)
			observability.TrackerCells.WithLabelValues("spreadsheet").Inc()
		}
	}
}

// checkCollisions enforces the relocated-column and cross-file duplication
// rules over the loaded spreadsheets.
func (e *Engine) checkCollisions(fileVars []dictionary.Row, sheets map[string]*Spreadsheet, allowed []string) error {
	allowSet := make(map[string]bool, len(allowed))
	for _, col := range allowed {
		allowSet[col] = true
	}

	owners := make(map[string]map[string]bool) // spreadsheet column → designated stems
	for _, row := range fileVars {
		col := row.Provenance.Variable
		if owners[col] == nil {
			owners[col] = make(map[string]bool)
		}
		owners[col][row.Provenance.File] = true
	}

	for _, row := range fileVars {
		col := row.Provenance.Variable
		designated := sheets[row.Provenance.File]
		if designated == nil {
			continue
		}

		if !designated.HasColumn(col) {
			for stem, other := range sheets {
				if other != nil && stem != row.Provenance.File && other.HasColumn(col) {
					return fmt.Errorf("%w: %q expected in %s but found in %s", ErrRelocatedColumn, col, row.Provenance.File, stem)
				}
			}
			continue
		}

		if allowSet[col] {
			continue
		}
		var holders []string
		for stem := range owners[col] {
			if sheet := sheets[stem]; sheet != nil && sheet.HasColumn(col) {
				holders = append(holders, stem)
			}
		}
		if len(holders) > 1 {
			sort.Strings(holders)
			return fmt.Errorf("%w: %q owned by %s", ErrDuplicateAcrossFiles, col, strings.Join(holders, " and "))
		}
	}

	return nil
}

func (e *Engine) fileProvenanceRows() []dictionary.Row {
	var out []dictionary.Row
	for _, row := range e.dict.Variables() {
		if row.Provenance.Kind == dictionary.ProvenanceFile {
			out = append(out, row)
		}
	}
	return out
}

// completed interprets a survey cell as done/not-done.
func completed(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0"
}
