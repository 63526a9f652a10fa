// Package monitor orchestrates one pipeline invocation: checked-mode
// validation and pruning, raw-mode validation, ledger writes, QA staging and
// the run report.
package monitor

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/expectation"
	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/observability"
	"github.com/openlabtools/datamon/pkg/qa"
	"github.com/openlabtools/datamon/pkg/report"
	"github.com/openlabtools/datamon/pkg/scanner"
	"github.com/openlabtools/datamon/pkg/validator"
)

// Application wires the pipeline services for one invocation.
type Application struct {
	log  logrus.FieldLogger
	run  *dataset.Run
	fs   fsops.Service
	dict *dictionary.Repository

	store    *ledger.Store
	rec      *ledger.Recorder
	scanner  *scanner.Scanner
	resolver *expectation.Resolver
	valid    *validator.Validator
	qa       *qa.Engine
}

// CheckOptions tune one check invocation.
type CheckOptions struct {
	SkipChecked bool
	SkipQA      bool
}

// NewApplication loads the data dictionary and wires the services. A changed
// dictionary since the last accepted run is a fatal precondition failure.
func NewApplication(log logrus.FieldLogger, run *dataset.Run, fs fsops.Service) (*Application, error) {
	dict, err := dictionary.Load(run.Paths.DictionaryFile())
	if err != nil {
		return nil, err
	}
	if err := dict.CheckDrift(run.Paths.DictionarySnapshot()); err != nil {
		return nil, err
	}

	store := ledger.NewStore(log, run.Paths.Pending(), run.Paths.FileRecord(), run.Paths.QAChecklist())
	rec := ledger.NewRecorder(run.RowStamp(), run.User, dict)

	return &Application{
		log:      log.WithField("service", "monitor"),
		run:      run,
		fs:       fs,
		dict:     dict,
		store:    store,
		rec:      rec,
		scanner:  scanner.New(log, run.Paths.Root),
		resolver: expectation.New(log, dict),
		valid:    validator.New(log, dict, rec, run.Paths.Root),
		qa:       qa.New(log, dict, store, fs, run),
	}, nil
}

// Dictionary exposes the loaded reference table.
func (a *Application) Dictionary() *dictionary.Repository { return a.dict }

// Store exposes the ledger store.
func (a *Application) Store() *ledger.Store { return a.store }

// QA exposes the promotion engine.
func (a *Application) QA() *qa.Engine { return a.qa }

// Check runs checked-mode validation (with pruning of newly failing accepted
// data) strictly before raw-mode validation, then writes the pending ledgers
// and stages QA copies.
func (a *Application) Check(opts CheckOptions) error {
	if !opts.SkipChecked {
		if err := a.checkCheckedTree(); err != nil {
			return err
		}
	}

	rawRecords, err := a.checkRawTree()
	if err != nil {
		return err
	}

	if !opts.SkipQA {
		if err := a.qa.Stage(rawRecords); err != nil {
			return err
		}
	}

	if err := a.snapshotDictionary(); err != nil {
		return err
	}

	return a.writeReport(rawRecords)
}

func (a *Application) validateOptions(mode identifier.Mode) validator.Options {
	return validator.Options{
		Mode:         mode,
		Legacy:       a.run.Config.LegacyExceptions,
		IgnoreBefore: a.run.Config.IgnoreBeforeTime(),
	}
}

// checkCheckedTree validates the accepted tree and prunes identifiers that
// newly fail: their file-record rows are removed and their files deleted.
// Checked-mode validation never emits pass rows.
func (a *Application) checkCheckedTree() error {
	tree, err := a.scanner.Scan(identifier.ModeChecked)
	if err != nil {
		return err
	}
	a.countFiles(tree)

	records := a.valid.ValidateTree(tree, nil, a.validateOptions(identifier.ModeChecked))
	for _, issue := range tree.Issues {
		records = append(records, a.rec.StructureError(issue.Path, issue.Detail))
	}
	a.countOutcomes(identifier.ModeChecked, records)

	if len(records) == 0 {
		return nil
	}

	if err := a.pruneFailing(records); err != nil {
		return err
	}

	return a.store.WritePendingErrors(a.run.FileStamp(), records)
}

// pruneFailing removes newly failing identifiers from the file record and
// deletes their files from the checked tree.
func (a *Application) pruneFailing(records []ledger.Record) error {
	failing := make(map[string]bool)
	for _, rec := range records {
		if rec.ErrorType == "" {
			continue
		}
		id, err := identifier.Parse(rec.Identifier)
		if err != nil {
			continue
		}
		failing[id.Key()] = true
	}
	if len(failing) == 0 {
		return nil
	}

	fileRecord, err := a.store.ReadFileRecord()
	if err != nil {
		return err
	}

	var kept []ledger.Record
	for _, rec := range fileRecord {
		id, err := identifier.Parse(rec.Identifier)
		if err != nil || !failing[id.Key()] {
			kept = append(kept, rec)
			continue
		}

		a.log.WithField("identifier", id.DisplayString(a.dict)).Warn("Pruning newly failing accepted identifier")
		if err := a.deleteCheckedFiles(id); err != nil {
			return err
		}
	}

	return a.store.WriteFileRecord(kept)
}

func (a *Application) deleteCheckedFiles(id identifier.Identifier) error {
	dir, err := id.Directory(a.run.Paths.Root, identifier.ModeChecked, a.dict)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts, err := identifier.ParseFilename(entry.Name())
		if err != nil || parts.ID.Key() != id.Key() {
			continue
		}
		if err := a.fs.DeleteTree(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// checkRawTree validates the raw tree against expectation and writes the
// pending ledgers with the shared run stamp.
func (a *Application) checkRawTree() ([]ledger.Record, error) {
	tree, err := a.scanner.Scan(identifier.ModeRaw)
	if err != nil {
		return nil, err
	}
	a.countFiles(tree)

	present := tree.AllPresent()
	triples := a.resolver.Triples(present)
	expected := a.resolver.ExpectedIdentifiers(triples)

	missing, err := a.resolver.FindMissing(a.run.Paths.Root, identifier.ModeRaw, a.run.Config.LegacyExceptions, expected, tree, a.rec)
	if err != nil {
		return nil, err
	}

	records := a.valid.ValidateTree(tree, missing.Missing, a.validateOptions(identifier.ModeRaw))
	records = append(records, missing.Records...)
	records = append(records, a.resolver.CheckCombinations(present, a.rec)...)
	for _, issue := range tree.Issues {
		records = append(records, a.rec.StructureError(issue.Path, issue.Detail))
	}
	a.countOutcomes(identifier.ModeRaw, records)

	if err := a.store.WritePendingFiles(a.run.FileStamp(), records); err != nil {
		return nil, err
	}

	var errorRecords []ledger.Record
	for _, rec := range records {
		if rec.ErrorType != "" {
			errorRecords = append(errorRecords, rec)
		}
	}
	if err := a.store.WritePendingErrors(a.run.FileStamp(), errorRecords); err != nil {
		return nil, err
	}

	return records, nil
}

// snapshotDictionary records the dictionary contents for the next run's
// drift check.
func (a *Application) snapshotDictionary() error {
	data, err := os.ReadFile(a.run.Paths.DictionaryFile()) //nolint:gosec // Dataset-derived path
	if err != nil {
		return err
	}
	return os.WriteFile(a.run.Paths.DictionarySnapshot(), data, 0o644) //nolint:gosec // Reference data copy
}

func (a *Application) writeReport(records []ledger.Record) error {
	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	return renderer.Write(a.run, report.Summarize(a.run, records, nil))
}

func (a *Application) countFiles(tree *scanner.Tree) {
	n := 0
	for _, l := range tree.Listings {
		n += len(l.Files)
	}
	observability.FilesScanned.WithLabelValues(string(tree.Mode)).Add(float64(n))
}

func (a *Application) countOutcomes(mode identifier.Mode, records []ledger.Record) {
	for _, rec := range records {
		result := rec.ErrorType
		switch {
		case result == "" && rec.PassRaw:
			result = "pass"
		case result == "":
			result = "no-data"
		}
		observability.OutcomeRecords.WithLabelValues(string(mode), result).Inc()
	}
}
