// Package qa implements the promotion state machine that moves raw-validated
// data through reviewer sign-off into the checked tree.
package qa

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/fsops"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
)

// Engine advances identifiers through
// RawPass → QAPendingNoReview → QAPendingReviewed → Promoted.
type Engine struct {
	log   logrus.FieldLogger
	dict  *dictionary.Repository
	store *ledger.Store
	fs    fsops.Service
	run   *dataset.Run
}

// New creates a QA engine for one invocation.
func New(log logrus.FieldLogger, dict *dictionary.Repository, store *ledger.Store, fs fsops.Service, run *dataset.Run) *Engine {
	return &Engine{
		log:   log.WithField("service", "qa"),
		dict:  dict,
		store: store,
		fs:    fs,
		run:   run,
	}
}

// Stage copies the files of every new raw pass into the QA staging tree and
// adds checklist rows awaiting review. Copies never overwrite newer-or-equal
// staged files, so re-staging is idempotent.
func (e *Engine) Stage(rawRecords []ledger.Record) error {
	accepted, err := e.acceptedKeys()
	if err != nil {
		return err
	}

	checklist, err := e.store.ReadChecklist()
	if err != nil {
		return err
	}
	have := make(map[string]map[string]bool) // identifier → deviation strings already listed
	for _, row := range checklist {
		if have[row.Identifier] == nil {
			have[row.Identifier] = make(map[string]bool)
		}
		have[row.Identifier][row.DeviationString] = true
	}

	for _, rec := range rawRecords {
		if !rec.PassRaw || rec.ErrorType != "" {
			continue
		}
		id, err := identifier.Parse(rec.Identifier)
		if err != nil {
			continue
		}
		if accepted[id.Key()] {
			continue
		}

		devStrings, err := e.stageFiles(id)
		if err != nil {
			return err
		}

		for _, dev := range devStrings {
			if have[rec.Identifier] != nil && have[rec.Identifier][dev] {
				continue
			}
			checklist = append(checklist, ledger.ChecklistRow{
				DateTime:        rec.DateTime,
				User:            rec.User,
				Identifier:      rec.Identifier,
				DeviationString: dev,
				Subject:         rec.Subject,
				DataType:        rec.DataType,
				Encrypted:       rec.Encrypted,
				Suffix:          rec.Suffix,
			})
			if have[rec.Identifier] == nil {
				have[rec.Identifier] = make(map[string]bool)
			}
			have[rec.Identifier][dev] = true
		}
	}

	return e.store.WriteChecklist(checklist)
}

// stageFiles copies one identifier's raw files into the staging tree and
// returns the distinct deviation strings observed among them. A null
// deviation string is suppressed when any non-null string exists.
func (e *Engine) stageFiles(id identifier.Identifier) ([]string, error) {
	rawDir, err := id.Directory(e.run.Paths.Root, identifier.ModeRaw, e.dict)
	if err != nil {
		return nil, err
	}
	stageDir, err := e.stagingDir(id)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, err
	}

	devSet := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts, err := identifier.ParseFilename(entry.Name())
		if err != nil || parts.ID.Key() != id.Key() {
			continue
		}

		src := filepath.Join(rawDir, entry.Name())
		if _, err := e.fs.CopyIfNewer(src, filepath.Join(stageDir, entry.Name())); err != nil {
			return nil, err
		}
		devSet[parts.DeviationString()] = true
	}

	if len(devSet) > 1 {
		delete(devSet, "")
	}
	devStrings := make([]string, 0, len(devSet))
	for dev := range devSet {
		devStrings = append(devStrings, dev)
	}
	sort.Strings(devStrings)
	return devStrings, nil
}

// stagingDir mirrors the raw layout under pending-qa.
func (e *Engine) stagingDir(id identifier.Identifier) (string, error) {
	dataType, ok := e.dict.DataType(id.Variable)
	if !ok {
		return "", identifier.ErrUnknownVariable
	}
	return filepath.Join(e.run.Paths.PendingQA(), id.SessionRun(), dataType, id.Subject), nil
}

func (e *Engine) acceptedKeys() (map[string]bool, error) {
	records, err := e.store.ReadFileRecord()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(records))
	for _, rec := range records {
		id, err := identifier.Parse(rec.Identifier)
		if err != nil {
			continue
		}
		keys[id.Key()] = true
	}
	return keys, nil
}
