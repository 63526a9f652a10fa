// Package validator checks present identifiers for naming-convention
// conformance, misplacement, emptiness, exception-file consistency and
// presence against expectation, collecting every error found rather than
// stopping at the first.
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/scanner"
)

// Options selects the validation mode for one pass.
type Options struct {
	Mode identifier.Mode

	// Legacy switches exception markers to the bare
	// deviation.txt/no-data.txt names.
	Legacy bool

	// IgnoreBefore grandfathers identifiers whose files were all last
	// modified before this date. Zero disables the escape hatch.
	IgnoreBefore time.Time
}

// Validator runs the naming and structural checks.
type Validator struct {
	log  logrus.FieldLogger
	dict *dictionary.Repository
	rec  *ledger.Recorder
	root string
}

// New creates a validator for one dataset root.
func New(log logrus.FieldLogger, dict *dictionary.Repository, rec *ledger.Recorder, root string) *Validator {
	return &Validator{
		log:  log.WithField("service", "validator"),
		dict: dict,
		rec:  rec,
		root: root,
	}
}

// ValidateTree validates every listing of a scanned tree. The missing map
// carries expected-but-absent identifiers per directory, for error
// propagation. Raw mode emits one pass record per identifier with zero
// errors; checked mode never emits passes.
func (v *Validator) ValidateTree(tree *scanner.Tree, missing map[string][]identifier.Identifier, opts Options) []ledger.Record {
	var records []ledger.Record
	for i := range tree.Listings {
		l := &tree.Listings[i]
		records = append(records, v.validateListing(l, missing[l.Path], opts)...)
	}
	return records
}

type exceptionFlags struct {
	deviation bool
	noData    bool
}

// listingState accumulates outcomes for one identifier directory.
type listingState struct {
	listing *scanner.Listing
	opts    Options
	names   map[string]bool           // filename set of the directory
	flags   map[string]exceptionFlags // by identifier key
	grand   map[string]bool           // grandfathered identifiers by key
	errs    map[string]int            // error count by identifier key
	// propagated error types with one originating detail each; spread to
	// missing identifiers in the same directory
	propagate map[string]string
	records   []ledger.Record
}

func (s *listingState) add(id identifier.Identifier, rec ledger.Record) {
	s.errs[id.Key()]++
	s.records = append(s.records, rec)
}

func (v *Validator) validateListing(l *scanner.Listing, missing []identifier.Identifier, opts Options) []ledger.Record {
	s := &listingState{
		listing:   l,
		opts:      opts,
		names:     make(map[string]bool, len(l.Files)),
		flags:     make(map[string]exceptionFlags, len(l.Present)),
		grand:     make(map[string]bool),
		errs:      make(map[string]int),
		propagate: make(map[string]string),
	}
	for _, f := range l.Files {
		s.names[f.Name] = true
	}

	v.checkEmptyFiles(s)
	v.detectExceptions(s)
	v.markGrandfathered(s)
	v.checkNaming(s)
	v.checkMisplacement(s)
	v.checkPresence(s)
	v.checkDataTypes(s)

	// Propagate directory-level naming failures to missing identifiers so a
	// reviewer searching by the missing identifier still sees the problem.
	types := make([]string, 0, len(s.propagate))
	for t := range s.propagate {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, id := range missing {
		for _, t := range types {
			s.records = append(s.records, v.rec.Error(id, t,
				fmt.Sprintf("propagated from directory: %s", s.propagate[t])))
		}
	}

	if opts.Mode == identifier.ModeRaw {
		for _, p := range l.Present {
			// Grandfathered identifiers pass by policy: their data predates
			// the convention.
			if s.grand[p.ID.Key()] || s.errs[p.ID.Key()] == 0 {
				s.records = append(s.records, v.rec.Pass(p.ID))
			}
		}
	}

	return s.records
}

// checkEmptyFiles flags zero-size files, independent of naming.
func (v *Validator) checkEmptyFiles(s *listingState) {
	for _, f := range s.listing.Files {
		if f.Size != 0 {
			continue
		}
		detail := fmt.Sprintf("file %s is empty", f.Name)
		if parts, err := identifier.ParseFilename(f.Name); err == nil {
			s.add(parts.ID, v.rec.Error(parts.ID, ledger.ErrorEmptyFile, detail))
		} else {
			s.records = append(s.records, v.rec.DirectoryError(f.Path, ledger.ErrorEmptyFile, detail))
		}
	}
}

// detectExceptions sets the deviation/no-data flags per identifier. Both
// markers present simultaneously is an error and suppresses presence checks.
func (v *Validator) detectExceptions(s *listingState) {
	for _, p := range s.listing.Present {
		f := exceptionFlags{
			deviation: s.names[identifier.DeviationName(p.ID, s.opts.Legacy)],
			noData:    s.names[identifier.NoDataName(p.ID, s.opts.Legacy)],
		}
		s.flags[p.ID.Key()] = f

		if f.deviation && f.noData {
			s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorImproperExceptionFiles,
				"both deviation and no-data markers present"))
		}
	}
}

// markGrandfathered flags identifiers whose files all predate the cutoff.
// Steps beyond empty-file and exception detection are skipped for them.
func (v *Validator) markGrandfathered(s *listingState) {
	if s.opts.IgnoreBefore.IsZero() {
		return
	}
	for _, p := range s.listing.Present {
		old := true
		for _, f := range p.Files {
			if !f.ModTime.Before(s.opts.IgnoreBefore) {
				old = false
				break
			}
		}
		if old {
			s.grand[p.ID.Key()] = true
		}
	}
}

// isMarker reports whether a filename is an exception marker in this
// directory: a deviation marker of any present identifier, or either bare
// legacy marker.
func (s *listingState) isMarker(name string) bool {
	if s.opts.Legacy && (name == "deviation.txt" || name == "no-data.txt") {
		return true
	}
	for _, p := range s.listing.Present {
		if name == identifier.DeviationName(p.ID, false) {
			return true
		}
	}
	return false
}

func (s *listingState) hasDeviation(key string) bool {
	return s.flags[key].deviation
}
