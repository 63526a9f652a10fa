// Package expectation derives the expected identifier set for a dataset and
// reconciles it against what the scanner found.
package expectation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/scanner"
)

// Triple is one observed (subject, session, run).
type Triple struct {
	Subject string
	Session string
	Run     string
}

// Resolver computes expected identifiers and combination rows from the data
// dictionary.
type Resolver struct {
	log  logrus.FieldLogger
	dict *dictionary.Repository
}

// New creates a resolver over one dictionary.
func New(log logrus.FieldLogger, dict *dictionary.Repository) *Resolver {
	return &Resolver{
		log:  log.WithField("service", "expectation"),
		dict: dict,
	}
}

// Triples returns the unique (subject, session, run) triples among present
// identifiers, sorted.
func (r *Resolver) Triples(present []identifier.Identifier) []Triple {
	seen := make(map[Triple]bool)
	var out []Triple
	for _, id := range present {
		t := Triple{Subject: id.Subject, Session: id.Session, Run: id.Run}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		if out[i].Session != out[j].Session {
			return out[i].Session < out[j].Session
		}
		return out[i].Run < out[j].Run
	})
	return out
}

// ExpectedIdentifiers crosses the triples with every visit variable, using
// the default event since none was observed.
func (r *Resolver) ExpectedIdentifiers(triples []Triple) []identifier.Identifier {
	visit := r.dict.VisitVariables()
	out := make([]identifier.Identifier, 0, len(triples)*len(visit))
	for _, t := range triples {
		for _, row := range visit {
			out = append(out, identifier.Identifier{
				Subject:  t.Subject,
				Variable: row.Variable,
				Session:  t.Session,
				Run:      t.Run,
				Event:    identifier.DefaultEvent,
			})
		}
	}
	return out
}

// MissingResult is the outcome of missing-identifier detection.
type MissingResult struct {
	// Missing holds expected identifiers with no data and no exception file,
	// grouped by the directory they were expected in. Used for error
	// propagation during per-file validation.
	Missing map[string][]identifier.Identifier
	Records []ledger.Record
}

// FindMissing reports expected identifiers absent from the tree. An exception
// file replaces the error with a no-data outcome; an absent directory yields
// one record per missing identifier plus a summary record at directory
// granularity.
func (r *Resolver) FindMissing(root string, mode identifier.Mode, legacy bool, expected []identifier.Identifier, tree *scanner.Tree, rec *ledger.Recorder) (*MissingResult, error) {
	presentKeys := make(map[string]bool)
	listingByPath := make(map[string]*scanner.Listing)
	for i := range tree.Listings {
		l := &tree.Listings[i]
		listingByPath[l.Path] = l
		for _, p := range l.Present {
			presentKeys[p.ID.Key()] = true
		}
	}

	result := &MissingResult{Missing: make(map[string][]identifier.Identifier)}
	missingDirs := make(map[string][]identifier.Identifier)

	for _, id := range expected {
		if presentKeys[id.Key()] {
			continue
		}

		dir, err := id.Directory(root, mode, r.dict)
		if err != nil {
			return nil, err
		}

		listing, ok := listingByPath[dir]
		if !ok {
			// Tolerate directories the scanner did not visit but that exist,
			// e.g. created empty between scan and resolve.
			if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
				missingDirs[dir] = append(missingDirs[dir], id)
				continue
			}
		}
		if hasExceptionFile(listing, id, legacy) {
			// Still an outcome: downstream consumers record the identifier as
			// resolved without data.
			result.Records = append(result.Records, rec.NoData(id))
			continue
		}

		id.IsMissing = true
		result.Missing[dir] = append(result.Missing[dir], id)
		result.Records = append(result.Records, rec.Error(id, ledger.ErrorMissingIdentifier,
			fmt.Sprintf("no data found for expected identifier %s", id.String())))
	}

	dirs := make([]string, 0, len(missingDirs))
	for dir := range missingDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		ids := missingDirs[dir]
		names := make([]string, 0, len(ids))
		for i := range ids {
			ids[i].IsMissing = true
			names = append(names, ids[i].String())
			result.Records = append(result.Records, rec.Error(ids[i], ledger.ErrorMissingIdentifier,
				fmt.Sprintf("no data found for expected identifier %s", ids[i].String())))
		}
		result.Missing[dir] = append(result.Missing[dir], ids...)
		result.Records = append(result.Records, rec.DirectoryError(relToRoot(root, dir), ledger.ErrorMissingIdentifier,
			fmt.Sprintf("expected directory missing for %s", strings.Join(names, ", "))))
	}

	return result, nil
}

func hasExceptionFile(listing *scanner.Listing, id identifier.Identifier, legacy bool) bool {
	if listing == nil {
		return false
	}
	marker := identifier.NoDataName(id, legacy)
	for _, f := range listing.Files {
		if f.Name == marker {
			return true
		}
	}
	return false
}

func relToRoot(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return dir
	}
	return rel
}
