package validator

import (
	"fmt"

	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/scanner"
)

// checkPresence compares each identifier's files on disk against the
// expected filename set. A no-data marker collapses the expectation to the
// marker alone; a deviation defers to the reviewer and only requires at
// least two files; otherwise every allowed extension must be present exactly.
func (v *Validator) checkPresence(s *listingState) {
	for _, p := range s.listing.Present {
		key := p.ID.Key()
		if s.grand[key] {
			continue
		}

		flags := s.flags[key]
		if flags.deviation && flags.noData {
			continue // improper exception files already recorded, expectations undefined
		}

		switch {
		case flags.noData:
			marker := identifier.NoDataName(p.ID, s.opts.Legacy)
			for _, f := range p.Files {
				if f.Name != marker {
					s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorUnexpectedFile,
						fmt.Sprintf("file %s present alongside a no-data marker", f.Name)))
				}
			}

		case flags.deviation:
			// A single-file deviation should have used no-data.txt instead.
			if countNonMarker(s, p) < 2 {
				s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorMissingFile,
					"deviation declared but fewer than 2 files present"))
			}

		default:
			row, ok := v.dict.Row(p.ID.Variable)
			if !ok {
				continue // unknown variable already flagged by naming
			}

			expected := make(map[string]bool, len(row.ExpectedFileExts))
			for _, ext := range row.ExpectedFileExts {
				name := identifier.ExpectedName(p.ID, ext)
				expected[name] = true
				if !s.names[name] {
					s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorMissingFile,
						fmt.Sprintf("expected file %s not found", name)))
				}
			}
			for _, f := range p.Files {
				if !expected[f.Name] {
					s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorUnexpectedFile,
						fmt.Sprintf("file %s not in the expected set", f.Name)))
				}
			}
		}
	}
}

func countNonMarker(s *listingState, p scanner.Present) int {
	n := 0
	for _, f := range p.Files {
		if !s.isMarker(f.Name) {
			n++
		}
	}
	return n
}
