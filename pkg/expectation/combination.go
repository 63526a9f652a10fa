package expectation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
)

// CheckCombinations verifies that each combination row is satisfied by exactly
// one present (non-deviation) identifier per (subject, session, run). Zero
// present yields one error per possible variable; more than one yields one
// error per identifier actually present, since an ambiguous choice must be
// flagged rather than silently resolved.
func (r *Resolver) CheckCombinations(present []identifier.Identifier, rec *ledger.Recorder) []ledger.Record {
	triples := r.Triples(present)

	presentByTriple := make(map[Triple]map[string][]identifier.Identifier)
	for _, id := range present {
		if id.IsFromDeviation {
			continue
		}
		t := Triple{Subject: id.Subject, Session: id.Session, Run: id.Run}
		if presentByTriple[t] == nil {
			presentByTriple[t] = make(map[string][]identifier.Identifier)
		}
		presentByTriple[t][id.Variable] = append(presentByTriple[t][id.Variable], id)
	}

	var records []ledger.Record
	for _, combo := range r.dict.CombinationRows() {
		for _, t := range triples {
			var found []identifier.Identifier
			for _, v := range combo.Variables {
				found = append(found, presentByTriple[t][v]...)
			}

			switch len(found) {
			case 1:
				// expected case
			case 0:
				for _, v := range combo.Variables {
					id := identifier.Identifier{
						Subject:  t.Subject,
						Variable: v,
						Session:  t.Session,
						Run:      t.Run,
						Event:    identifier.DefaultEvent,
					}
					records = append(records, rec.Error(id, ledger.ErrorCombinationVariable,
						fmt.Sprintf("combination %s: none of %s present for %s %s_%s",
							combo.Name, strings.Join(combo.Variables, ", "), t.Subject, t.Session, t.Run)))
				}
			default:
				sort.Slice(found, func(i, j int) bool { return found[i].String() < found[j].String() })
				names := make([]string, 0, len(found))
				for _, id := range found {
					names = append(names, id.String())
				}
				for _, id := range found {
					records = append(records, rec.Error(id, ledger.ErrorCombinationVariable,
						fmt.Sprintf("combination %s: %d identifiers present (%s), expected exactly one",
							combo.Name, len(found), strings.Join(names, ", "))))
				}
			}
		}
	}

	return records
}
