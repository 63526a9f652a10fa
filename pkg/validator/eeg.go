package validator

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/openlabtools/datamon/pkg/dictionary"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/scanner"
)

// checkDataTypes dispatches the datatype-specific checks per identifier.
func (v *Validator) checkDataTypes(s *listingState) {
	for _, p := range s.listing.Present {
		if s.grand[p.ID.Key()] {
			continue
		}
		dataType, ok := v.dict.DataType(p.ID.Variable)
		if !ok {
			continue
		}

		switch dataType {
		case dictionary.TypeEEG:
			v.checkEEG(s, p)
		case dictionary.TypePsychopy:
			v.checkPsychopy(s, p)
		}
	}
}

// checkEEG cross-references each BrainVision header's declared data and
// marker filenames against the files actually present in the directory.
func (v *Validator) checkEEG(s *listingState, p scanner.Present) {
	for _, f := range p.Files {
		if !strings.HasSuffix(f.Name, ".vhdr") {
			continue
		}

		declared, err := readHeaderFields(f.Path)
		if err != nil {
			s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorEEG,
				fmt.Sprintf("cannot read header %s: %v", f.Name, err)))
			continue
		}

		for _, field := range []string{"DataFile", "MarkerFile"} {
			name, ok := declared[field]
			if !ok || name == "" {
				continue
			}
			if !s.names[name] {
				s.add(p.ID, v.rec.Error(p.ID, ledger.ErrorEEG,
					fmt.Sprintf("header %s declares %s=%s but that file is not present", f.Name, field, name)))
			}
		}
	}
}

// readHeaderFields extracts key=value lines from a BrainVision header.
func readHeaderFields(path string) (map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // Dataset-derived path
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	fields := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, sc.Err()
}
