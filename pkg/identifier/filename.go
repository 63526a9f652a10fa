package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

// A full filename is the identifier, an optional literal "_deviation" flag, an
// optional free-text "_info" suffix, and one or more ".ext" groups.
var fileRe = regexp.MustCompile(`^(sub-\d+)_([\w\-]+?)_(s\d+)_(r\d+)_(e\d+)(_deviation)?(_[\w\-]+)?((?:\.[A-Za-z0-9]+)+)$`)

// FileParts is the decomposition of a convention-conformant filename.
type FileParts struct {
	ID           Identifier
	HasDeviation bool
	Info         string // free-text suffix without the leading underscore
	Extension    string // full extension chain, e.g. ".csv" or ".zip.gpg"
}

// ParseFilename decomposes a filename against the filename grammar.
func ParseFilename(name string) (FileParts, error) {
	m := fileRe.FindStringSubmatch(name)
	if m == nil {
		return FileParts{}, fmt.Errorf("%w: filename %q", ErrInvalidFormat, name)
	}

	parts := FileParts{
		ID: Identifier{
			Subject:  m[1],
			Variable: m[2],
			Session:  m[3],
			Run:      m[4],
			Event:    m[5],
		},
		HasDeviation: m[6] != "",
		Info:         strings.TrimPrefix(m[7], "_"),
		Extension:    m[8],
	}
	if parts.HasDeviation {
		parts.ID.IsFromDeviation = true
	}

	return parts, nil
}

// DeviationString is the QA checklist grouping key for a file: the free-text
// suffix after the identifier, or "" when the filename carries none.
func (p FileParts) DeviationString() string {
	return p.Info
}

// ExpectedName builds the conventional filename for an identifier and
// extension chain.
func ExpectedName(id Identifier, ext string) string {
	return id.String() + ext
}

// NoDataName returns the no-data marker filename for an identifier. In legacy
// mode the marker omits the identifier prefix.
func NoDataName(id Identifier, legacy bool) string {
	if legacy {
		return "no-data.txt"
	}
	return id.String() + "_no-data.txt"
}

// DeviationName returns the deviation marker filename for an identifier. In
// legacy mode the marker omits the identifier prefix.
func DeviationName(id Identifier, legacy bool) string {
	if legacy {
		return "deviation.txt"
	}
	return id.String() + "_deviation.txt"
}
