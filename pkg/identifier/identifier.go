// Package identifier implements the canonical subject_variable_session_run_event
// naming grammar used across the dataset.
package identifier

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat is returned when a string does not match the identifier grammar
	ErrInvalidFormat = errors.New("invalid identifier format")
	// ErrUnknownVariable is returned when an identifier's variable has no data dictionary row
	ErrUnknownVariable = errors.New("unknown variable")
)

// Mode selects which side of the sourcedata tree an identifier resolves into
type Mode string

const (
	// ModeRaw is the unreviewed acquisition tree (session_run/datatype/subject)
	ModeRaw Mode = "raw"
	// ModeChecked is the accepted tree (subject/session_run/datatype)
	ModeChecked Mode = "checked"
)

// DefaultEvent is assumed for expected identifiers when no event was observed
const DefaultEvent = "e1"

var idRe = regexp.MustCompile(`^(sub-\d+)_([\w\-]+)_(s\d+)_(r\d+)_(e\d+)$`)

// DataTypeSource resolves a variable name to its data type. The data
// dictionary repository satisfies this.
type DataTypeSource interface {
	DataType(variable string) (string, bool)
}

// Identifier names one unit of expected data. Equality and Key ignore Event,
// IsMissing and IsFromDeviation; the last two are derived during validation.
type Identifier struct {
	Subject  string // "sub-" followed by digits
	Variable string
	Session  string // "s" followed by digits
	Run      string // "r" followed by digits
	Event    string // "e" followed by digits

	IsMissing       bool
	IsFromDeviation bool
}

// Parse parses a canonical identifier string.
func Parse(s string) (Identifier, error) {
	m := idRe.FindStringSubmatch(s)
	if m == nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	return Identifier{
		Subject:  m[1],
		Variable: m[2],
		Session:  m[3],
		Run:      m[4],
		Event:    m[5],
	}, nil
}

// String renders the canonical form. Parse(String()) round-trips for any
// identifier produced by Parse.
func (id Identifier) String() string {
	return strings.Join([]string{id.Subject, id.Variable, id.Session, id.Run, id.Event}, "_")
}

// Key is the equality key: event is cosmetic and excluded.
func (id Identifier) Key() string {
	return strings.Join([]string{id.Subject, id.Variable, id.Session, id.Run}, "_")
}

// SessionRun returns the combined session_run directory segment.
func (id Identifier) SessionRun() string {
	return id.Session + "_" + id.Run
}

// Suffix returns the session_run_event suffix checked against the data
// dictionary's allowed-suffix list.
func (id Identifier) Suffix() string {
	return strings.Join([]string{id.Session, id.Run, id.Event}, "_")
}

// SubjectNumber returns the numeric subject component.
func (id Identifier) SubjectNumber() (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(id.Subject, "sub-"))
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q", ErrInvalidFormat, id.Subject)
	}
	return n, nil
}

// Directory computes the canonical directory for this identifier under the
// dataset root. Raw order is session_run/datatype/subject, checked order is
// subject/session_run/datatype.
func (id Identifier) Directory(datasetRoot string, mode Mode, types DataTypeSource) (string, error) {
	dataType, ok := types.DataType(id.Variable)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariable, id.Variable)
	}

	base := filepath.Join(datasetRoot, "sourcedata", string(mode))
	if mode == ModeChecked {
		return filepath.Join(base, id.Subject, id.SessionRun(), dataType), nil
	}
	return filepath.Join(base, id.SessionRun(), dataType, id.Subject), nil
}

// Annotator supplies the human-facing annotations for DisplayString. The data
// dictionary repository satisfies this.
type Annotator interface {
	DataType(variable string) (string, bool)
	Encrypted(variable string) bool
	CombinationFor(variable string) (string, bool)
}

// DisplayString renders the identifier with data type, encryption, combination
// and missing annotations for human-facing logs.
func (id Identifier) DisplayString(dict Annotator) string {
	var b strings.Builder
	b.WriteString(id.String())

	if dataType, ok := dict.DataType(id.Variable); ok {
		fmt.Fprintf(&b, " (%s", dataType)
		if dict.Encrypted(id.Variable) {
			b.WriteString(", encrypted")
		}
		if combo, ok := dict.CombinationFor(id.Variable); ok {
			fmt.Fprintf(&b, ", combination %s", combo)
		}
		b.WriteString(")")
	}
	if id.IsMissing {
		b.WriteString(" [missing]")
	}
	if id.IsFromDeviation {
		b.WriteString(" [deviation]")
	}

	return b.String()
}
