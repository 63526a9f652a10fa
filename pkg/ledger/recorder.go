package ledger

import (
	"fmt"

	"github.com/openlabtools/datamon/pkg/identifier"
)

// RowSource is the slice of the data dictionary the recorder needs to fill
// outcome rows.
type RowSource interface {
	DataType(variable string) (string, bool)
	Encrypted(variable string) bool
}

// Recorder stamps outcome records with the shared run datetime and user so
// every stage of one invocation writes correlatable rows.
type Recorder struct {
	dateTime string
	user     string
	dict     RowSource
}

// NewRecorder creates a recorder for one invocation.
func NewRecorder(dateTime, user string, dict RowSource) *Recorder {
	return &Recorder{dateTime: dateTime, user: user, dict: dict}
}

// Pass emits a raw-validation pass record.
func (r *Recorder) Pass(id identifier.Identifier) Record {
	rec := r.base(id)
	rec.PassRaw = true
	return rec
}

// Error emits an error record. A record with PassRaw false always carries
// both error fields.
func (r *Recorder) Error(id identifier.Identifier, errorType, details string) Record {
	rec := r.base(id)
	rec.ErrorType = errorType
	rec.ErrorDetails = details
	return rec
}

// NoData emits a non-error outcome for an expected identifier whose absence
// is covered by a no-data marker. It carries no error type, so it reaches the
// full-outcome ledger but never the error ledger, and downstream consumers
// read it as "resolved without data".
func (r *Recorder) NoData(id identifier.Identifier) Record {
	rec := r.base(id)
	rec.ErrorDetails = fmt.Sprintf("no data expected for %s, marker present", id.String())
	return rec
}

// StructureError emits an "Improper directory structure" record for a path
// that does not resolve to any identifier.
func (r *Recorder) StructureError(path, details string) Record {
	return Record{
		DateTime:     r.dateTime,
		User:         r.user,
		Identifier:   path,
		ErrorType:    ErrorImproperStructure,
		ErrorDetails: details,
	}
}

// DirectoryError emits a directory-granularity record, used when an expected
// directory is absent entirely.
func (r *Recorder) DirectoryError(dir, errorType, details string) Record {
	return Record{
		DateTime:     r.dateTime,
		User:         r.user,
		Identifier:   dir,
		ErrorType:    errorType,
		ErrorDetails: details,
	}
}

func (r *Recorder) base(id identifier.Identifier) Record {
	dataType, _ := r.dict.DataType(id.Variable)
	return Record{
		DateTime:   r.dateTime,
		User:       r.user,
		Identifier: id.String(),
		Subject:    id.Subject,
		DataType:   dataType,
		Encrypted:  r.dict.Encrypted(id.Variable),
		Suffix:     id.Suffix(),
	}
}
