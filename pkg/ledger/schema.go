package ledger

import (
	"errors"
	"fmt"
)

// ErrSchemaViolation is returned when rows are missing a required column.
// Writers validate before touching disk.
var ErrSchemaViolation = errors.New("ledger schema violation")

// Schema is the fixed required-column contract of one ledger kind. Extra
// columns in supplied rows are dropped silently for forward compatibility.
type Schema struct {
	Name    string
	Columns []string
}

//nolint:gochecknoglobals // Fixed ledger contracts
var (
	// FileRecordSchema is the durable accepted-set ledger
	FileRecordSchema = Schema{
		Name:    "validated-file-record",
		Columns: []string{"datetime", "user", "identifier", "subject", "dataType", "encrypted", "suffix"},
	}

	// PendingFilesSchema records every outcome of the most recent raw run
	PendingFilesSchema = Schema{
		Name:    "pending-files",
		Columns: []string{"datetime", "user", "identifier", "subject", "dataType", "encrypted", "suffix", "passRaw", "errorType", "errorDetails"},
	}

	// PendingErrorsSchema is the error subset, accumulated across modes
	PendingErrorsSchema = Schema{
		Name:    "pending-errors",
		Columns: []string{"datetime", "user", "identifier", "subject", "dataType", "encrypted", "suffix", "errorType", "errorDetails"},
	}

	// QAChecklistSchema tracks identifiers awaiting reviewer sign-off
	QAChecklistSchema = Schema{
		Name:    "qa-checklist",
		Columns: []string{"datetime", "user", "identifier", "deviationString", "subject", "dataType", "encrypted", "suffix", "qa", "localMove"},
	}
)

// Validate checks every row against the schema's required columns.
func Validate(rows []map[string]string, schema Schema) error {
	for i, row := range rows {
		for _, col := range schema.Columns {
			if _, ok := row[col]; !ok {
				return fmt.Errorf("%w: %s row %d missing column %q", ErrSchemaViolation, schema.Name, i, col)
			}
		}
	}
	return nil
}

// project reduces a row to the schema's columns, in schema order.
func project(row map[string]string, schema Schema) []string {
	out := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		out[i] = row[col]
	}
	return out
}
