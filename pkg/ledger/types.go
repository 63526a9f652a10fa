// Package ledger implements the flat tabular stores shared by the pipeline
// stages: the file record, the pending ledgers and the QA checklist.
package ledger

import (
	"strconv"
)

// Non-fatal error taxonomy. These values appear verbatim in the errorType
// column of the pending ledgers.
const (
	ErrorMissingIdentifier      = "Missing identifier"
	ErrorImproperStructure      = "Improper directory structure"
	ErrorEmptyFile              = "Empty file"
	ErrorNaming                 = "Naming error"
	ErrorIssueFile              = "Issue file"
	ErrorImproperFileName       = "Improper file name"
	ErrorMisplacedFile          = "Misplaced file"
	ErrorImproperExceptionFiles = "Improper exception files"
	ErrorMissingFile            = "Missing file"
	ErrorUnexpectedFile         = "Unexpected file"
	ErrorEEG                    = "EEG error"
	ErrorPsychopy               = "Psychopy error"
	ErrorCombinationVariable    = "Combination variable error"
)

// Record is one validation outcome. A record with PassRaw true carries no
// error fields; an error record carries both; a no-data outcome carries
// neither PassRaw nor an errorType.
type Record struct {
	DateTime     string
	User         string
	Identifier   string
	Subject      string
	DataType     string
	Encrypted    bool
	Suffix       string
	PassRaw      bool
	ErrorType    string
	ErrorDetails string
}

// ChecklistRow is one QA checklist entry: one per (identifier, deviation
// string) awaiting human review.
type ChecklistRow struct {
	DateTime        string
	User            string
	Identifier      string
	DeviationString string
	Subject         string
	DataType        string
	Encrypted       bool
	Suffix          string
	QA              bool
	LocalMove       bool
}

func (r Record) toRow() map[string]string {
	return map[string]string{
		"datetime":     r.DateTime,
		"user":         r.User,
		"identifier":   r.Identifier,
		"subject":      r.Subject,
		"dataType":     r.DataType,
		"encrypted":    strconv.FormatBool(r.Encrypted),
		"suffix":       r.Suffix,
		"passRaw":      strconv.FormatBool(r.PassRaw),
		"errorType":    r.ErrorType,
		"errorDetails": r.ErrorDetails,
	}
}

func (r ChecklistRow) toRow() map[string]string {
	return map[string]string{
		"datetime":        r.DateTime,
		"user":            r.User,
		"identifier":      r.Identifier,
		"deviationString": r.DeviationString,
		"subject":         r.Subject,
		"dataType":        r.DataType,
		"encrypted":       strconv.FormatBool(r.Encrypted),
		"suffix":          r.Suffix,
		"qa":              strconv.FormatBool(r.QA),
		"localMove":       strconv.FormatBool(r.LocalMove),
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func recordFromRow(row map[string]string) Record {
	return Record{
		DateTime:     row["datetime"],
		User:         row["user"],
		Identifier:   row["identifier"],
		Subject:      row["subject"],
		DataType:     row["dataType"],
		Encrypted:    parseBool(row["encrypted"]),
		Suffix:       row["suffix"],
		PassRaw:      parseBool(row["passRaw"]),
		ErrorType:    row["errorType"],
		ErrorDetails: row["errorDetails"],
	}
}

func checklistRowFromRow(row map[string]string) ChecklistRow {
	return ChecklistRow{
		DateTime:        row["datetime"],
		User:            row["user"],
		Identifier:      row["identifier"],
		DeviationString: row["deviationString"],
		Subject:         row["subject"],
		DataType:        row["dataType"],
		Encrypted:       parseBool(row["encrypted"]),
		Suffix:          row["suffix"],
		QA:              parseBool(row["qa"]),
		LocalMove:       parseBool(row["localMove"]),
	}
}
