package validator

import (
	"fmt"
	"strings"

	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
)

// checkNaming runs the per-file naming checks. Marker files are skipped and a
// bare issue.txt is flagged as its own error type. Failures are remembered
// for propagation to missing identifiers in the same directory.
func (v *Validator) checkNaming(s *listingState) {
	for _, f := range s.listing.Files {
		if s.isMarker(f.Name) {
			continue
		}
		if f.Name == "issue.txt" {
			s.records = append(s.records, v.rec.DirectoryError(f.Path, ledger.ErrorIssueFile,
				"issue file present, needs resolution"))
			continue
		}

		parts, err := identifier.ParseFilename(f.Name)
		if err != nil {
			s.records = append(s.records, v.rec.DirectoryError(f.Path, ledger.ErrorImproperFileName,
				fmt.Sprintf("file %s does not match the naming convention", f.Name)))
			s.propagate[ledger.ErrorImproperFileName] = fmt.Sprintf("misnamed file %s", f.Name)
			continue
		}
		if s.grand[parts.ID.Key()] {
			continue
		}

		for _, detail := range v.namingViolations(s, parts) {
			s.add(parts.ID, v.rec.Error(parts.ID, ledger.ErrorNaming, detail))
			s.propagate[ledger.ErrorNaming] = fmt.Sprintf("misnamed file %s", f.Name)
		}
	}
}

// namingViolations collects every content violation of one parsed filename.
func (v *Validator) namingViolations(s *listingState, parts identifier.FileParts) []string {
	var details []string
	id := parts.ID

	if n, err := id.SubjectNumber(); err != nil || !v.dict.SubjectAllowed(n) {
		details = append(details, fmt.Sprintf("subject %s outside allowed ranges", id.Subject))
	}

	row, ok := v.dict.Row(id.Variable)
	if !ok {
		details = append(details, fmt.Sprintf("variable %q not in data dictionary", id.Variable))
		return details
	}

	if !strings.Contains(id.Variable, row.DataType) {
		details = append(details, fmt.Sprintf("variable %q does not contain its data type %q", id.Variable, row.DataType))
	}

	if !contains(row.AllowedSuffixes, id.Suffix()) {
		details = append(details, fmt.Sprintf("suffix %s not allowed for variable %q", id.Suffix(), id.Variable))
	}

	if !contains(row.ExpectedFileExts, parts.Extension) && !isExceptionName(parts) {
		details = append(details, fmt.Sprintf("extension %s not allowed for variable %q", parts.Extension, id.Variable))
	}

	if parts.Info != "" && !isExceptionName(parts) && !s.hasDeviation(id.Key()) {
		details = append(details, fmt.Sprintf("info suffix _%s without a deviation marker", parts.Info))
	}

	return details
}

// isExceptionName reports whether a parsed filename is an identifier-prefixed
// exception marker, which is exempt from extension and info checks.
func isExceptionName(parts identifier.FileParts) bool {
	if parts.HasDeviation && parts.Info == "" && parts.Extension == ".txt" {
		return true
	}
	return parts.Info == "no-data" && parts.Extension == ".txt"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// checkMisplacement recomputes each correctly-named file's canonical
// directory from its own encoded identifier and flags files found elsewhere.
func (v *Validator) checkMisplacement(s *listingState) {
	for _, f := range s.listing.Files {
		if s.isMarker(f.Name) || f.Name == "issue.txt" {
			continue
		}
		parts, err := identifier.ParseFilename(f.Name)
		if err != nil {
			continue
		}
		if s.grand[parts.ID.Key()] {
			continue
		}

		want, err := parts.ID.Directory(v.root, s.listing.Mode, v.dict)
		if err != nil {
			continue // unknown variable already flagged by naming
		}
		if want != s.listing.Path {
			detail := fmt.Sprintf("file %s belongs in %s", f.Name, want)
			s.add(parts.ID, v.rec.Error(parts.ID, ledger.ErrorMisplacedFile, detail))
			s.propagate[ledger.ErrorMisplacedFile] = detail
		}
	}
}
