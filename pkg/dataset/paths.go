// Package dataset defines the fixed directory convention, the monitor
// configuration and the per-invocation run context.
package dataset

import "path/filepath"

// Paths resolves the fixed directory convention under one dataset root.
type Paths struct {
	Root string
}

// SourceData is the parent of the raw, checked and pending-qa trees.
func (p Paths) SourceData() string { return filepath.Join(p.Root, "sourcedata") }

// Raw is the unreviewed acquisition tree (session_run/datatype/subject).
func (p Paths) Raw() string { return filepath.Join(p.SourceData(), "raw") }

// Checked is the accepted tree (subject/session_run/datatype).
func (p Paths) Checked() string { return filepath.Join(p.SourceData(), "checked") }

// PendingQA is the QA staging tree, mirroring raw layout.
func (p Paths) PendingQA() string { return filepath.Join(p.SourceData(), "pending-qa") }

// DataMonitoring is the pipeline bookkeeping directory.
func (p Paths) DataMonitoring() string { return filepath.Join(p.Root, "data-monitoring") }

// Pending holds the timestamped pending-files and pending-errors ledgers.
func (p Paths) Pending() string { return filepath.Join(p.DataMonitoring(), "pending") }

// Logs holds human-readable run reports.
func (p Paths) Logs() string { return filepath.Join(p.DataMonitoring(), "logs") }

// DataDictionary holds the reference table and its drift snapshot.
func (p Paths) DataDictionary() string { return filepath.Join(p.DataMonitoring(), "data-dictionary") }

// DictionaryFile is the data dictionary CSV.
func (p Paths) DictionaryFile() string { return filepath.Join(p.DataDictionary(), "datadict.csv") }

// DictionarySnapshot is the copy of the dictionary recorded at the last
// accepted run, compared for drift on every invocation.
func (p Paths) DictionarySnapshot() string {
	return filepath.Join(p.DataDictionary(), "datadict-latest.csv")
}

// FileRecord is the durable accepted-set ledger.
func (p Paths) FileRecord() string {
	return filepath.Join(p.DataMonitoring(), "validated-file-record.csv")
}

// QAChecklist is the reviewer sign-off table inside the staging tree.
func (p Paths) QAChecklist() string {
	return filepath.Join(p.PendingQA(), "qa-checklist.csv")
}

// CentralTracker is the merged per-subject table for the dataset.
func (p Paths) CentralTracker(datasetName string) string {
	return filepath.Join(p.DataMonitoring(), "central-tracker_"+datasetName+".csv")
}

// CentralTrackerViewable is the human-readable tracker copy.
func (p Paths) CentralTrackerViewable(datasetName string) string {
	return filepath.Join(p.DataMonitoring(), "central-tracker_"+datasetName+"_viewable.csv")
}

// MonitorConfig is the optional monitor.yaml location.
func (p Paths) MonitorConfig() string {
	return filepath.Join(p.DataMonitoring(), "monitor.yaml")
}
