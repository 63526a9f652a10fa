// Package report renders the human-readable per-run summary written into
// data-monitoring/logs.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/openlabtools/datamon/pkg/dataset"
	"github.com/openlabtools/datamon/pkg/ledger"
)

const summaryTemplate = `datamon run {{ .RunID }}
dataset:   {{ .DatasetName }}
started:   {{ .Started }}
user:      {{ .User }}

raw outcomes: {{ .Passes }} passed, {{ .Errors }} errored
{{- if .ErrorCounts }}

errors by type:
{{- range .ErrorCounts }}
  {{ .Type | trim }}: {{ .Count }}
{{- end }}
{{- end }}
{{- if .Promoted }}

promoted identifiers:
{{- range .Promoted }}
  {{ . }}
{{- end }}
{{- end }}
`

// Summary is the data rendered into one run report.
type Summary struct {
	RunID       string
	DatasetName string
	Started     string
	User        string
	Passes      int
	Errors      int
	ErrorCounts []ErrorCount
	Promoted    []string
}

// ErrorCount is one error-type tally.
type ErrorCount struct {
	Type  string
	Count int
}

// Renderer writes run summaries using Sprig template functions.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a report renderer.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("report").Funcs(sprig.TxtFuncMap()).Parse(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Summarize tallies a run's outcome records into a Summary.
func Summarize(run *dataset.Run, records []ledger.Record, promoted []string) Summary {
	s := Summary{
		RunID:       run.ID,
		DatasetName: run.Config.DatasetName,
		Started:     run.RowStamp(),
		User:        run.User,
		Promoted:    promoted,
	}

	counts := make(map[string]int)
	for _, rec := range records {
		if rec.ErrorType == "" && rec.PassRaw {
			s.Passes++
			continue
		}
		if rec.ErrorType != "" {
			s.Errors++
			counts[rec.ErrorType]++
		}
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		s.ErrorCounts = append(s.ErrorCounts, ErrorCount{Type: t, Count: counts[t]})
	}

	return s
}

// Render renders a summary to text.
func (r *Renderer) Render(s Summary) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to execute report template: %w", err)
	}
	return buf.String(), nil
}

// Write renders a summary into the dataset's logs directory.
func (r *Renderer) Write(run *dataset.Run, s Summary) error {
	text, err := r.Render(s)
	if err != nil {
		return err
	}

	dir := run.Paths.Logs()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "report-"+run.FileStamp()+".txt"), []byte(text), 0o644) //nolint:gosec // Human-readable report
}
