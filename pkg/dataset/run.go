package dataset

import (
	"os/user"
	"time"

	"github.com/google/uuid"
)

// Stamp layouts. The file stamp suffixes pending-files and pending-errors so
// one run's two ledgers can be correlated; the row stamp appears inside rows.
const (
	fileStampLayout = "2006-01-02_15-04"
	rowStampLayout  = "2006-01-02 15:04:05"
)

// Run is the per-invocation context. The timestamp is computed exactly once
// and reused for every ledger write in the invocation.
type Run struct {
	ID        string
	User      string
	Timestamp time.Time
	Config    *Config
	Paths     Paths
}

// NewRun creates the run context for one invocation.
func NewRun(root string, config *Config) *Run {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}

	return &Run{
		ID:        uuid.NewString(),
		User:      name,
		Timestamp: time.Now(),
		Config:    config,
		Paths:     Paths{Root: root},
	}
}

// FileStamp is the ledger filename suffix for this run.
func (r *Run) FileStamp() string {
	return r.Timestamp.Format(fileStampLayout)
}

// RowStamp is the datetime value written into ledger rows for this run.
func (r *Run) RowStamp() string {
	return r.Timestamp.Format(rowStampLayout)
}
