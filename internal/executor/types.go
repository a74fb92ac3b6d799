// Package executor applies a decided, previewed batch to disk in
// dependency order, backing up every touched file before mutation so the
// rollback planner (C9) can undo it (C8).
package executor

import "github.com/nerdcore/filecore/internal/parser"

// ProgressEvent is emitted on the channel returned by Execute as each
// operation starts and finishes.
type ProgressEvent struct {
	Index     int    `json:"index"`
	Operation string `json:"operation"` // human-readable description
	Phase     Phase  `json:"phase"`
	Error     string `json:"error,omitempty"`
}

// Phase tags a ProgressEvent's position in an operation's lifecycle.
type Phase int

const (
	PhaseStarted Phase = iota
	PhaseBackedUp
	PhaseWritten
	PhaseValidated
	PhaseCompleted
	PhaseFailed
)

// OperationResult is the outcome of executing a single operation.
type OperationResult struct {
	Index     int                   `json:"index"`
	Operation parser.FileOperation  `json:"operation"`
	Succeeded bool                  `json:"succeeded"`
	Error     string                `json:"error,omitempty"`
	Backup    *BackupRecord         `json:"backup,omitempty"`
}

// BackupRecord is where an operation's pre-mutation snapshot was written.
type BackupRecord struct {
	Path       string `json:"path"`
	BackupPath string `json:"backup_path"`
	Existed    bool   `json:"existed"`
}

// BatchResult is the aggregate outcome of an Execute call.
type BatchResult struct {
	Results      []OperationResult `json:"results"`
	StoppedEarly bool              `json:"stopped_early"`
	Cancelled    bool              `json:"cancelled"`
	RolledBack   bool              `json:"rolled_back"`
}

// Succeeded reports whether every operation in the batch completed
// without error and the batch was not cancelled partway through.
func (b BatchResult) Succeeded() bool {
	if b.Cancelled {
		return false
	}
	for _, r := range b.Results {
		if !r.Succeeded {
			return false
		}
	}
	return true
}
