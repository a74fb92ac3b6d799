// Package history persists scored-and-decided batches to SQLite and serves
// similar-batch lookups for the decision engine's historical veto and the
// learning loop's held-out evaluation (C4).
package history

import (
	"time"

	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// Outcome is the eventually-known result of an executed (or rolled back)
// batch. Nil until the executor reports back.
type Outcome struct {
	Succeeded  bool   `json:"succeeded"`
	Error      string `json:"error,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
	RolledBack bool   `json:"rolled_back"`
	DurationMS int64  `json:"duration_ms"`
}

// Record is one row of batch history.
type Record struct {
	ID                 int64                         `json:"id"`
	Operations         []parser.OperationWithMetadata `json:"operations"`
	ContextFingerprint string                        `json:"context_fingerprint"`
	Analysis           scoring.UnifiedScore          `json:"analysis"`
	Decision           decision.ExecutionDecision    `json:"decision"`
	Outcome            *Outcome                      `json:"outcome,omitempty"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

// BackupInfo records where a pre-execution snapshot of a file was stored,
// so the rollback planner (C9) can restore it without recomputation.
type BackupInfo struct {
	ID         int64     `json:"id"`
	RecordID   int64     `json:"record_id"`
	Path       string    `json:"path"`
	BackupPath string    `json:"backup_path"`
	Existed    bool      `json:"existed"` // false => backup represents "file did not exist"
	CreatedAt  time.Time `json:"created_at"`
}

// Statistics summarizes history for reporting and the learning loop.
type Statistics struct {
	TotalRecords     int64   `json:"total_records"`
	SucceededCount   int64   `json:"succeeded_count"`
	FailedCount      int64   `json:"failed_count"`
	RolledBackCount  int64   `json:"rolled_back_count"`
	AutoExecuteCount int64   `json:"auto_execute_count"`
	SuccessRate      float64 `json:"success_rate"`
}
