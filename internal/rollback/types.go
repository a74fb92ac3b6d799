// Package rollback plans and executes the undo of a completed or
// partially-completed batch (C9): restore from backup, invoke git, replay
// inverse operations, or a hybrid of the three, depending on what each
// operation allows.
package rollback

import "github.com/nerdcore/filecore/internal/parser"

// Strategy is the mechanism chosen to undo one operation.
type Strategy int

const (
	StrategyBackupRestore Strategy = iota
	StrategyVCSRevert
	StrategyInverseOp
	StrategyHybrid
)

func (s Strategy) String() string {
	switch s {
	case StrategyBackupRestore:
		return "backup_restore"
	case StrategyVCSRevert:
		return "vcs_revert"
	case StrategyInverseOp:
		return "inverse_op"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Step is one action in a RollbackPlan.
type Step struct {
	Index       int                  `json:"index"` // index into the original batch
	Operation   parser.FileOperation `json:"operation"`
	Strategy    Strategy             `json:"strategy"`
	BackupPath  string               `json:"backup_path,omitempty"`
	BackupExisted bool               `json:"backup_existed"`
	MaxRetries  int                  `json:"max_retries"`
	RetryDelayMS int                 `json:"retry_delay_ms"`
}

// Plan is the ordered set of steps to undo a batch (reverse execution
// order of the original dependency-ordered run).
type Plan struct {
	ID              string                 `json:"id"`
	Steps           []Step                 `json:"steps"`
	NonRollbackable []NonRollbackableEntry `json:"non_rollbackable,omitempty"`
}

// NonRollbackableEntry records an operation the planner could not produce
// any undo strategy for (e.g. a delete with no captured backup).
type NonRollbackableEntry struct {
	Index          int    `json:"index"`
	Path           string `json:"path"`
	Reason         string `json:"reason"`
	MitigationHint string `json:"mitigation_hint,omitempty"`
}

// StepResult is the outcome of executing one rollback step.
type StepResult struct {
	Index     int    `json:"index"`
	Succeeded bool   `json:"succeeded"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
	Verified  bool   `json:"verified"`
}

// PlanResult is the aggregate outcome of executing a Plan.
type PlanResult struct {
	Steps      []StepResult `json:"steps"`
	FullyRolledBack bool    `json:"fully_rolled_back"`
}
