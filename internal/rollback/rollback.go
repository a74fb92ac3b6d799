package rollback

import (
	"os"
	"path/filepath"
	"time"

	"github.com/nerdcore/filecore/internal/logging"
)

// Executor applies a Plan's steps against a workspace.
type Executor struct {
	workspaceRoot string
}

// NewExecutor constructs a rollback Executor rooted at workspaceRoot.
func NewExecutor(workspaceRoot string) *Executor {
	return &Executor{workspaceRoot: workspaceRoot}
}

// Execute applies every step in plan, retrying transient failures up to
// each step's MaxRetries with RetryDelayMS between attempts, and verifies
// each restore by re-reading the file afterward.
func (e *Executor) Execute(plan Plan) PlanResult {
	timer := logging.StartTimer(logging.CategoryRollback, "Execute")
	defer timer.Stop()

	var result PlanResult
	result.FullyRolledBack = len(plan.NonRollbackable) == 0

	for _, step := range plan.Steps {
		sr := e.executeStep(step)
		result.Steps = append(result.Steps, sr)
		if !sr.Succeeded {
			result.FullyRolledBack = false
		}
	}
	return result
}

func (e *Executor) executeStep(step Step) StepResult {
	attempts := 0
	maxAttempts := step.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempts < maxAttempts {
		attempts++
		if err := e.applyStep(step); err != nil {
			lastErr = err
			logging.RollbackDebug("rollback step %d attempt %d failed: %v", step.Index, attempts, err)
			time.Sleep(time.Duration(step.RetryDelayMS) * time.Millisecond)
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return StepResult{Index: step.Index, Succeeded: false, Attempts: attempts, Error: lastErr.Error()}
	}

	verified := e.verifyStep(step)
	return StepResult{Index: step.Index, Succeeded: true, Attempts: attempts, Verified: verified}
}

func (e *Executor) applyStep(step Step) error {
	absPath := filepath.Join(e.workspaceRoot, step.Operation.Path)

	switch step.Strategy {
	case StrategyVCSRevert:
		return gitRevert(e.workspaceRoot, step.Operation.Path, 10*time.Second)

	case StrategyBackupRestore, StrategyHybrid:
		if err := e.restoreFromBackup(absPath, step); err == nil {
			return nil
		} else if step.Strategy == StrategyHybrid {
			logging.RollbackDebug("backup restore failed for %s, falling back to git revert: %v", step.Operation.Path, err)
			return gitRevert(e.workspaceRoot, step.Operation.Path, 10*time.Second)
		} else {
			return err
		}

	case StrategyInverseOp:
		return e.applyInverse(absPath, step)

	default:
		return nil
	}
}

func (e *Executor) restoreFromBackup(absPath string, step Step) error {
	if !step.BackupExisted {
		return os.Remove(absPath)
	}
	data, err := os.ReadFile(step.BackupPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(absPath, data, 0644)
}

func (e *Executor) applyInverse(absPath string, step Step) error {
	switch step.Operation.Kind.String() {
	case "CREATE":
		return os.Remove(absPath)
	case "RENAME":
		destAbs := filepath.Join(e.workspaceRoot, step.Operation.NewPath)
		return os.Rename(destAbs, absPath)
	default:
		return e.restoreFromBackup(absPath, step)
	}
}

func (e *Executor) verifyStep(step Step) bool {
	absPath := filepath.Join(e.workspaceRoot, step.Operation.Path)
	_, err := os.Stat(absPath)
	exists := err == nil

	if step.Strategy == StrategyBackupRestore || step.Strategy == StrategyHybrid {
		return exists == step.BackupExisted
	}
	return true
}
