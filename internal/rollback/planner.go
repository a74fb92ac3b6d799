package rollback

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nerdcore/filecore/internal/executor"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
)

// Plan builds an undo plan from the executor's per-operation results, in
// reverse execution order (results[i] was applied after results[i-1], so
// undoing walks backwards). Each step's strategy is chosen from what the
// operation's backup record allows; an operation with no viable undo path
// becomes a NonRollbackable entry instead of a Step.
func Build(results []executor.OperationResult, vcsAvailable bool, maxRetries int) Plan {
	timer := logging.StartTimer(logging.CategoryRollback, "Build")
	defer timer.Stop()

	plan := Plan{ID: uuid.NewString()}
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if !r.Succeeded {
			// An operation that never completed needs no undo.
			continue
		}

		step, nonRollbackable := planStep(r, vcsAvailable, maxRetries)
		if nonRollbackable != nil {
			plan.NonRollbackable = append(plan.NonRollbackable, *nonRollbackable)
			continue
		}
		plan.Steps = append(plan.Steps, *step)
	}
	return plan
}

func planStep(r executor.OperationResult, vcsAvailable bool, maxRetries int) (*Step, *NonRollbackableEntry) {
	op := r.Operation

	// A rename's backup record only ever covers its source path — restoring
	// it would leave the destination file in place too. Undo the move
	// directly instead of restoring content.
	if op.Kind == parser.OpRename {
		return &Step{
			Index:        r.Index,
			Operation:    op,
			Strategy:     StrategyInverseOp,
			MaxRetries:   maxRetries,
			RetryDelayMS: 200,
		}, nil
	}

	if r.Backup == nil {
		if vcsAvailable {
			return &Step{Index: r.Index, Operation: op, Strategy: StrategyVCSRevert, MaxRetries: maxRetries, RetryDelayMS: 200}, nil
		}
		entry := NonRollbackableEntry{
			Index:  r.Index,
			Path:   op.Path,
			Reason: "no backup captured and no VCS available to revert from",
		}
		entry.MitigationHint = mitigationHint(entry, entry.Reason)
		return nil, &entry
	}

	strategy := StrategyBackupRestore
	if vcsAvailable {
		strategy = StrategyHybrid
	}

	return &Step{
		Index:         r.Index,
		Operation:     op,
		Strategy:      strategy,
		BackupPath:    r.Backup.BackupPath,
		BackupExisted: r.Backup.Existed,
		MaxRetries:    maxRetries,
		RetryDelayMS:  200,
	}, nil
}

func mitigationHint(entry NonRollbackableEntry, reason string) string {
	return fmt.Sprintf("%s: manually inspect %s and restore from your own backups or VCS history", reason, entry.Path)
}
