package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nerdcore/filecore/internal/langdetect"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/preview"
	"github.com/nerdcore/filecore/internal/validate"
)

// Executor applies operations to a workspace, backing each one up first.
// Grounded on the teacher's FileTransaction idiom (stage-a-backup before
// mutating, track creates separately so rollback can delete them) but
// generalized to the batch's own dependency order and to filecore's
// richer operation kinds.
type Executor struct {
	workspaceRoot string
	backupDir     string
	syntax        *validate.SyntaxChecker
	stopOnError   bool
	postOpSyntax  bool
}

// Config configures one Executor run.
type Config struct {
	WorkspaceRoot       string
	BackupDir           string // defaults to <workspace>/.filecore/backups
	StopOnError         bool
	PostOpSyntaxCheck   bool
}

// New constructs an Executor.
func New(cfg Config) *Executor {
	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(cfg.WorkspaceRoot, ".filecore", "backups")
	}
	return &Executor{
		workspaceRoot: cfg.WorkspaceRoot,
		backupDir:     backupDir,
		syntax:        validate.NewSyntaxChecker(),
		stopOnError:   cfg.StopOnError,
		postOpSyntax:  cfg.PostOpSyntaxCheck,
	}
}

// Close releases the executor's syntax checker.
func (e *Executor) Close() {
	e.syntax.Close()
}

// Execute runs ops in dependency order, emitting ProgressEvents on the
// returned channel (closed when Execute returns). dryRun skips all disk
// mutation but still walks order, backup bookkeeping, and emits events —
// used to preflight a batch the caller intends to execute for real later.
//
// The returned *BatchResult is mutated by a background goroutine as
// operations complete; it is only safe to read once the events channel is
// drained to closed, which happens-before every write to it.
func (e *Executor) Execute(ctx context.Context, ops []parser.OperationWithMetadata, dryRun bool) (*BatchResult, <-chan ProgressEvent) {
	events := make(chan ProgressEvent, len(ops)*4+1)

	order, err := preview.TopologicalOrder(ops)
	if err != nil {
		close(events)
		return &BatchResult{Results: []OperationResult{{Succeeded: false, Error: err.Error()}}, StoppedEarly: true}, events
	}

	result := &BatchResult{Results: make([]OperationResult, 0, len(order))}

	// One run id per Execute call (not per operation) so every backup this
	// batch creates lands under a distinct prefix — see backup() below.
	runID := time.Now().UnixNano()

	go func() {
		defer close(events)
		for _, idx := range order {
			select {
			case <-ctx.Done():
				result.StoppedEarly = true
				result.Cancelled = true
				logging.ExecutorError("cancelling batch before index %d: %v", idx, ctx.Err())
				return
			default:
			}

			op := ops[idx].Operation
			events <- ProgressEvent{Index: idx, Operation: describeOp(op), Phase: PhaseStarted}

			opResult := e.executeOne(ctx, idx, runID, op, dryRun, events)
			result.Results = append(result.Results, opResult)

			if !opResult.Succeeded && e.stopOnError {
				result.StoppedEarly = true
				logging.ExecutorError("stopping batch after failure at index %d: %s", idx, opResult.Error)
				return
			}
		}
	}()

	return result, events
}

func (e *Executor) executeOne(ctx context.Context, index int, runID int64, op parser.FileOperation, dryRun bool, events chan<- ProgressEvent) OperationResult {
	timer := logging.StartTimer(logging.CategoryExecutor, "executeOne")
	defer timer.Stop()

	absPath := filepath.Join(e.workspaceRoot, op.Path)

	backup, err := e.backup(absPath, op.Path, runID, index)
	if err != nil {
		events <- ProgressEvent{Index: index, Phase: PhaseFailed, Error: err.Error()}
		return OperationResult{Index: index, Operation: op, Succeeded: false, Error: fmt.Sprintf("backup failed: %v", err)}
	}
	events <- ProgressEvent{Index: index, Phase: PhaseBackedUp}

	if dryRun {
		events <- ProgressEvent{Index: index, Phase: PhaseCompleted}
		return OperationResult{Index: index, Operation: op, Succeeded: true, Backup: backup}
	}

	if err := e.apply(absPath, op); err != nil {
		events <- ProgressEvent{Index: index, Phase: PhaseFailed, Error: err.Error()}
		return OperationResult{Index: index, Operation: op, Succeeded: false, Error: err.Error(), Backup: backup}
	}
	events <- ProgressEvent{Index: index, Phase: PhaseWritten}

	if e.postOpSyntax && op.Kind != parser.OpDelete {
		if check := e.validateSyntax(ctx, op); check.Status == validate.StatusFail {
			events <- ProgressEvent{Index: index, Phase: PhaseFailed, Error: check.Message}
			return OperationResult{Index: index, Operation: op, Succeeded: false, Error: "post-write syntax check failed: " + check.Message, Backup: backup}
		}
	}
	events <- ProgressEvent{Index: index, Phase: PhaseValidated}

	events <- ProgressEvent{Index: index, Phase: PhaseCompleted}
	return OperationResult{Index: index, Operation: op, Succeeded: true, Backup: backup}
}

// backup snapshots the current file content (if any) to e.backupDir before
// mutation, so rollback can restore it regardless of strategy.
//
// The backup filename follows §6's "backups/<timestamp>_<basename>" layout:
// runID is the Execute call's start time (shared by every operation in the
// batch) and index is the operation's position within that batch, so two
// batches touching the same path — or two operations in one batch touching
// the same path — never collide and overwrite each other's captured
// content. hashPath(relPath) further disambiguates same-basename files
// from different directories. Without all three components, a later batch
// (or a later op in the same batch) silently clobbers an earlier batch's
// backup file, and RollbackRecord would restore the wrong bytes for any
// path mutated more than once.
func (e *Executor) backup(absPath, relPath string, runID int64, index int) (*BackupRecord, error) {
	if err := os.MkdirAll(e.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	content, err := os.ReadFile(absPath)
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read file for backup: %w", err)
	}

	basename := filepath.Base(relPath)
	backupPath := filepath.Join(e.backupDir, fmt.Sprintf("%d_%d_%s_%x.bak", runID, index, basename, hashPath(relPath)))
	if existed {
		if err := os.WriteFile(backupPath, content, 0644); err != nil {
			return nil, fmt.Errorf("failed to write backup: %w", err)
		}
	}

	return &BackupRecord{Path: relPath, BackupPath: backupPath, Existed: existed}, nil
}

// apply performs the operation's disk mutation atomically via a
// temp-file-then-rename for writes, grounded on the teacher's
// write-atomically-via-temp-file idiom (cmd/nerd/cmd_init_scan.go).
func (e *Executor) apply(absPath string, op parser.FileOperation) error {
	switch op.Kind {
	case parser.OpCreate, parser.OpUpdate:
		return atomicWrite(absPath, op.Content)
	case parser.OpAppend:
		existing, err := os.ReadFile(absPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read file for append: %w", err)
		}
		return atomicWrite(absPath, string(existing)+op.Content)
	case parser.OpDelete:
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	case parser.OpRename:
		destAbs := filepath.Join(e.workspaceRoot, op.NewPath)
		if err := os.MkdirAll(filepath.Dir(destAbs), 0755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
		if err := os.Rename(absPath, destAbs); err != nil {
			return fmt.Errorf("failed to rename file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported operation kind: %v", op.Kind)
	}
}

func atomicWrite(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".filecore-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

func (e *Executor) validateSyntax(ctx context.Context, op parser.FileOperation) validate.Check {
	lang := langdetect.Detect(op.Path)
	if !langdetect.HasTreeSitterGrammar(lang) && !langdetect.IsCurlyBrace(lang) {
		return validate.Check{Status: validate.StatusPass}
	}
	checks := e.syntax.Check(ctx, []parser.OperationWithMetadata{{Operation: op}})
	if len(checks) == 0 {
		return validate.Check{Status: validate.StatusPass}
	}
	return checks[0]
}

func describeOp(op parser.FileOperation) string {
	switch op.Kind {
	case parser.OpRename:
		return fmt.Sprintf("rename %s -> %s", op.Path, op.NewPath)
	default:
		return fmt.Sprintf("%s %s", op.Kind.String(), op.Path)
	}
}

func hashPath(path string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= prime64
	}
	return h
}
