// Package core wires the ten filecore components (C1-C10) into a single
// request/response facade: Process parses a consensus response, scores and
// decides on it, and Execute/Rollback carry out or undo the resulting
// batch. Each component's state (weights, caches, the history handle) is
// encapsulated on Core rather than held as package-level singletons, so a
// process can run more than one independent Core concurrently (§9 design
// notes).
package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nerdcore/filecore/internal/analyzer"
	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/executor"
	"github.com/nerdcore/filecore/internal/history"
	"github.com/nerdcore/filecore/internal/learning"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/preview"
	"github.com/nerdcore/filecore/internal/rollback"
	"github.com/nerdcore/filecore/internal/scoring"
	"github.com/nerdcore/filecore/internal/validate"
)

// Core owns the long-lived state behind one workspace's C1-C10 pipeline.
type Core struct {
	cfg       *config.Config
	workspace string

	ensemble  *analyzer.Ensemble
	scoringEn *scoring.Engine
	decisionEn *decision.Engine
	validator *validate.Validator
	exec      *executor.Executor
	store     *history.Store
	loop      *learning.Loop

	customRules []decision.CustomRule
}

// Result is everything Process produces for one consensus response: the
// parsed batch, its preview, score, decision, and the history record id it
// was persisted under.
type Result struct {
	Parsed   *parser.ParseResult
	Report   validate.Report
	Preview  preview.BatchPreview
	Score    scoring.UnifiedScore
	Decision decision.ExecutionDecision
	RecordID int64
}

// New builds a Core for workspace, opening its history store and loading
// any previously persisted learning weights.
func New(cfg *config.Config, workspace string) (*Core, error) {
	validator, err := validate.NewValidator(workspace)
	if err != nil {
		return nil, fmt.Errorf("core: failed to build validator: %w", err)
	}

	store, err := history.Open(historyPath(workspace))
	if err != nil {
		validator.Close()
		return nil, fmt.Errorf("core: failed to open history store: %w", err)
	}

	weightsDir := weightsDir(workspace)
	loop, err := learning.NewLoop(learning.Config{
		Interval:            cfg.Learning.GetInterval(),
		AutoApply:           cfg.Learning.AutoApply,
		MaxWeightAdjustment: cfg.Learning.MaxWeightAdjustment,
		SignificanceZ:       cfg.Learning.SignificanceZ,
		MinHeldOutSamples:   cfg.Learning.MinHeldOutSamples,
		WeightsDir:          weightsDir,
	}, store)
	if err != nil {
		store.Close()
		validator.Close()
		return nil, fmt.Errorf("core: failed to build learning loop: %w", err)
	}

	weights := loop.CurrentWeights()

	rules := make([]decision.CustomRule, 0, len(cfg.CustomRules))
	for _, r := range cfg.CustomRules {
		rules = append(rules, decision.CustomRule{Pattern: r.Pattern, Action: parseRuleAction(r.Action)})
	}

	c := &Core{
		cfg:        cfg,
		workspace:  workspace,
		ensemble:   analyzer.NewEnsemble(),
		scoringEn:  scoring.NewEngine(weights),
		decisionEn: decision.NewEngine(),
		validator:  validator,
		exec: executor.New(executor.Config{
			WorkspaceRoot:     workspace,
			StopOnError:       cfg.Execution.StopOnError,
			PostOpSyntaxCheck: cfg.Execution.PostOpSyntaxCheck,
		}),
		store:       store,
		loop:        loop,
		customRules: rules,
	}

	// Wire C10's sole weight-writer back into C3's live scorer: an
	// auto-applied tick must invalidate the scoring cache, not just
	// persist weights.json, or a running StartLearningLoop never changes
	// what Process actually scores with (§5/§8 cache-coherence invariant).
	loop.SetOnApply(c.scoringEn.SetWeights)

	logging.Boot("core initialized for workspace %s (mode=%s)", workspace, cfg.Mode)
	return c, nil
}

// Close releases the store, validator, and any file handles held by Core.
func (c *Core) Close() {
	c.exec.Close()
	c.validator.Close()
	c.store.Close()
}

// Statistics returns the history store's aggregate outcome counts (C4).
func (c *Core) Statistics() (history.Statistics, error) {
	return c.store.Statistics()
}

// Weights returns the learning loop's current scoring weight vector (C10).
func (c *Core) Weights() scoring.Weights {
	return c.loop.CurrentWeights()
}

// StartLearningLoop runs the C10 ticker loop until ctx is cancelled.
func (c *Core) StartLearningLoop(ctx context.Context) {
	go c.loop.Start(ctx)
}

// StopLearningLoop halts a loop started by StartLearningLoop.
func (c *Core) StopLearningLoop() {
	c.loop.Stop()
}

// Process runs a consensus response through C1 (parse), C2 (analyze), C3
// (score), C6 (preview), C7 (validate), and C5 (decide), persisting the
// outcome to history (C4) and returning everything the caller needs to act
// on the batch.
func (c *Core) Process(ctx context.Context, opctx parser.OperationContext) (*Result, error) {
	parsed, err := parser.Parse(opctx.ConsensusResponse, opctx)
	if err != nil {
		return nil, fmt.Errorf("core: parse failed: %w", err)
	}

	factors := c.scoringFactors(parsed.Operations)
	componentScores := c.ensemble.Run(ctx, parsed.Operations, opctx, factors)
	score := c.scoringEn.Score(parsed.Operations, opctx, componentScores, factors)

	bp := preview.NewGenerator(c.workspace).Generate(parsed.Operations)

	report := c.validator.Validate(ctx, parsed.Operations, c.cfg.CoreLimits, c.cfg.Execution.ForbiddenPathPatterns)

	mode := decision.ParseMode(c.cfg.Mode)
	prefs := decision.Preferences{
		ConfirmMassUpdates:  c.cfg.Preferences.ConfirmMassUpdates,
		MassUpdateThreshold: c.cfg.Preferences.MassUpdateThreshold,
		StrictValidation:    c.cfg.Preferences.StrictValidation,
	}

	dec := c.decisionEn.Decide(parsed.Operations, opctx, score, mode, prefs, c.customRules, c.store, report.SecurityViolation)

	recordID, err := c.store.Insert(parsed.Operations, fingerprintContext(opctx), score, dec)
	if err != nil {
		logging.Get(logging.CategoryBoot).Error("core: failed to persist history record: %v", err)
	}

	return &Result{
		Parsed:   parsed,
		Report:   report,
		Preview:  bp,
		Score:    score,
		Decision: dec,
		RecordID: recordID,
	}, nil
}

// Execute carries out a previously decided batch (C8), recording the
// outcome against its history record (C4). If ctx is cancelled partway
// through, Execute rolls back whatever operations had already completed
// (C9) before recording a Cancelled outcome, per §5's "trigger rollback
// if any mutation has occurred" requirement.
func (c *Core) Execute(ctx context.Context, recordID int64, ops []parser.OperationWithMetadata, dryRun bool) (*executor.BatchResult, <-chan executor.ProgressEvent) {
	result, upstream := c.exec.Execute(ctx, ops, dryRun)
	downstream := make(chan executor.ProgressEvent, cap(upstream))
	go func() {
		defer close(downstream)
		for ev := range upstream {
			downstream <- ev
		}
		if result.Cancelled {
			c.recordCancellation(recordID, result)
			return
		}
		c.recordOutcome(recordID, result)
	}()
	return result, downstream
}

func (c *Core) recordOutcome(recordID int64, result *executor.BatchResult) {
	if recordID == 0 {
		return
	}
	outcome := history.Outcome{Succeeded: result.Succeeded()}
	for _, r := range result.Results {
		if r.Error != "" && !outcome.Succeeded {
			outcome.Error = r.Error
		}
		if r.Backup != nil {
			if _, err := c.store.RecordBackup(recordID, r.Operation.Path, r.Backup.BackupPath, r.Backup.Existed); err != nil {
				logging.HistoryError("core: failed to persist backup for record %d: %v", recordID, err)
			}
		}
	}
	if err := c.store.UpdateOutcome(recordID, outcome); err != nil {
		logging.HistoryError("core: failed to update outcome for record %d: %v", recordID, err)
	}
}

// recordCancellation persists any backups the cancelled run produced, rolls
// back the operations that did complete, using a fresh context since ctx is
// already done, and records the batch as Cancelled (RolledBack reflecting
// whether the undo fully succeeded).
func (c *Core) recordCancellation(recordID int64, result *executor.BatchResult) {
	for _, r := range result.Results {
		if recordID != 0 && r.Backup != nil {
			if _, err := c.store.RecordBackup(recordID, r.Operation.Path, r.Backup.BackupPath, r.Backup.Existed); err != nil {
				logging.HistoryError("core: failed to persist backup for record %d: %v", recordID, err)
			}
		}
	}

	rolledBack := true
	if hasCompletedOp(result.Results) {
		_, planResult := c.Rollback(context.Background(), 0, result.Results)
		rolledBack = planResult.FullyRolledBack
	}

	if recordID == 0 {
		return
	}
	outcome := history.Outcome{Succeeded: false, Cancelled: true, RolledBack: rolledBack}
	if err := c.store.UpdateOutcome(recordID, outcome); err != nil {
		logging.HistoryError("core: failed to update cancelled outcome for record %d: %v", recordID, err)
	}
}

func hasCompletedOp(results []executor.OperationResult) bool {
	for _, r := range results {
		if r.Succeeded {
			return true
		}
	}
	return false
}

// Rollback builds and executes an undo plan (C9) for a prior batch result.
// It returns the Plan alongside its PlanResult so a caller can surface
// mitigation hints for operations the planner could not undo.
func (c *Core) Rollback(ctx context.Context, recordID int64, results []executor.OperationResult) (rollback.Plan, rollback.PlanResult) {
	vcsAvailable := rollback.VCSAvailable(ctx, c.workspace)
	plan := rollback.Build(results, vcsAvailable, c.cfg.CoreLimits.MaxRollbackRetries)
	planResult := rollback.NewExecutor(c.workspace).Execute(plan)

	if recordID != 0 {
		status := history.Outcome{Succeeded: false, RolledBack: planResult.FullyRolledBack}
		if err := c.store.UpdateOutcome(recordID, status); err != nil {
			logging.HistoryError("core: failed to record rollback outcome for %d: %v", recordID, err)
		}
	}
	return plan, planResult
}

// RollbackRecord reconstructs an undo plan for a previously persisted and
// already-completed batch, using the backups history recorded for it at
// execution time, and executes it. Unlike Rollback (called immediately
// after a failed Execute, with live OperationResults in hand), this is the
// path for "undo a batch from an earlier process invocation."
func (c *Core) RollbackRecord(ctx context.Context, recordID int64) (rollback.Plan, rollback.PlanResult, error) {
	rec, err := c.store.Get(recordID)
	if err != nil {
		return rollback.Plan{}, rollback.PlanResult{}, fmt.Errorf("core: failed to load record %d: %w", recordID, err)
	}

	backups, err := c.store.BackupsFor(recordID)
	if err != nil {
		return rollback.Plan{}, rollback.PlanResult{}, fmt.Errorf("core: failed to load backups for record %d: %w", recordID, err)
	}
	byPath := make(map[string]history.BackupInfo, len(backups))
	for _, b := range backups {
		byPath[b.Path] = b
	}

	results := make([]executor.OperationResult, len(rec.Operations))
	for i, opm := range rec.Operations {
		op := opm.Operation
		res := executor.OperationResult{Index: i, Operation: op, Succeeded: true}
		if b, ok := byPath[op.Path]; ok {
			res.Backup = &executor.BackupRecord{Path: b.Path, BackupPath: b.BackupPath, Existed: b.Existed}
		}
		results[i] = res
	}

	plan, planResult := c.Rollback(ctx, recordID, results)
	return plan, planResult, nil
}

func (c *Core) scoringFactors(ops []parser.OperationWithMetadata) scoring.ScoringFactors {
	rate, hasData := c.store.SimilarSuccessRate(ops)
	if !hasData {
		rate = 0.5
	}
	stats, err := c.store.Statistics()
	similarCount := 0
	if err == nil {
		similarCount = stats.TotalRecords
	}
	return scoring.ScoringFactors{
		HistoricalSuccessRate: rate,
		SimilarOpsCount:       similarCount,
		UserTrust:             0.5,
	}
}

func parseRuleAction(s string) decision.RuleAction {
	switch s {
	case "always_auto_execute":
		return decision.AlwaysAutoExecute
	case "always_confirm":
		return decision.AlwaysConfirm
	case "always_block":
		return decision.AlwaysBlock
	case "require_backup":
		return decision.RequireBackup
	default:
		return decision.AlwaysConfirm
	}
}

func fingerprintContext(opctx parser.OperationContext) string {
	return opctx.RepositoryPath + "|" + opctx.SessionID
}

func historyPath(workspace string) string {
	return filepath.Join(workspace, ".filecore", "history.db")
}

func weightsDir(workspace string) string {
	return filepath.Join(workspace, ".filecore")
}
