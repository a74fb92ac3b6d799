package decision

import (
	"regexp"
	"sync"

	"github.com/nerdcore/filecore/internal/fingerprint"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// modeThresholds is the §4.4 mode-specific threshold table.
type modeThresholds struct {
	autoConfidence float64
	autoRisk       float64
	blockRisk      float64
	blockConfidenceBelow float64
	neverAuto      bool
	alwaysConfirm  bool
}

var thresholds = map[AutoAcceptMode]modeThresholds{
	Conservative: {autoConfidence: 90, autoRisk: 15, blockRisk: 70},
	Balanced:     {autoConfidence: 80, autoRisk: 25, blockRisk: 60, blockConfidenceBelow: 40},
	Aggressive:   {autoConfidence: 70, autoRisk: 40, blockRisk: 80},
	PlanOnly:     {neverAuto: true, alwaysConfirm: true},
	Manual:       {neverAuto: true, alwaysConfirm: true},
}

type compiledRule struct {
	re     *regexp.Regexp
	action RuleAction
}

// Engine applies mode + preferences + custom rules to a scored batch,
// memoizing decisions by fingerprint + mode + preferences hash.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]ExecutionDecision
}

// NewEngine constructs a decision engine.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]ExecutionDecision)}
}

// InvalidateCache flushes the memoized decisions (§4.4: "cache is flushed
// on mode or preferences change").
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]ExecutionDecision)
}

// HistoryVetoer supplies the Balanced-mode historical-veto override without
// importing internal/history directly, avoiding an import cycle.
type HistoryVetoer interface {
	SimilarSuccessRate(ops []parser.OperationWithMetadata) (rate float64, hasData bool)
}

// Decide applies the decision gates in the spec's order: custom rules,
// dangerous-op override, mass-update override, historical veto, then mode
// thresholds.
func (e *Engine) Decide(
	ops []parser.OperationWithMetadata,
	opctx parser.OperationContext,
	score scoring.UnifiedScore,
	mode AutoAcceptMode,
	prefs Preferences,
	rules []CustomRule,
	history HistoryVetoer,
	securityViolation bool,
) ExecutionDecision {
	timer := logging.StartTimer(logging.CategoryDecision, "Decide")
	defer timer.Stop()

	key := cacheKey(ops, opctx, mode, prefs)
	e.mu.RLock()
	if cached, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return cached
	}
	e.mu.RUnlock()

	// Security absolute (§8 testable property): content matching the
	// credential regex set never auto-executes, regardless of mode or
	// custom rules.
	if securityViolation {
		decision := ExecutionDecision{
			Kind:           Block,
			Reason:         "security validator flagged this batch",
			Risk:           score.Risk,
			CriticalIssues: []string{"security violation detected in operation content"},
		}
		e.mu.Lock()
		e.cache[key] = decision
		e.mu.Unlock()
		return decision
	}

	decision := decide(ops, score, mode, prefs, rules, history)

	e.mu.Lock()
	e.cache[key] = decision
	e.mu.Unlock()

	return decision
}

func cacheKey(ops []parser.OperationWithMetadata, opctx parser.OperationContext, mode AutoAcceptMode, prefs Preferences) string {
	descriptors := make([]fingerprint.Descriptor, len(ops))
	for i, op := range ops {
		descriptors[i] = op.Operation
	}
	base := fingerprint.Batch(descriptors, opctx.RepositoryPath, opctx.UserQuestion)
	suffix := mode.String()
	if prefs.ConfirmMassUpdates {
		suffix += ":cmu"
	}
	if prefs.StrictValidation {
		suffix += ":strict"
	}
	return base + ":" + suffix
}

func decide(ops []parser.OperationWithMetadata, score scoring.UnifiedScore, mode AutoAcceptMode, prefs Preferences, rules []CustomRule, history HistoryVetoer) ExecutionDecision {
	// Gate 1: custom rules, first match wins.
	for _, op := range ops {
		for _, rule := range rules {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				continue
			}
			if !re.MatchString(op.Operation.Path) {
				continue
			}
			switch rule.Action {
			case AlwaysAutoExecute:
				return ExecutionDecision{Kind: AutoExecute, Reason: "custom rule matched: " + rule.Pattern, Confidence: score.Confidence, Risk: score.Risk}
			case AlwaysConfirm:
				return ExecutionDecision{Kind: RequireConfirmation, Reason: "custom rule matched: " + rule.Pattern, Confidence: score.Confidence, Risk: score.Risk, Suggestions: score.Suggestions}
			case AlwaysBlock:
				return ExecutionDecision{Kind: Block, Reason: "custom rule matched: " + rule.Pattern, Risk: score.Risk, CriticalIssues: []string{"blocked by custom rule " + rule.Pattern}}
			case RequireBackup:
				return ExecutionDecision{Kind: RequireConfirmation, Reason: "custom rule requires backup: " + rule.Pattern, Confidence: score.Confidence, Risk: score.Risk, ForceBackup: true, Suggestions: score.Suggestions}
			}
		}
	}

	// Gate 2: dangerous-op override (Conservative + any Delete).
	if mode == Conservative {
		for _, op := range ops {
			if op.Operation.Kind == parser.OpDelete {
				return ExecutionDecision{Kind: RequireConfirmation, Reason: "conservative mode requires confirmation for deletions", Confidence: score.Confidence, Risk: score.Risk, Warnings: []string{"batch contains deletions"}, Suggestions: score.Suggestions}
			}
		}
	}

	// Gate 3: mass-update override.
	if prefs.ConfirmMassUpdates && prefs.MassUpdateThreshold > 0 && len(ops) > prefs.MassUpdateThreshold {
		return ExecutionDecision{Kind: RequireConfirmation, Reason: "batch exceeds mass-update threshold", Confidence: score.Confidence, Risk: score.Risk, Warnings: []string{"large batch size"}, Suggestions: score.Suggestions}
	}

	// Gate 4: historical veto (Balanced only).
	if mode == Balanced && history != nil {
		if rate, hasData := history.SimilarSuccessRate(ops); hasData && rate < 0.7 {
			return ExecutionDecision{Kind: RequireConfirmation, Reason: "similar operations historically succeeded below 70%", Confidence: score.Confidence, Risk: score.Risk, Warnings: []string{"low historical success rate for similar operations"}, Suggestions: score.Suggestions}
		}
	}

	t := thresholds[mode]
	if t.neverAuto || t.alwaysConfirm {
		return ExecutionDecision{Kind: RequireConfirmation, Reason: mode.String() + " mode always requires confirmation", Confidence: score.Confidence, Risk: score.Risk, Suggestions: score.Suggestions}
	}

	if t.blockRisk > 0 && score.Risk > t.blockRisk {
		return ExecutionDecision{Kind: Block, Reason: "risk exceeds mode threshold", Risk: score.Risk, CriticalIssues: []string{"risk too high for " + mode.String() + " mode"}}
	}
	if t.blockConfidenceBelow > 0 && score.Confidence < t.blockConfidenceBelow {
		return ExecutionDecision{Kind: Block, Reason: "confidence below mode threshold", Risk: score.Risk, CriticalIssues: []string{"confidence too low for " + mode.String() + " mode"}}
	}

	if score.Confidence > t.autoConfidence && score.Risk < t.autoRisk {
		return ExecutionDecision{Kind: AutoExecute, Reason: "meets " + mode.String() + " auto-execute threshold", Confidence: score.Confidence, Risk: score.Risk}
	}

	return ExecutionDecision{Kind: RequireConfirmation, Reason: "does not meet auto-execute threshold for " + mode.String(), Confidence: score.Confidence, Risk: score.Risk, Suggestions: score.Suggestions}
}
