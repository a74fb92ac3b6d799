package scoring

import (
	"sort"
	"strings"
	"sync"

	"github.com/nerdcore/filecore/internal/fingerprint"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
)

// neutral defaults for missing component scores (§4.3 step 1).
const (
	neutralHistorical  = 50.0
	neutralPattern     = 75.0
	neutralContext     = 50.0
	neutralQuality     = 70.0
	neutralFeasibility = 75.0
)

// Engine combines component scores and scoring factors into a UnifiedScore,
// caching results by batch fingerprint behind a single-writer/multi-reader
// lock. A weight change invalidates the whole cache.
type Engine struct {
	mu      sync.RWMutex
	weights Weights
	cache   map[string]UnifiedScore
}

// NewEngine constructs a scoring engine with the given initial weights.
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights, cache: make(map[string]UnifiedScore)}
}

// SetWeights replaces the weight vector and invalidates the cache (§4.3
// "weight changes invalidate the cache").
func (e *Engine) SetWeights(w Weights) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = w
	e.cache = make(map[string]UnifiedScore)
	logging.ScoringDebug("weights updated, cache invalidated")
}

// Weights returns the engine's current weight vector.
func (e *Engine) Weights() Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// InvalidateCache clears the scoring cache, e.g. on preference change.
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]UnifiedScore)
}

// Score computes (or returns a cached) UnifiedScore for a batch.
func (e *Engine) Score(ops []parser.OperationWithMetadata, opctx parser.OperationContext, componentScores []ComponentScore, factors ScoringFactors) UnifiedScore {
	key := batchFingerprint(ops, opctx)

	e.mu.RLock()
	if cached, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		logging.ScoringDebug("cache hit for fingerprint %s", key[:8])
		return cached
	}
	e.mu.RUnlock()

	timer := logging.StartTimer(logging.CategoryScoring, "Score")
	defer timer.Stop()

	weights := e.Weights()
	result := compute(ops, opctx, componentScores, factors, weights)

	e.mu.Lock()
	e.cache[key] = result
	e.mu.Unlock()

	return result
}

func batchFingerprint(ops []parser.OperationWithMetadata, opctx parser.OperationContext) string {
	descriptors := make([]fingerprint.Descriptor, len(ops))
	for i, op := range ops {
		descriptors[i] = op.Operation
	}
	return fingerprint.Batch(descriptors, opctx.RepositoryPath, opctx.UserQuestion)
}

func compute(ops []parser.OperationWithMetadata, opctx parser.OperationContext, componentScores []ComponentScore, factors ScoringFactors, weights Weights) UnifiedScore {
	sub := subScores(componentScores)

	complexityPenalty := complexityPenalty(ops)

	weightedConfidence := weights.Historical*sub.historical +
		weights.Pattern*sub.pattern +
		weights.Context*sub.context +
		weights.Quality*sub.quality +
		weights.Feasibility*sub.feasibility +
		weights.UserTrust*factors.UserTrust*100 -
		weights.Complexity*complexityPenalty

	breakdown := map[string]float64{
		"historical":  sub.historical,
		"pattern":     sub.pattern,
		"context":     sub.context,
		"quality":     sub.quality,
		"feasibility": sub.feasibility,
		"complexity_penalty": complexityPenalty,
	}

	adjustments, adjustmentTotal := applyAdjustments(ops, factors, componentScores)
	for name, delta := range adjustments {
		breakdown["adjustment_"+name] = delta
	}

	confidence := clamp(weightedConfidence+adjustmentTotal, 0, 100)

	risk := computeRisk(confidence, ops, componentScores)

	interval := confidenceInterval(factors.SimilarOpsCount, adjustments)

	primaryFactors := primaryFactors(breakdown)
	suggestions := suggestions(primaryFactors, confidence, ops)

	return UnifiedScore{
		Confidence:     confidence,
		Risk:           risk,
		Breakdown:      breakdown,
		Interval:       interval,
		PrimaryFactors: primaryFactors,
		Suggestions:    suggestions,
	}
}

type subScoreSet struct {
	historical, pattern, context, quality, feasibility float64
}

func subScores(scores []ComponentScore) subScoreSet {
	s := subScoreSet{
		historical:  neutralHistorical,
		pattern:     neutralPattern,
		context:     neutralContext,
		quality:     neutralQuality,
		feasibility: neutralFeasibility,
	}
	for _, cs := range scores {
		if !cs.Present {
			continue
		}
		switch cs.Name {
		case "knowledge":
			s.historical = cs.HistoricalScore
		case "context":
			s.context = cs.ContextScore
		case "pattern":
			s.pattern = cs.PatternScore
		case "quality":
			s.quality = cs.QualityScore
		case "synthesis":
			s.feasibility = cs.FeasibilityScore
		}
	}
	return s
}

// complexityPenalty implements §4.3's tiered operation-count × diversity ×
// cluster-factor formula, capped at 50.
func complexityPenalty(ops []parser.OperationWithMetadata) float64 {
	n := len(ops)
	var countTier float64
	switch {
	case n <= 3:
		countTier = 0
	case n <= 10:
		countTier = 5
	case n <= 20:
		countTier = 15
	case n <= 50:
		countTier = 25
	default:
		countTier = 40
	}

	variants := make(map[parser.OpKind]bool)
	for _, op := range ops {
		variants[op.Operation.Kind] = true
	}
	var diversityTier float64
	switch len(variants) {
	case 0, 1:
		diversityTier = 0
	case 2:
		diversityTier = 5
	case 3:
		diversityTier = 10
	default:
		diversityTier = 20
	}

	cluster := clusterFactor(ops)
	penalty := (countTier + diversityTier) * cluster
	return clamp(penalty, 0, 50)
}

func clusterFactor(ops []parser.OperationWithMetadata) float64 {
	hasDelete, hasMigration, hasRefactor, hasTest, hasDocs := false, false, false, false, false
	for _, op := range ops {
		path := op.Operation.Path
		switch {
		case op.Operation.Kind == parser.OpDelete:
			hasDelete = true
		case containsAny(path, "migration", "migrate"):
			hasMigration = true
		case containsAny(path, "refactor"):
			hasRefactor = true
		case containsAny(path, "_test.", "test_", "/test/", "tests/"):
			hasTest = true
		case containsAny(path, "docs/", ".md", "README"):
			hasDocs = true
		}
	}
	switch {
	case hasDelete:
		return 2.0
	case hasMigration:
		return 1.8
	case hasRefactor:
		return 1.5
	case hasTest:
		return 0.5
	case hasDocs:
		return 0.3
	default:
		return 1.0
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// applyAdjustments computes the §4.3 adjustment-factor table.
func applyAdjustments(ops []parser.OperationWithMetadata, factors ScoringFactors, componentScores []ComponentScore) (map[string]float64, float64) {
	adjustments := make(map[string]float64)

	if factors.LocalHour >= 22 || factors.LocalHour < 6 {
		adjustments["off_hours"] = -5
	}
	if factors.VCSCommitKnown {
		adjustments["clean_vcs_state"] = 5
	}
	for _, op := range ops {
		if op.Operation.Kind == parser.OpDelete {
			adjustments["contains_deletions"] = -10
			break
		}
	}
	depEdges := 0
	for _, op := range ops {
		depEdges += len(op.Dependencies)
	}
	if depEdges > 3 {
		adjustments["complex_deps"] = -8
	}
	for _, cs := range componentScores {
		if cs.Present && cs.HasModelPrediction {
			adjustments["model_prediction"] = clamp(cs.ModelPrediction, -20, 20)
			break
		}
	}

	total := 0.0
	for _, v := range adjustments {
		total += v
	}
	return adjustments, total
}

// computeRisk implements §4.3 step 4: risk is computed independently from
// confidence, seeded at 100-confidence, then scaled by an independent
// multiplier chain. See SPEC_FULL.md Open Question #5 for why a
// confidence=100 seed of 0 is accepted rather than inventing an unseeded
// risk floor: the adjustment-factor stage never lets weighted confidence
// true-round to 100 when a risk-raising condition holds, since those same
// conditions also apply negative adjustments above.
func computeRisk(confidence float64, ops []parser.OperationWithMetadata, componentScores []ComponentScore) float64 {
	risk := 100 - confidence

	hasDelete := false
	for _, op := range ops {
		if op.Operation.Kind == parser.OpDelete {
			hasDelete = true
			break
		}
	}
	if hasDelete {
		risk *= 1.3
	}

	maxRollbackComplexity := 0.0
	maxConflictProbability := 0.0
	minSafety := 100.0
	anyPresent := false
	for _, cs := range componentScores {
		if !cs.Present {
			continue
		}
		anyPresent = true
		if cs.RollbackComplexity > maxRollbackComplexity {
			maxRollbackComplexity = cs.RollbackComplexity
		}
		if cs.ConflictProbability > maxConflictProbability {
			maxConflictProbability = cs.ConflictProbability
		}
		if cs.SafetyScore > 0 && cs.SafetyScore < minSafety {
			minSafety = cs.SafetyScore
		}
	}
	if !anyPresent {
		minSafety = 100
	}

	if maxRollbackComplexity > 50 {
		risk *= 1.2
	}
	risk *= 1 + clamp(maxConflictProbability, 0, 1)*0.5
	if minSafety < 50 {
		risk *= 1.4
	}

	return clamp(risk, 0, 100)
}

func confidenceInterval(similarOpsCount int, adjustments map[string]float64) ConfidenceInterval {
	dataVariance := dataVariance(similarOpsCount)
	adjustmentVariance := 0.0
	for _, v := range adjustments {
		adjustmentVariance += 0.2 * absFloat(v)
	}
	variance := dataVariance + adjustmentVariance

	reliability := clamp(float64(similarOpsCount)/20.0, 0, 1)

	return ConfidenceInterval{
		Low:         -variance,
		High:        variance,
		Reliability: reliability,
	}
}

func dataVariance(similarOpsCount int) float64 {
	if similarOpsCount == 0 {
		return 15
	}
	v := 15.0 / float64(similarOpsCount+1)
	if v < 2 {
		return 2
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func primaryFactors(breakdown map[string]float64) []string {
	type kv struct {
		name  string
		value float64
	}
	var entries []kv
	for k, v := range breakdown {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return absFloat(entries[i].value) > absFloat(entries[j].value)
	})

	limit := 3
	if len(entries) < limit {
		limit = len(entries)
	}
	factors := make([]string, 0, limit)
	for _, e := range entries[:limit] {
		factors = append(factors, e.name)
	}
	return factors
}

func suggestions(primaryFactors []string, confidence float64, ops []parser.OperationWithMetadata) []string {
	var suggestions []string
	for _, f := range primaryFactors {
		switch f {
		case "complexity_penalty":
			suggestions = append(suggestions, "consider splitting this batch into smaller operations")
		case "adjustment_contains_deletions":
			suggestions = append(suggestions, "review deletions carefully; consider a backup-restore rollback strategy")
		case "adjustment_complex_deps":
			suggestions = append(suggestions, "dependency graph is deep; verify execution order before accepting")
		}
	}
	switch {
	case confidence < 40:
		suggestions = append(suggestions, "confidence is low; manual review is recommended")
	case confidence < 70:
		suggestions = append(suggestions, "confidence is moderate; spot-check the generated diffs")
	}
	return suggestions
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
