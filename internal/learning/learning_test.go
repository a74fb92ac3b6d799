package learning

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/history"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

func TestTwoProportionZ_NoDifferenceIsZero(t *testing.T) {
	z := twoProportionZ(10, 20, 10, 20)
	assert.InDelta(t, 0, z, 0.001)
}

func TestTwoProportionZ_LargeDifferenceIsSignificant(t *testing.T) {
	z := twoProportionZ(19, 20, 2, 20)
	assert.True(t, z > 1.96)
}

func TestClampAdjustment_BoundsToMax(t *testing.T) {
	v := clampAdjustment(0.25, 0.5, 0.1)
	assert.InDelta(t, 0.35, v, 0.001)
}

func TestClampAdjustment_BoundsResultToRange(t *testing.T) {
	v := clampAdjustment(0.02, -0.5, 0.5)
	assert.GreaterOrEqual(t, v, 0.01)
}

func TestApplyProposal_RenormalizesToSumOne(t *testing.T) {
	w := scoring.DefaultWeights()
	next, err := applyProposal(w, Proposal{Field: "historical", Delta: 0.1}, 0.1)
	require.NoError(t, err)

	sum := next.Historical + next.Pattern + next.Context + next.Quality + next.Feasibility + next.UserTrust + next.Complexity
	assert.InDelta(t, 1.0, sum, 0.01)
	assert.Greater(t, next.Historical, w.Historical)
}

func TestSaveAndLoadWeights(t *testing.T) {
	dir := t.TempDir()
	w := scoring.Weights{Historical: 0.3, Pattern: 0.2, Context: 0.15, Quality: 0.15, Feasibility: 0.1, UserTrust: 0.05, Complexity: 0.05}

	require.NoError(t, SaveWeights(dir, w))
	loaded, err := LoadWeights(dir)
	require.NoError(t, err)
	assert.Equal(t, w, loaded)
}

func TestLoadWeights_DefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	loaded, err := LoadWeights(dir)
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultWeights(), loaded)
}

func openLoopStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRecord(t *testing.T, s *history.Store, historicalScore float64, succeeded bool) {
	t.Helper()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go"}}}
	score := scoring.UnifiedScore{Confidence: 80, Breakdown: map[string]float64{"historical": historicalScore}}
	id, err := s.Insert(ops, "fp", score, decision.ExecutionDecision{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateOutcome(id, history.Outcome{Succeeded: succeeded}))
}

func TestLoop_TickDiscardsBelowMinSamples(t *testing.T) {
	store := openLoopStore(t)
	seedRecord(t, store, 90, true)

	l, err := NewLoop(Config{Interval: time.Hour, MaxWeightAdjustment: 0.1, SignificanceZ: 1.96, MinHeldOutSamples: 20, WeightsDir: t.TempDir()}, store)
	require.NoError(t, err)

	outcome := l.Tick()
	assert.Equal(t, DecisionDiscarded, outcome.Decision)
}

func TestLoop_TickAutoAppliesSignificantImprovement(t *testing.T) {
	store := openLoopStore(t)
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 90, true)
	}
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 10, false)
	}

	l, err := NewLoop(Config{Interval: time.Hour, AutoApply: true, MaxWeightAdjustment: 0.1, SignificanceZ: 1.0, MinHeldOutSamples: 20, WeightsDir: t.TempDir()}, store)
	require.NoError(t, err)

	outcome := l.Tick()
	assert.Equal(t, DecisionApplied, outcome.Decision)
	assert.True(t, outcome.Experiment.Significant)
}

func TestLoop_TickNotifiesOnApplyCallback(t *testing.T) {
	store := openLoopStore(t)
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 90, true)
	}
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 10, false)
	}

	l, err := NewLoop(Config{Interval: time.Hour, AutoApply: true, MaxWeightAdjustment: 0.1, SignificanceZ: 1.0, MinHeldOutSamples: 20, WeightsDir: t.TempDir()}, store)
	require.NoError(t, err)

	var notified scoring.Weights
	calls := 0
	l.SetOnApply(func(w scoring.Weights) {
		calls++
		notified = w
	})

	outcome := l.Tick()
	require.Equal(t, DecisionApplied, outcome.Decision)
	assert.Equal(t, 1, calls)
	assert.Equal(t, outcome.NewWeights, notified)
}

func TestLoop_TickQueuesWhenNotAutoApply(t *testing.T) {
	store := openLoopStore(t)
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 90, true)
	}
	for i := 0; i < 15; i++ {
		seedRecord(t, store, 10, false)
	}

	l, err := NewLoop(Config{Interval: time.Hour, AutoApply: false, MaxWeightAdjustment: 0.1, SignificanceZ: 1.0, MinHeldOutSamples: 20, WeightsDir: t.TempDir()}, store)
	require.NoError(t, err)

	outcome := l.Tick()
	assert.Equal(t, DecisionQueued, outcome.Decision)
	assert.Len(t, l.QueuedProposals(), 1)
}
