package learning

import (
	"context"
	"sync"
	"time"

	"github.com/nerdcore/filecore/internal/history"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/scoring"
)

// candidateFields is the set of weight fields the loop proposes
// adjustments for each tick, cycled in order so every component gets
// periodic reconsideration. These names match both scoring.Weights'
// field keys (weights.go's weightFields) and the UnifiedScore.Breakdown
// keys the scoring engine publishes.
var candidateFields = []string{"historical", "pattern", "context", "quality", "feasibility"}

// Config governs one Loop's cadence and sensitivity.
type Config struct {
	Interval            time.Duration
	AutoApply           bool
	MaxWeightAdjustment float64
	SignificanceZ       float64
	MinHeldOutSamples   int
	WeightsDir          string
}

// Loop periodically evaluates a weight-adjustment proposal against recent
// history and either applies it, queues it, or discards it.
type Loop struct {
	cfg     Config
	store   *history.Store
	mu      sync.RWMutex
	weights scoring.Weights
	queued  []Outcome
	onApply func(scoring.Weights)

	fieldIndex int
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewLoop constructs a Loop reading held-out samples from store.
func NewLoop(cfg Config, store *history.Store) (*Loop, error) {
	weights, err := LoadWeights(cfg.WeightsDir)
	if err != nil {
		return nil, err
	}
	return &Loop{cfg: cfg, store: store, weights: weights, stopCh: make(chan struct{}), doneCh: make(chan struct{})}, nil
}

// SetOnApply registers a callback invoked with the new weight vector
// whenever Tick auto-applies a proposal. Core uses this to push the
// learning loop's weights into the live scoring engine (via
// scoring.Engine.SetWeights, the cache's sole writer) so a running
// StartLearningLoop's adjustments actually reach the scorer instead of
// only updating weights.json.
func (l *Loop) SetOnApply(fn func(scoring.Weights)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onApply = fn
}

// CurrentWeights returns the loop's live weight vector.
func (l *Loop) CurrentWeights() scoring.Weights {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.weights
}

// QueuedProposals returns outcomes awaiting manual approval (non-auto-apply mode).
func (l *Loop) QueuedProposals() []Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Outcome, len(l.queued))
	copy(out, l.queued)
	return out
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	defer close(l.doneCh)

	logging.Learning("learning loop started, interval=%s auto_apply=%v", l.cfg.Interval, l.cfg.AutoApply)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Stop signals Start to return and blocks until it has.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

// Tick runs one evaluation cycle: propose, evaluate, act. Exported so
// tests and callers that want synchronous control (rather than the
// ticker-driven Start) can drive cycles directly.
func (l *Loop) Tick() Outcome {
	timer := logging.StartTimer(logging.CategoryLearning, "Tick")
	defer timer.Stop()

	l.mu.Lock()
	field := candidateFields[l.fieldIndex%len(candidateFields)]
	l.fieldIndex++
	current := l.weights
	l.mu.Unlock()

	proposal := Proposal{Field: field, Delta: 0.05, Rationale: "periodic reconsideration of " + field}

	records, err := l.store.Recent(200)
	if err != nil {
		logging.LearningDebug("learning loop: failed to load recent history: %v", err)
		return Outcome{Decision: DecisionDiscarded}
	}

	exp := evaluate(proposal, records, l.cfg.SignificanceZ, l.cfg.MinHeldOutSamples)

	outcome := Outcome{Experiment: exp, Decision: DecisionDiscarded, NewWeights: current}
	if !exp.Significant {
		logging.LearningDebug("learning loop: proposal for %s not significant (z=%.2f, n=%d)", proposal.Field, exp.ZScore, exp.HeldOutSamples)
		return outcome
	}

	// Only pursue proposals where the high-scoring half actually outperformed.
	if exp.TreatmentSuccess <= exp.ControlSuccess {
		return outcome
	}

	newWeights, err := applyProposal(current, proposal, l.cfg.MaxWeightAdjustment)
	if err != nil {
		logging.LearningDebug("learning loop: failed to apply proposal: %v", err)
		return outcome
	}
	outcome.NewWeights = newWeights

	if l.cfg.AutoApply {
		l.mu.Lock()
		l.weights = newWeights
		onApply := l.onApply
		l.mu.Unlock()
		if err := SaveWeights(l.cfg.WeightsDir, newWeights); err != nil {
			logging.Get(logging.CategoryLearning).Error("failed to persist learned weights: %v", err)
		}
		if onApply != nil {
			onApply(newWeights)
		}
		outcome.Decision = DecisionApplied
		logging.Learning("learning loop: applied weight adjustment to %s (z=%.2f)", proposal.Field, exp.ZScore)
	} else {
		l.mu.Lock()
		l.queued = append(l.queued, outcome)
		l.mu.Unlock()
		outcome.Decision = DecisionQueued
		logging.Learning("learning loop: queued weight adjustment to %s for approval (z=%.2f)", proposal.Field, exp.ZScore)
	}

	return outcome
}
