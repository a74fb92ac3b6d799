// Package analyzer runs the five independent scorers of the Analyzer
// Ensemble (C2): knowledge, context, pattern, quality, and synthesis.
//
// Each analyzer is a thin deterministic stand-in for the opaque sub-models
// the spec places out of scope: they compute their component scores from
// structural features of the operation batch and the supplied
// ScoringFactors/history snapshot rather than calling an embedding model —
// no network or inference call belongs in this package.
package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// Analyzer is the capability every ensemble member implements. Analyzers
// must be side-effect free with respect to each other and safe to run in
// parallel.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, ops []parser.OperationWithMetadata, opctx parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error)
}

// Ensemble runs the five analyzers concurrently with bounded fan-out.
type Ensemble struct {
	analyzers []Analyzer
}

// NewEnsemble builds the default five-analyzer ensemble.
func NewEnsemble() *Ensemble {
	return &Ensemble{
		analyzers: []Analyzer{
			&KnowledgeIndexer{},
			&ContextRetriever{},
			&PatternRecognizer{},
			&QualityAnalyzer{},
			&SynthesisAnalyzer{},
		},
	}
}

// Run executes every analyzer concurrently. A failing analyzer yields a
// missing (Present=false) ComponentScore at its slot rather than a fatal
// ensemble error — errgroup is deliberately NOT used to fail-fast here;
// each analyzer's error is captured per-slot and logged instead of
// propagated, matching the analyzer-failure-is-non-fatal invariant (§4.2).
func (e *Ensemble) Run(ctx context.Context, ops []parser.OperationWithMetadata, opctx parser.OperationContext, factors scoring.ScoringFactors) []scoring.ComponentScore {
	timer := logging.StartTimer(logging.CategoryAnalyzer, "Ensemble.Run")
	defer timer.Stop()

	scores := make([]scoring.ComponentScore, len(e.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.analyzers {
		i, a := i, a
		g.Go(func() error {
			score, err := a.Analyze(gctx, ops, opctx, factors)
			if err != nil {
				logging.AnalyzerWarn("analyzer %s failed: %v", a.Name(), err)
				scores[i] = scoring.ComponentScore{Name: a.Name(), Present: false}
				return nil
			}
			score.Name = a.Name()
			score.Present = true
			scores[i] = score
			return nil
		})
	}
	// Errors are captured per-slot above; Wait only propagates context
	// cancellation, never an individual analyzer's failure.
	_ = g.Wait()

	return scores
}
