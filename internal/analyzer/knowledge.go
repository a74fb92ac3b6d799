package analyzer

import (
	"context"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// KnowledgeIndexer scores similarity to past operations and prediction
// confidence, derived from the historical success rate and similar-ops
// count supplied by the history store (C4).
type KnowledgeIndexer struct{}

func (a *KnowledgeIndexer) Name() string { return "knowledge" }

func (a *KnowledgeIndexer) Analyze(_ context.Context, ops []parser.OperationWithMetadata, _ parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error) {
	historical := 50.0
	if factors.SimilarOpsCount > 0 {
		historical = factors.HistoricalSuccessRate * 100
	}

	relevance := 0.5
	if factors.SimilarOpsCount >= 10 {
		relevance = 0.9
	} else if factors.SimilarOpsCount >= 3 {
		relevance = 0.7
	} else if factors.SimilarOpsCount > 0 {
		relevance = 0.55
	}

	prediction := historical - 50
	return scoring.ComponentScore{
		HistoricalScore:    historical,
		Relevance:          relevance,
		ModelPrediction:    clamp(prediction, -20, 20),
		HasModelPrediction: factors.SimilarOpsCount > 0,
	}, nil
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
