package analyzer

import (
	"context"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// ContextRetriever scores relevance and precedent strength: how well the
// operation batch's parsing confidence and rationale coverage line up with
// the success rate of prior similar operations.
type ContextRetriever struct{}

func (a *ContextRetriever) Name() string { return "context" }

func (a *ContextRetriever) Analyze(_ context.Context, ops []parser.OperationWithMetadata, opctx parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error) {
	if len(ops) == 0 {
		return scoring.ComponentScore{ContextScore: 50}, nil
	}

	withRationale := 0
	confidenceSum := 0.0
	for _, op := range ops {
		if op.Rationale != "" {
			withRationale++
		}
		confidenceSum += op.ParsingConfidence
	}
	rationaleRatio := float64(withRationale) / float64(len(ops))
	avgParseConfidence := confidenceSum / float64(len(ops))

	contextScore := 40 + rationaleRatio*30 + avgParseConfidence*30
	if factors.SimilarOpsCount > 0 {
		contextScore = 0.6*contextScore + 0.4*(factors.HistoricalSuccessRate*100)
	}

	return scoring.ComponentScore{
		ContextScore: clamp(contextScore, 0, 100),
		Relevance:    clamp(rationaleRatio*0.5+avgParseConfidence*0.5, 0, 1),
	}, nil
}
