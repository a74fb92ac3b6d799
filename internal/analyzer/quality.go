package analyzer

import (
	"context"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// QualityAnalyzer scores risk, conflict probability, and rollback
// complexity from the batch's structural shape.
type QualityAnalyzer struct{}

func (a *QualityAnalyzer) Name() string { return "quality" }

func (a *QualityAnalyzer) Analyze(_ context.Context, ops []parser.OperationWithMetadata, _ parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error) {
	pathCounts := make(map[string]int, len(ops))
	for _, op := range ops {
		pathCounts[op.Operation.Path]++
	}
	conflicts := 0
	for _, c := range pathCounts {
		if c > 1 {
			conflicts++
		}
	}
	conflictProbability := 0.0
	if len(pathCounts) > 0 {
		conflictProbability = clamp(float64(conflicts)/float64(len(pathCounts)), 0, 1)
	}

	rollbackComplexity := 0.0
	for _, op := range ops {
		switch op.Operation.Kind {
		case parser.OpDelete:
			rollbackComplexity += 20
		case parser.OpRename:
			rollbackComplexity += 10
		case parser.OpUpdate, parser.OpAppend:
			rollbackComplexity += 5
		case parser.OpCreate:
			rollbackComplexity += 2
		}
	}
	rollbackComplexity = clamp(rollbackComplexity, 0, 100)

	quality := 100 - rollbackComplexity*0.3 - conflictProbability*40
	quality = clamp(quality, 0, 100)

	return scoring.ComponentScore{
		QualityScore:        quality,
		ConflictProbability: conflictProbability,
		RollbackComplexity:  rollbackComplexity,
	}, nil
}
