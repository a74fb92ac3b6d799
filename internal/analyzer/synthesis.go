package analyzer

import (
	"context"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// SynthesisAnalyzer scores overall plan quality and execution confidence,
// combining dependency-graph shape with per-operation parsing confidence.
type SynthesisAnalyzer struct{}

func (a *SynthesisAnalyzer) Name() string { return "synthesis" }

func (a *SynthesisAnalyzer) Analyze(_ context.Context, ops []parser.OperationWithMetadata, _ parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error) {
	if len(ops) == 0 {
		return scoring.ComponentScore{FeasibilityScore: 75, PlanQuality: 0.75}, nil
	}

	depEdges := 0
	for _, op := range ops {
		depEdges += len(op.Dependencies)
	}
	avgConfidence := 0.0
	for _, op := range ops {
		avgConfidence += op.ParsingConfidence
	}
	avgConfidence /= float64(len(ops))

	planQuality := clamp(0.5+avgConfidence*0.4-float64(depEdges)*0.02, 0, 1)
	feasibility := 75.0
	if depEdges > 3 {
		feasibility -= 8
	}
	feasibility = clamp(feasibility+avgConfidence*20-10, 0, 100)

	return scoring.ComponentScore{
		PlanQuality:        planQuality,
		FeasibilityScore:   feasibility,
		ModelPrediction:    clamp((avgConfidence-0.5)*40, -20, 20),
		HasModelPrediction: true,
	}, nil
}
