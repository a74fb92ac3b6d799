package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdcore/filecore/internal/parser"
)

func simpleOps() []parser.OperationWithMetadata {
	return []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "src/hello.txt", Content: "hi"}, ParsingConfidence: 0.95},
	}
}

func allPresentDefaults() []ComponentScore {
	return []ComponentScore{
		{Name: "knowledge", Present: true, HistoricalScore: 50},
		{Name: "context", Present: true, ContextScore: 50},
		{Name: "pattern", Present: true, PatternScore: 75, SafetyScore: 90},
		{Name: "quality", Present: true, QualityScore: 70},
		{Name: "synthesis", Present: true, FeasibilityScore: 75},
	}
}

func TestScoreSafeCreateBalanced(t *testing.T) {
	e := NewEngine(DefaultWeights())
	result := e.Score(simpleOps(), parser.OperationContext{}, allPresentDefaults(), ScoringFactors{})
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 100.0)
	assert.GreaterOrEqual(t, result.Risk, 0.0)
	assert.LessOrEqual(t, result.Risk, 100.0)
}

func TestScoreCacheHitIsDeterministic(t *testing.T) {
	e := NewEngine(DefaultWeights())
	ops := simpleOps()
	octx := parser.OperationContext{RepositoryPath: "/repo", UserQuestion: "add hello file"}
	first := e.Score(ops, octx, allPresentDefaults(), ScoringFactors{})
	second := e.Score(ops, octx, allPresentDefaults(), ScoringFactors{})
	assert.Equal(t, first, second)
}

func TestSetWeightsInvalidatesCache(t *testing.T) {
	e := NewEngine(DefaultWeights())
	ops := simpleOps()
	octx := parser.OperationContext{RepositoryPath: "/repo", UserQuestion: "q"}
	first := e.Score(ops, octx, allPresentDefaults(), ScoringFactors{})

	newWeights := DefaultWeights()
	newWeights.Historical = 0.5
	newWeights.Pattern = 0.10
	newWeights.Context = 0.10
	newWeights.Quality = 0.10
	newWeights.Feasibility = 0.10
	newWeights.UserTrust = 0.05
	newWeights.Complexity = 0.05
	e.SetWeights(newWeights)

	second := e.Score(ops, octx, allPresentDefaults(), ScoringFactors{})
	assert.NotEqual(t, first.Confidence, second.Confidence)
}

func TestComplexityPenaltyCappedAt50(t *testing.T) {
	var ops []parser.OperationWithMetadata
	for i := 0; i < 60; i++ {
		kind := parser.OpKind(i % 5)
		ops = append(ops, parser.OperationWithMetadata{
			Operation: parser.FileOperation{Kind: kind, Path: "a.go"},
		})
	}
	penalty := complexityPenalty(ops)
	require.LessOrEqual(t, penalty, 50.0)
}

func TestRiskIndependentOfConfidenceForDeletions(t *testing.T) {
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "a.go"}},
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "b.go"}},
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "c.go"}},
	}
	e := NewEngine(DefaultWeights())
	result := e.Score(ops, parser.OperationContext{}, allPresentDefaults(), ScoringFactors{})
	assert.Greater(t, result.Risk, 0.0)
}

func TestMissingComponentScoresUseNeutralDefaults(t *testing.T) {
	e := NewEngine(DefaultWeights())
	result := e.Score(simpleOps(), parser.OperationContext{}, nil, ScoringFactors{})
	assert.Equal(t, neutralHistorical, result.Breakdown["historical"])
	assert.Equal(t, neutralPattern, result.Breakdown["pattern"])
}
