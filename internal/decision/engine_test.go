package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

func TestSafeCreateBalancedAutoExecutes(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "src/hello.txt"}}}
	score := scoring.UnifiedScore{Confidence: 85, Risk: 10}
	d := e.Decide(ops, parser.OperationContext{}, score, Balanced, Preferences{}, nil, nil, false)
	assert.Equal(t, AutoExecute, d.Kind)
}

func TestMassDeleteConservativeRequiresConfirmationOrBlocks(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "a.go"}},
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "b.go"}},
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "c.go"}},
	}
	score := scoring.UnifiedScore{Confidence: 95, Risk: 10}
	d := e.Decide(ops, parser.OperationContext{}, score, Conservative, Preferences{}, nil, nil, false)
	assert.Contains(t, []DecisionKind{RequireConfirmation, Block}, d.Kind)
}

func TestCustomRuleBlocksRegardlessOfScore(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpUpdate, Path: "config/x.secret"}}}
	score := scoring.UnifiedScore{Confidence: 95, Risk: 5}
	rules := []CustomRule{{Pattern: `\.secret$`, Action: AlwaysBlock}}
	d := e.Decide(ops, parser.OperationContext{}, score, Aggressive, Preferences{}, rules, nil, false)
	assert.Equal(t, Block, d.Kind)
	assert.Contains(t, d.Reason, "custom rule")
}

func TestSecurityViolationNeverAutoExecutes(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go"}}}
	score := scoring.UnifiedScore{Confidence: 99, Risk: 1}
	d := e.Decide(ops, parser.OperationContext{}, score, Aggressive, Preferences{}, nil, nil, true)
	assert.NotEqual(t, AutoExecute, d.Kind)
}

func TestPlanOnlyNeverAutoExecutes(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go"}}}
	score := scoring.UnifiedScore{Confidence: 100, Risk: 0}
	d := e.Decide(ops, parser.OperationContext{}, score, PlanOnly, Preferences{}, nil, nil, false)
	assert.Equal(t, RequireConfirmation, d.Kind)
}

func TestModeMonotonicity(t *testing.T) {
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go"}}}
	score := scoring.UnifiedScore{Confidence: 92, Risk: 10}

	eCons := NewEngine()
	dCons := eCons.Decide(ops, parser.OperationContext{}, score, Conservative, Preferences{}, nil, nil, false)
	eBal := NewEngine()
	dBal := eBal.Decide(ops, parser.OperationContext{}, score, Balanced, Preferences{}, nil, nil, false)
	eAgg := NewEngine()
	dAgg := eAgg.Decide(ops, parser.OperationContext{}, score, Aggressive, Preferences{}, nil, nil, false)

	if dCons.Kind == AutoExecute {
		assert.Equal(t, AutoExecute, dBal.Kind)
		assert.Equal(t, AutoExecute, dAgg.Kind)
	}
}

func TestInvalidateCacheAllowsDifferentDecision(t *testing.T) {
	e := NewEngine()
	ops := []parser.OperationWithMetadata{{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go"}}}
	score := scoring.UnifiedScore{Confidence: 85, Risk: 10}
	first := e.Decide(ops, parser.OperationContext{}, score, Balanced, Preferences{}, nil, nil, false)
	assert.Equal(t, AutoExecute, first.Kind)

	e.InvalidateCache()
	second := e.Decide(ops, parser.OperationContext{}, score, Manual, Preferences{}, nil, nil, false)
	assert.Equal(t, RequireConfirmation, second.Kind)
}

func TestStateMachineTransitions(t *testing.T) {
	assert.True(t, CanTransition(Analyzing, Decided))
	assert.True(t, CanTransition(Awaiting, Executing))
	assert.True(t, CanTransition(Awaiting, Rejected))
	assert.False(t, CanTransition(Completed, Executing))
	assert.False(t, CanTransition(Decided, Completed))
}
