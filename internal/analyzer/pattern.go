package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

// dangerousContentPatterns flags content shapes that raise the batch's risk
// independent of the validator's later security scan — this is a cheap
// structural signal, not a substitute for C7's full check.
var dangerousContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
	regexp.MustCompile(`(?i)\bos\.RemoveAll\b`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
}

var antiPatternMarkers = []string{"TODO", "FIXME", "XXX", "HACK"}

// PatternRecognizer scores safety and counts dangerous/anti-patterns across
// the batch.
type PatternRecognizer struct{}

func (a *PatternRecognizer) Name() string { return "pattern" }

func (a *PatternRecognizer) Analyze(_ context.Context, ops []parser.OperationWithMetadata, _ parser.OperationContext, factors scoring.ScoringFactors) (scoring.ComponentScore, error) {
	dangerous := factors.DangerousPatternCount
	antiPatterns := factors.AntiPatternCount
	deleteCount := 0

	for _, op := range ops {
		if op.Operation.Kind == parser.OpDelete {
			deleteCount++
		}
		for _, re := range dangerousContentPatterns {
			if re.MatchString(op.Operation.Content) {
				dangerous++
			}
		}
		for _, marker := range antiPatternMarkers {
			if strings.Contains(op.Operation.Content, marker) {
				antiPatterns++
			}
		}
	}

	safety := 100.0 - float64(dangerous)*15 - float64(deleteCount)*5
	safety = clamp(safety, 0, 100)

	return scoring.ComponentScore{
		SafetyScore:           safety,
		PatternScore:          safety,
		DangerousPatternCount: dangerous,
		AntiPatternCount:      antiPatterns,
	}, nil
}
