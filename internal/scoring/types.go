// Package scoring combines analyzer component scores and aggregated
// scoring factors into a UnifiedScore (C3).
package scoring

// ComponentScore is a per-analyzer record (C2 output). Fields are optional;
// an analyzer that doesn't compute a given field leaves it at its zero
// value and the engine substitutes the documented neutral default.
type ComponentScore struct {
	Name                string  `json:"name"`
	Present             bool    `json:"present"` // false if the analyzer failed
	SafetyScore         float64 `json:"safety_score"`         // [0,100]
	Relevance           float64 `json:"relevance"`            // [0,1]
	ConflictProbability float64 `json:"conflict_probability"` // [0,1]
	RollbackComplexity  float64 `json:"rollback_complexity"`  // [0,100]
	PlanQuality         float64 `json:"plan_quality"`         // [0,1]

	// Additional structural features used by the weighted-confidence sum.
	HistoricalScore float64 `json:"historical_score"` // [0,100]
	PatternScore    float64 `json:"pattern_score"`     // [0,100]
	ContextScore    float64 `json:"context_score"`     // [0,100]
	QualityScore    float64 `json:"quality_score"`     // [0,100]
	FeasibilityScore float64 `json:"feasibility_score"` // [0,100]

	DangerousPatternCount int `json:"dangerous_pattern_count"`
	AntiPatternCount      int `json:"anti_pattern_count"`

	ModelPrediction    float64 `json:"model_prediction"`     // Δ suggested by synthesis analyzer, ±20 clamp
	HasModelPrediction bool    `json:"has_model_prediction"`
}

// ScoringFactors are aggregated numeric features independent of any single
// analyzer, typically supplied from the history store (C4).
type ScoringFactors struct {
	HistoricalSuccessRate float64 `json:"historical_success_rate"` // [0,1]
	SimilarOpsCount       int     `json:"similar_ops_count"`
	DangerousPatternCount int     `json:"dangerous_pattern_count"`
	AntiPatternCount      int     `json:"anti_pattern_count"`
	UserTrust             float64 `json:"user_trust"` // [0,1]
	VCSCommitKnown        bool    `json:"vcs_commit_known"`
	LocalHour             int     `json:"local_hour"` // 0-23, for the off-hours adjustment
}

// Weights is the normalized scoring weight vector (§4.3), summing to 1.
type Weights struct {
	Historical  float64
	Pattern     float64
	Context     float64
	Quality     float64
	Feasibility float64
	UserTrust   float64
	Complexity  float64
}

// DefaultWeights returns the spec's default weight vector.
func DefaultWeights() Weights {
	return Weights{
		Historical:  0.25,
		Pattern:     0.20,
		Context:     0.15,
		Quality:     0.15,
		Feasibility: 0.10,
		UserTrust:   0.10,
		Complexity:  0.05,
	}
}

// UnifiedScore is the combined {confidence, risk} used by the decision
// engine (C5), with supporting breakdown data for UI rendering.
type UnifiedScore struct {
	Confidence      float64            `json:"confidence"` // [0,100]
	Risk            float64            `json:"risk"`        // [0,100]
	Breakdown       map[string]float64 `json:"breakdown"`
	Interval        ConfidenceInterval `json:"interval"`
	PrimaryFactors  []string           `json:"primary_factors"`
	Suggestions     []string           `json:"suggestions"`
}

// ConfidenceInterval bounds the confidence estimate given historical variance.
type ConfidenceInterval struct {
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
	Reliability float64 `json:"reliability"` // [0,1], scales with similar-ops count
}
