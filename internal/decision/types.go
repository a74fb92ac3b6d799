// Package decision applies policy mode, user preferences, and custom rules
// to a UnifiedScore, producing an ExecutionDecision (C5).
package decision

// AutoAcceptMode selects the confidence/risk thresholds used by Decide.
type AutoAcceptMode int

const (
	Conservative AutoAcceptMode = iota
	Balanced
	Aggressive
	PlanOnly
	Manual
)

func (m AutoAcceptMode) String() string {
	switch m {
	case Conservative:
		return "conservative"
	case Balanced:
		return "balanced"
	case Aggressive:
		return "aggressive"
	case PlanOnly:
		return "plan_only"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string into an AutoAcceptMode.
func ParseMode(s string) AutoAcceptMode {
	switch s {
	case "conservative":
		return Conservative
	case "balanced":
		return Balanced
	case "aggressive":
		return Aggressive
	case "plan_only":
		return PlanOnly
	case "manual":
		return Manual
	default:
		return Balanced
	}
}

// RuleAction is the effect a matching custom rule has on the decision.
type RuleAction int

const (
	AlwaysAutoExecute RuleAction = iota
	AlwaysConfirm
	AlwaysBlock
	RequireBackup
)

// CustomRule gates the decision for operations whose path matches Pattern.
type CustomRule struct {
	Pattern string
	Action  RuleAction
}

// Preferences are user-tunable gates evaluated alongside mode thresholds.
type Preferences struct {
	ConfirmMassUpdates  bool
	MassUpdateThreshold int
	StrictValidation    bool
}

// DecisionKind tags the ExecutionDecision variant.
type DecisionKind int

const (
	AutoExecute DecisionKind = iota
	RequireConfirmation
	Block
)

// ExecutionDecision is the tagged output of Decide.
type ExecutionDecision struct {
	Kind           DecisionKind
	Reason         string
	Confidence     float64
	Risk           float64
	Warnings       []string
	Suggestions    []string
	CriticalIssues []string
	Alternatives   []string
	ForceBackup    bool
}

// BatchState is the one-way state machine per batch (§4.4 last paragraph).
type BatchState int

const (
	Analyzing BatchState = iota
	Decided
	Executing
	Awaiting
	Rejected
	Completed
	Failed
	RolledBack
	Cancelled
)

func (s BatchState) String() string {
	switch s {
	case Analyzing:
		return "Analyzing"
	case Decided:
		return "Decided"
	case Executing:
		return "Executing"
	case Awaiting:
		return "Awaiting"
	case Rejected:
		return "Rejected"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case RolledBack:
		return "RolledBack"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// validTransitions enumerates the one-way state machine. Awaiting is the
// sole state with two legal successors.
var validTransitions = map[BatchState][]BatchState{
	Analyzing:  {Decided},
	Decided:    {Executing, Awaiting, Rejected},
	Awaiting:   {Executing, Rejected},
	Executing:  {Completed, Failed, Cancelled},
	Failed:     {RolledBack},
	Cancelled:  {RolledBack},
}

// CanTransition reports whether from -> to is a legal state-machine edge.
func CanTransition(from, to BatchState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
