package validate

import (
	"regexp"
	"strconv"

	"github.com/nerdcore/filecore/internal/parser"
)

// PathPolicyCheck enforces the configured forbidden-path regex list against
// every operation's path (and rename destination).
func PathPolicyCheck(ops []parser.OperationWithMetadata, forbiddenPatterns []string) []Check {
	compiled := make([]*regexp.Regexp, 0, len(forbiddenPatterns))
	for _, p := range forbiddenPatterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}

	checks := make([]Check, 0, len(ops))
	for i, op := range ops {
		blocked := matchesAny(compiled, op.Operation.Path)
		if !blocked && op.Operation.NewPath != "" {
			blocked = matchesAny(compiled, op.Operation.NewPath)
		}
		if blocked {
			checks = append(checks, fail(i, "path_policy", SeverityCritical, "path matches a forbidden pattern: "+op.Operation.Path))
			continue
		}
		checks = append(checks, pass(i, "path_policy", "path is within policy"))
	}
	return checks
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ConflictCheck detects intra-batch path conflicts: two operations touching
// the same path, or a rename colliding with another operation's target.
func ConflictCheck(ops []parser.OperationWithMetadata) []Check {
	checks := make([]Check, 0)
	seen := make(map[string]int) // path -> first operation index

	for i, op := range ops {
		if firstIdx, ok := seen[op.Operation.Path]; ok {
			checks = append(checks, Check{
				Category:       "conflict",
				Status:         StatusFail,
				Severity:       SeverityError,
				Message:        "path is touched by more than one operation in this batch (first at index " + strconv.Itoa(firstIdx) + ")",
				OperationIndex: i,
			})
			continue
		}
		seen[op.Operation.Path] = i

		if op.Operation.Kind == parser.OpRename {
			if firstIdx, ok := seen[op.Operation.NewPath]; ok {
				checks = append(checks, Check{
					Category:       "conflict",
					Status:         StatusFail,
					Severity:       SeverityError,
					Message:        "rename destination collides with another operation's path (index " + strconv.Itoa(firstIdx) + ")",
					OperationIndex: i,
				})
				continue
			}
		}
	}

	if len(checks) == 0 {
		checks = append(checks, Check{Category: "conflict", Status: StatusPass, Severity: SeverityInfo, Message: "no intra-batch path conflicts", OperationIndex: -1})
	}
	return checks
}
