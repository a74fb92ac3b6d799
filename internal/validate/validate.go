package validate

import (
	"context"

	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
)

// Validator runs all five check categories against a parsed batch.
type Validator struct {
	workspaceRoot string
	syntax        *SyntaxChecker
}

// NewValidator constructs a Validator rooted at workspaceRoot. Callers must
// call Close when done to release the syntax checker's tree-sitter parsers.
func NewValidator(workspaceRoot string) (*Validator, error) {
	if workspaceRoot == "" {
		return nil, ErrWorkspaceRequired
	}
	return &Validator{workspaceRoot: workspaceRoot, syntax: NewSyntaxChecker()}, nil
}

// Close releases the validator's tree-sitter resources.
func (v *Validator) Close() {
	v.syntax.Close()
}

// Validate runs filesystem, security, syntax, path-policy, and conflict
// checks and aggregates them into one Report.
func (v *Validator) Validate(ctx context.Context, ops []parser.OperationWithMetadata, limits config.CoreLimits, forbiddenPatterns []string) Report {
	timer := logging.StartTimer(logging.CategoryValidate, "Validate")
	defer timer.Stop()

	var checks []Check
	checks = append(checks, FilesystemCheck(v.workspaceRoot, ops, limits)...)
	checks = append(checks, SecurityCheck(ops)...)
	checks = append(checks, v.syntax.Check(ctx, ops)...)
	checks = append(checks, PathPolicyCheck(ops, forbiddenPatterns)...)
	checks = append(checks, ConflictCheck(ops)...)

	securityViolation := false
	for _, c := range checks {
		if c.Category == "security" && c.Status == StatusFail {
			securityViolation = true
			break
		}
	}

	return Report{Checks: checks, SecurityViolation: securityViolation}
}
