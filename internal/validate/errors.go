package validate

import "errors"

// Validator construction/usage errors.
var (
	// ErrWorkspaceRequired is returned when a Validator is constructed
	// without a workspace root.
	ErrWorkspaceRequired = errors.New("validate: workspace root is required")
)
