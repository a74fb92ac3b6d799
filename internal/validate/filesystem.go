package validate

import (
	"os"
	"path/filepath"

	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/parser"
)

// FilesystemCheck verifies each operation is feasible against the workspace
// on disk: creates must not collide with existing files, updates/appends
// must target existing files, deletes must target existing files, and
// renames must have a free destination. Content size is checked against
// the configured max.
func FilesystemCheck(workspaceRoot string, ops []parser.OperationWithMetadata, limits config.CoreLimits) []Check {
	checks := make([]Check, 0, len(ops))

	for i, op := range ops {
		abs := filepath.Join(workspaceRoot, op.Operation.Path)
		_, statErr := os.Stat(abs)
		exists := statErr == nil

		switch op.Operation.Kind {
		case parser.OpCreate:
			if exists {
				checks = append(checks, fail(i, "filesystem", SeverityError, "create target already exists: "+op.Operation.Path))
				continue
			}
		case parser.OpUpdate, parser.OpAppend:
			if !exists {
				checks = append(checks, fail(i, "filesystem", SeverityError, "target does not exist: "+op.Operation.Path))
				continue
			}
		case parser.OpDelete:
			if !exists {
				checks = append(checks, fail(i, "filesystem", SeverityWarning, "delete target already absent: "+op.Operation.Path))
				continue
			}
		case parser.OpRename:
			if !exists {
				checks = append(checks, fail(i, "filesystem", SeverityError, "rename source does not exist: "+op.Operation.Path))
				continue
			}
			destAbs := filepath.Join(workspaceRoot, op.Operation.NewPath)
			if _, err := os.Stat(destAbs); err == nil {
				checks = append(checks, fail(i, "filesystem", SeverityError, "rename destination already exists: "+op.Operation.NewPath))
				continue
			}
		}

		if limits.MaxFileSizeBytes > 0 && int64(len(op.Operation.Content)) > limits.MaxFileSizeBytes {
			checks = append(checks, fail(i, "filesystem", SeverityError, "content exceeds max file size"))
			continue
		}

		checks = append(checks, pass(i, "filesystem", "operation is feasible against current workspace state"))
	}

	if limits.MaxBatchSize > 0 && len(ops) > limits.MaxBatchSize {
		checks = append(checks, Check{Category: "filesystem", Status: StatusFail, Severity: SeverityError, Message: "batch exceeds max batch size", OperationIndex: -1})
	}

	return checks
}

func fail(index int, category string, sev Severity, msg string) Check {
	return Check{Category: category, Status: StatusFail, Severity: sev, Message: msg, OperationIndex: index}
}

func pass(index int, category string, msg string) Check {
	return Check{Category: category, Status: StatusPass, Severity: SeverityInfo, Message: msg, OperationIndex: index}
}
