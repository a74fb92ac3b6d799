package rollback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/nerdcore/filecore/internal/logging"
)

// VCSAvailable reports whether workspaceRoot is inside a git work tree.
func VCSAvailable(ctx context.Context, workspaceRoot string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workspaceRoot
	return cmd.Run() == nil
}

// gitRevert runs "git checkout -- <path>" to discard local changes to path,
// restoring it to its last-committed state. Grounded on the teacher's
// os/exec.CommandContext subprocess idiom (internal/tools/shell/execute.go)
// with a per-call timeout since revert is invoked from a retry loop.
func gitRevert(workspaceRoot, path string, timeout time.Duration) error {
	execCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "git", "checkout", "--", path)
	cmd.Dir = workspaceRoot

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("git checkout timed out for %s", path)
		}
		logging.RollbackError("git checkout failed for %s: %v (%s)", path, err, stderr.String())
		return fmt.Errorf("git checkout failed: %w: %s", err, stderr.String())
	}
	return nil
}
