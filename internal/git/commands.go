package git

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// mergeIdentity is used for the throwaway merge commit on the temp branch so
// the check works in checkouts with no user.name configured.
var mergeIdentity = []string{
	"-c", "user.name=platform-checker",
	"-c", "user.email=platform-checker@localhost",
}

// CLI runs git commands, inheriting the caller's environment (and SSH agent)
type CLI struct {
	logger *zap.Logger
	// Output receives a copy of every command's output when non-nil
	Output io.Writer
}

// NewCLI creates a CLI that logs each command at debug level
func NewCLI(logger *zap.Logger) *CLI {
	return &CLI{logger: logger}
}

func (c *CLI) run(ctx context.Context, dir string, args ...string) (string, error) {
	c.logger.Debug("git", zap.String("dir", dir), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_PAGER=", "GIT_TERMINAL_PROMPT=0")

	var buf bytes.Buffer
	if c.Output != nil {
		cmd.Stdout = io.MultiWriter(&buf, c.Output)
	} else {
		cmd.Stdout = &buf
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Run(); err != nil {
		return buf.String(), &GitError{
			Dir:     dir,
			Command: strings.Join(args, " "),
			Output:  strings.TrimSpace(buf.String()),
			Err:     err,
		}
	}
	return buf.String(), nil
}

// Fetch fetches a branch from remote, updating its remote-tracking ref
func (c *CLI) Fetch(ctx context.Context, dir, remote, branch string) error {
	_, err := c.run(ctx, dir, "fetch", remote, branch)
	if err != nil {
		var gerr *GitError
		if errors.As(err, &gerr) && strings.Contains(gerr.Output, "couldn't find remote ref") {
			return &BranchNotFoundError{Dir: dir, Branches: []string{remote + "/" + branch}}
		}
		return err
	}
	return nil
}

// CheckoutNewBranch creates (or resets) branch at startPoint and checks it out
func (c *CLI) CheckoutNewBranch(ctx context.Context, dir, branch, startPoint string) error {
	_, err := c.run(ctx, dir, "checkout", "-q", "-B", branch, startPoint)
	return err
}

// ForceCheckout switches to target, discarding changes to tracked files
func (c *CLI) ForceCheckout(ctx context.Context, dir, target string) error {
	_, err := c.run(ctx, dir, "checkout", "-q", "-f", target)
	return err
}

// DeleteBranch force-deletes a local branch
func (c *CLI) DeleteBranch(ctx context.Context, dir, branch string) error {
	_, err := c.run(ctx, dir, "branch", "-D", branch)
	return err
}

// Merge merges ref into the current branch. A merge that stops on conflicts
// returns the unmerged paths and a nil error; any other failure is an error.
func (c *CLI) Merge(ctx context.Context, dir, ref string) ([]string, error) {
	args := append(append([]string{}, mergeIdentity...), "merge", "--no-edit", "-m", "merge "+ref, ref)
	_, mergeErr := c.run(ctx, dir, args...)
	if mergeErr == nil {
		return nil, nil
	}

	conflicts, err := c.UnmergedPaths(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, mergeErr
	}
	return conflicts, nil
}

// AbortMerge abandons an in-progress merge
func (c *CLI) AbortMerge(ctx context.Context, dir string) error {
	_, err := c.run(ctx, dir, "merge", "--abort")
	return err
}

// UnmergedPaths lists files with unresolved conflicts, sorted
func (c *CLI) UnmergedPaths(ctx context.Context, dir string) ([]string, error) {
	out, err := c.run(ctx, dir, "diff", "--name-only", "--diff-filter=U", "-z")
	if err != nil {
		return nil, err
	}
	return splitPaths(out), nil
}

// EnsureClean returns a DirtyWorktreeError if tracked files are modified
func (c *CLI) EnsureClean(ctx context.Context, dir string) error {
	out, err := c.run(ctx, dir, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return nil
	}

	var files []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return &DirtyWorktreeError{Dir: dir, Files: files}
}

func splitPaths(out string) []string {
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
