package git

import (
	"strings"
)

// GitError provides better context for git command failures
type GitError struct {
	Dir     string
	Command string
	Output  string
	Err     error
}

func (e *GitError) Error() string {
	msg := "git " + e.Command
	if e.Dir != "" {
		msg += " (in " + e.Dir + ")"
	}
	if e.Output != "" {
		return msg + ": " + e.Output
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": failed"
}

func (e *GitError) Unwrap() error { return e.Err }

// BranchNotFoundError indicates a branch was not found locally or on the remote
type BranchNotFoundError struct {
	Dir      string
	Branches []string
}

func (e *BranchNotFoundError) Error() string {
	return "branch not found in " + e.Dir + ": " + strings.Join(e.Branches, ", ")
}

// NotARepoError indicates a directory is not a git working tree
type NotARepoError struct {
	Dir string
	Err error
}

func (e *NotARepoError) Error() string {
	return "not a git repository: " + e.Dir
}

func (e *NotARepoError) Unwrap() error { return e.Err }

// DirtyWorktreeError indicates tracked files have uncommitted changes
type DirtyWorktreeError struct {
	Dir   string
	Files []string
}

func (e *DirtyWorktreeError) Error() string {
	return "uncommitted changes in " + e.Dir + ": " + strings.Join(e.Files, ", ") +
		" (commit or stash them first)"
}

// ExperimentNotFoundError indicates no branch under the experiment namespace
// matched the experiment code
type ExperimentNotFoundError struct {
	Code      string
	Namespace string
}

func (e *ExperimentNotFoundError) Error() string {
	return "no experiment branch found for experiment " + e.Code + " under " + e.Namespace
}

// AmbiguousExperimentError indicates several experiment branches matched
type AmbiguousExperimentError struct {
	Code       string
	Candidates []string
}

func (e *AmbiguousExperimentError) Error() string {
	return "experiment " + e.Code + " matches several branches: " + strings.Join(e.Candidates, ", ")
}
