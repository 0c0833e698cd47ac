package models

// CheckResult is the outcome of one pipeline check. Expected failures are
// values of this type, never errors.
type CheckResult interface {
	isCheckResult()
}

type checkSuccess struct{}
type checkMergeConflict struct{ Paths []string }
type checkBuildFailure struct {
	ExitCode int
	LogTail  []string
}

func (checkSuccess) isCheckResult()       {}
func (checkMergeConflict) isCheckResult() {}
func (checkBuildFailure) isCheckResult()  {}

// Success indicates the check passed
var Success CheckResult = checkSuccess{}

// MergeConflict creates a CheckResult listing the conflicting paths
func MergeConflict(paths []string) CheckResult {
	return checkMergeConflict{Paths: paths}
}

// BuildFailure creates a CheckResult for a build that exited non-zero
func BuildFailure(exitCode int, logTail []string) CheckResult {
	return checkBuildFailure{ExitCode: exitCode, LogTail: logTail}
}

// IsSuccess returns true if r is Success
func IsSuccess(r CheckResult) bool {
	_, ok := r.(checkSuccess)
	return ok
}

// IsMergeConflict returns true if r is a MergeConflict
func IsMergeConflict(r CheckResult) bool {
	_, ok := r.(checkMergeConflict)
	return ok
}

// IsBuildFailure returns true if r is a BuildFailure
func IsBuildFailure(r CheckResult) bool {
	_, ok := r.(checkBuildFailure)
	return ok
}

// ConflictPaths returns the conflicting paths of a MergeConflict
func ConflictPaths(r CheckResult) []string {
	if c, ok := r.(checkMergeConflict); ok {
		return c.Paths
	}
	return nil
}

// BuildLog returns the exit code and captured output tail of a BuildFailure
func BuildLog(r CheckResult) (int, []string) {
	if f, ok := r.(checkBuildFailure); ok {
		return f.ExitCode, f.LogTail
	}
	return 0, nil
}
