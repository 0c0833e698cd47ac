package models

import "time"

// Process exit codes, one per failure class
const (
	ExitPass          = 0
	ExitFatal         = 1
	ExitUsage         = 2
	ExitMergeConflict = 3
	ExitBuildFailure  = 4
)

// Report is the result of one pipeline run
type Report struct {
	Experiment      Experiment
	ReferenceBranch string
	Projects        []Project
	// Stage is Done for a run that finished, otherwise the last stage
	// reached before a fatal error
	Stage Stage
	// Merge is nil only when the run failed before the merge check
	Merge CheckResult
	// Build is nil when the build was skipped
	Build         CheckResult
	MergeDuration time.Duration
	BuildDuration time.Duration
}

// Passed returns true if both checks succeeded
func (r *Report) Passed() bool {
	return r.Merge != nil && IsSuccess(r.Merge) && r.Build != nil && IsSuccess(r.Build)
}

// BuildSkipped returns true if the merge check failed and no build ran
func (r *Report) BuildSkipped() bool {
	return r.Merge != nil && !IsSuccess(r.Merge) && r.Build == nil
}

// ExitCode maps the report to a process exit code
func (r *Report) ExitCode() int {
	switch {
	case r.Passed():
		return ExitPass
	case r.Merge != nil && IsMergeConflict(r.Merge):
		return ExitMergeConflict
	case r.Build != nil && IsBuildFailure(r.Build):
		return ExitBuildFailure
	default:
		return ExitFatal
	}
}
