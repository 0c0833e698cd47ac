package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"
)

// RenderReport renders the per-check status lines and the verdict
func RenderReport(r *models.Report) string {
	var b strings.Builder

	b.WriteString(SectionHeader("PLATFORM CHECK", ColorCyan))
	b.WriteString("\n")
	if r.Experiment.Branch != "" {
		b.WriteString(BranchFlow(r.Experiment.Branch, r.ReferenceBranch))
		b.WriteString("\n")
	}
	if len(r.Projects) > 1 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d projects", len(r.Projects))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(renderMerge(r))
	b.WriteString(renderBuild(r))

	b.WriteString("\n")
	b.WriteString(renderVerdict(r))
	b.WriteString("\n")
	return b.String()
}

func renderMerge(r *models.Report) string {
	switch {
	case r.Merge == nil:
		return StatusLine(StatusSkip, "merge", "not run") + "\n"
	case models.IsSuccess(r.Merge):
		return StatusLine(StatusPass, "merge", elapsed(r.MergeDuration)) + "\n"
	}

	paths := models.ConflictPaths(r.Merge)
	var b strings.Builder
	b.WriteString(StatusLine(StatusFail, "merge", fmt.Sprintf("%d conflicting path(s)", len(paths))))
	b.WriteString("\n")
	for _, p := range paths {
		b.WriteString("    ")
		b.WriteString(pathStyle.Render(p))
		b.WriteString("\n")
	}
	return b.String()
}

func renderBuild(r *models.Report) string {
	switch {
	case r.Build == nil && r.BuildSkipped():
		return StatusLine(StatusSkip, "build", "merge check failed") + "\n"
	case r.Build == nil:
		return StatusLine(StatusSkip, "build", "not run") + "\n"
	case models.IsSuccess(r.Build):
		return StatusLine(StatusPass, "build", elapsed(r.BuildDuration)) + "\n"
	}

	code, tail := models.BuildLog(r.Build)
	var b strings.Builder
	b.WriteString(StatusLine(StatusFail, "build", fmt.Sprintf("exit status %d, %s", code, elapsed(r.BuildDuration))))
	b.WriteString("\n")
	if len(tail) > 0 {
		b.WriteString(SectionHeader(fmt.Sprintf("LAST %d LINES", len(tail)), ColorRed))
		b.WriteString("\n")
		for _, line := range tail {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderVerdict(r *models.Report) string {
	if r.Passed() {
		return passStyle.Render("[PASS] Your changes can be successfully merged and built.")
	}
	return failStyle.Render("[FAILED] Please check your changes.")
}

// RenderError renders a fatal error
func RenderError(err error) string {
	return failStyle.Render("[ERROR]") + " " + err.Error()
}

// elapsed formats a duration as "3m12s"
func elapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}
