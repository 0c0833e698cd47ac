// Package build runs the platform build against a checkout and turns its
// exit status into a check result.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"

	"go.uber.org/zap"
)

// ToolError indicates a build step could not be run at all
type ToolError struct {
	Command string
	Err     error
}

func (e *ToolError) Error() string {
	return "cannot run " + e.Command + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error { return e.Err }

// Runner runs build steps in order, stopping at the first failing one
type Runner struct {
	// Dir is the checkout root the build runs in
	Dir   string
	Env   []string
	Steps [][]string
	// TailLines is how much output a BuildFailure carries
	TailLines int
	// Output receives the live build output when non-nil
	Output io.Writer

	logger *zap.Logger
}

// NewRunner creates a Runner
func NewRunner(dir string, env []string, steps [][]string, tailLines int, logger *zap.Logger) *Runner {
	return &Runner{
		Dir:       dir,
		Env:       env,
		Steps:     steps,
		TailLines: tailLines,
		logger:    logger,
	}
}

// Run executes the steps. A step exiting non-zero yields a BuildFailure; a
// step that cannot be started, or a cancelled context, is an error.
func (r *Runner) Run(ctx context.Context) (models.CheckResult, error) {
	if len(r.Steps) == 0 {
		return nil, errors.New("no build steps configured")
	}

	tail := newTailWriter(r.TailLines)
	var out io.Writer = tail
	if r.Output != nil {
		out = io.MultiWriter(tail, r.Output)
	}

	for _, step := range r.Steps {
		if len(step) == 0 || step[0] == "" {
			return nil, errors.New("empty build step")
		}
		command := strings.Join(step, " ")
		r.logger.Info("Running build step", zap.String("command", command), zap.String("dir", r.Dir))

		start := time.Now()
		cmd := exec.CommandContext(ctx, step[0], step[1:]...)
		cmd.Dir = r.Dir
		cmd.Env = r.Env
		cmd.Stdout = out
		cmd.Stderr = out

		err := cmd.Run()
		r.logger.Debug("Build step finished",
			zap.String("command", command),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("build interrupted: %w", ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return models.BuildFailure(exitErr.ExitCode(), tail.Lines()), nil
		}
		return nil, &ToolError{Command: command, Err: err}
	}

	return models.Success, nil
}
