// Package pipeline checks that an experiment branch merges cleanly into the
// reference branch and that the merged tree builds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/build"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/git"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/workspace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TempBranchPrefix namespaces the throwaway branches the merge check creates
const TempBranchPrefix = "checker/"

// Options configures one run
type Options struct {
	// Experiment is the experiment code name
	Experiment string
	// Namespace is where experiment branches live, e.g. "experiment/android-5.1.1_r3"
	Namespace       string
	ReferenceBranch string
	Remote          string
	// Fetch refreshes the reference branch from Remote before merging
	Fetch bool
	// ProbeProject is the project the experiment branch is looked up in
	ProbeProject string

	BuildSteps  [][]string
	Env         []string
	RequiredEnv []string
	Target      string
	Variant     string
	TailLines   int

	// Output receives git and build output when non-nil
	Output io.Writer
}

// Pipeline runs the merge check and then the build check
type Pipeline struct {
	ws     *workspace.Workspace
	opts   Options
	git    *git.CLI
	logger *zap.Logger
}

// New creates a Pipeline over the projects of ws
func New(ws *workspace.Workspace, opts Options, logger *zap.Logger) *Pipeline {
	cli := git.NewCLI(logger)
	cli.Output = opts.Output
	return &Pipeline{ws: ws, opts: opts, git: cli, logger: logger}
}

// checkout is a project switched to the temp branch
type checkout struct {
	project models.Project
	head    git.HeadState
	merging bool
}

// Run executes the pipeline. Merge conflicts and build failures are reported
// in the returned Report; err is non-nil only when a tool or the environment
// failed, in which case the Report holds whatever completed before.
// Every project is back on its original HEAD when Run returns.
func (p *Pipeline) Run(ctx context.Context) (report *models.Report, err error) {
	report = &models.Report{
		ReferenceBranch: p.opts.ReferenceBranch,
		Projects:        p.ws.Projects,
		Stage:           models.NotStarted,
	}

	if p.opts.Experiment == "" {
		return report, errors.New("experiment code must not be empty")
	}

	if err := p.preflight(ctx); err != nil {
		return report, err
	}

	probe := p.ws.Probe(p.opts.ProbeProject)
	exp, err := git.FindExperimentBranch(probe.Dir, p.opts.Remote, p.opts.Namespace, p.opts.Experiment)
	if err != nil {
		return report, err
	}
	report.Experiment = exp
	p.logger.Info("Resolved experiment branch",
		zap.String("experiment", exp.Code),
		zap.String("branch", exp.Branch),
		zap.String("project", probe.Path))

	starts, err := p.resolveReference()
	if err != nil {
		return report, err
	}

	tempBranch := TempBranchPrefix + uuid.NewString()
	var touched []*checkout
	defer func() {
		if cerr := p.cleanup(ctx, tempBranch, touched); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	start := time.Now()
	conflicts, err := p.merge(ctx, exp, tempBranch, starts, &touched)
	report.MergeDuration = time.Since(start)
	if err != nil {
		return report, err
	}
	p.logger.Info("Merge check finished",
		zap.Duration("elapsed", report.MergeDuration),
		zap.Int("conflicts", len(conflicts)))

	report.Stage = models.MergeChecked
	if len(conflicts) > 0 {
		report.Merge = models.MergeConflict(conflicts)
		report.Stage = models.Done
		return report, nil
	}
	report.Merge = models.Success

	// the build needs the merged tree, so it only runs after a clean merge
	runner := build.NewRunner(p.ws.Root, p.opts.Env, p.opts.BuildSteps, p.opts.TailLines, p.logger)
	runner.Output = p.opts.Output

	start = time.Now()
	result, err := runner.Run(ctx)
	report.BuildDuration = time.Since(start)
	if err != nil {
		return report, err
	}
	report.Stage = models.BuildChecked
	p.logger.Info("Build check finished", zap.Duration("elapsed", report.BuildDuration))

	report.Build = result
	report.Stage = models.Done
	return report, nil
}

// preflight fails fast on anything that would make the checks meaningless
func (p *Pipeline) preflight(ctx context.Context) error {
	if err := build.CheckEnv(p.opts.Env, p.opts.RequiredEnv, p.opts.Target, p.opts.Variant); err != nil {
		return err
	}

	for _, proj := range p.ws.Projects {
		if err := p.git.EnsureClean(ctx, proj.Dir); err != nil {
			return err
		}
	}

	if !p.opts.Fetch {
		return nil
	}
	for _, proj := range p.ws.Projects {
		p.logger.Info("Fetching reference branch",
			zap.String("project", proj.Path),
			zap.String("remote", p.opts.Remote),
			zap.String("branch", p.opts.ReferenceBranch))
		if err := p.git.Fetch(ctx, proj.Dir, p.opts.Remote, p.opts.ReferenceBranch); err != nil {
			return fmt.Errorf("fetch %s: %w", proj.Path, err)
		}
	}
	return nil
}

// resolveReference finds the reference branch in every project
func (p *Pipeline) resolveReference() (map[string]string, error) {
	starts := make(map[string]string, len(p.ws.Projects))
	for _, proj := range p.ws.Projects {
		ref, err := git.ResolveBranch(proj.Dir, p.opts.Remote, p.opts.ReferenceBranch, p.opts.Fetch)
		if err != nil {
			return nil, err
		}
		starts[proj.Path] = ref
	}
	return starts, nil
}

// merge forks tempBranch off the reference branch in every project and
// merges the experiment into it, collecting conflicting paths.
func (p *Pipeline) merge(ctx context.Context, exp models.Experiment, tempBranch string, starts map[string]string, touched *[]*checkout) ([]string, error) {
	var conflicts []string

	for _, proj := range p.ws.Projects {
		head, err := git.ReadHead(proj.Dir)
		if err != nil {
			return nil, err
		}

		if err := p.git.CheckoutNewBranch(ctx, proj.Dir, tempBranch, starts[proj.Path]); err != nil {
			return nil, err
		}
		co := &checkout{project: proj, head: head}
		*touched = append(*touched, co)

		if !git.HasRef(proj.Dir, exp.Ref) {
			p.logger.Debug("Project has no experiment branch", zap.String("project", proj.Path))
			continue
		}

		p.logger.Info("Merging experiment",
			zap.String("project", proj.Path),
			zap.String("branch", exp.Branch),
			zap.String("into", starts[proj.Path]))

		co.merging = true
		paths, err := p.git.Merge(ctx, proj.Dir, exp.Ref)
		if err != nil {
			return nil, err
		}
		if len(paths) > 0 {
			for _, path := range paths {
				conflicts = append(conflicts, proj.Qualify(path))
			}
			if err := p.git.AbortMerge(ctx, proj.Dir); err != nil {
				return nil, err
			}
		}
		co.merging = false
	}

	sort.Strings(conflicts)
	return conflicts, nil
}

// cleanup puts every touched project back on its recorded HEAD and deletes
// the temp branch. It runs even when ctx was cancelled.
func (p *Pipeline) cleanup(ctx context.Context, tempBranch string, touched []*checkout) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(touched) - 1; i >= 0; i-- {
		co := touched[i]
		dir := co.project.Dir

		if co.merging {
			// best effort, a failed merge may not have left anything to abort
			_ = p.git.AbortMerge(ctx, dir)
		}
		// the tree was clean before the run, so tracked changes are the
		// merge's or the build's own
		if err := p.git.ForceCheckout(ctx, dir, co.head.Checkout()); err != nil {
			errs = append(errs, fmt.Errorf("restore %s to %s: %w", co.project.Path, co.head, err))
			continue
		}
		if err := p.git.DeleteBranch(ctx, dir, tempBranch); err != nil {
			errs = append(errs, fmt.Errorf("delete %s in %s: %w", tempBranch, co.project.Path, err))
		}

		after, err := git.ReadHead(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if after != co.head {
			errs = append(errs, fmt.Errorf("%s: HEAD is %s, expected %s", co.project.Path, after, co.head))
		}
	}

	if len(touched) > 0 {
		p.logger.Debug("Cleaned up temp branch",
			zap.String("branch", tempBranch),
			zap.Int("projects", len(touched)))
	}
	return errors.Join(errs...)
}
