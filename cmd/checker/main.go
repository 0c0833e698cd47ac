// Command checker verifies that an experiment branch merges cleanly into the
// PhoneLab develop branch and that the merged platform builds. Run it from
// the root of a platform checkout after `source build/envsetup.sh && lunch`.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/build"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/config"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/pipeline"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/ui"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	exp        string
	aospRoot   string
	aospBase   string
	dev        string
	remote     string
	fetch      bool
	jobs       int
	target     string
	variant    string
	envFile    string
	noClean    bool
	configPath string
	verbose    bool
	noColor    bool
}

// execute runs the CLI and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f flags
	code := models.ExitUsage
	ran := false

	rootCmd := &cobra.Command{
		Use:   "checker --exp <EXPERIMENT_CODE_NAME>",
		Short: "Check that an experiment branch merges into develop and builds",
		Long: `Merges your experiment branch into a temporary branch forked from the
PhoneLab develop branch, then builds the platform. Pass this checker before
telling us your experiment changes are ready to deploy.

Run from the root of the platform checkout with the build environment set up
(source build/envsetup.sh && lunch). Your current branches are left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			var err error
			code, err = run(ctx, cmd, &f, stdout, stderr)
			return err
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	fl := rootCmd.Flags()
	fl.StringVar(&f.exp, "exp", "", "Experiment to check; use the experiment code name, not the whole branch name")
	fl.StringVar(&f.aospRoot, "aosp-root", ".", "Root of the platform checkout")
	fl.StringVar(&f.aospBase, "aosp-base", "", "AOSP base release the platform is forked from (default from config)")
	fl.StringVar(&f.dev, "dev", "", "Reference branch (default phonelab/android-<base>/develop)")
	fl.StringVar(&f.remote, "remote", "", "Git remote name (default from config)")
	fl.BoolVar(&f.fetch, "fetch", true, "Fetch the reference branch before merging")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "Parallel build jobs (default 2x CPUs)")
	fl.StringVar(&f.target, "target", "", "Expected build target device; empty skips the check (default from config)")
	fl.StringVar(&f.variant, "variant", "", "Expected build variant; empty skips the check (default from config)")
	fl.StringVar(&f.envFile, "env-file", "", "Dotenv file with extra build environment variables")
	fl.BoolVar(&f.noClean, "no-clean", false, "Skip the clean step before building")
	fl.StringVar(&f.configPath, "config", "", "Config file (default <user config dir>/platform-checker.toml)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose output, including git and build output")
	fl.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	_ = rootCmd.MarkFlagRequired("exp")

	err := rootCmd.Execute()
	if err == nil && !ran {
		// --help and friends
		return models.ExitPass
	}
	if err != nil {
		if !ran {
			fmt.Fprintf(stderr, "Error: %v\n\n%s", err, rootCmd.UsageString())
			return models.ExitUsage
		}
		fmt.Fprintln(stderr, ui.RenderError(err))
		if code == models.ExitUsage {
			fmt.Fprint(stderr, "\n"+rootCmd.UsageString())
		}
	}
	return code
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, stdout, stderr io.Writer) (int, error) {
	if f.exp == "" {
		return models.ExitUsage, errors.New("--exp must not be empty")
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return models.ExitFatal, fmt.Errorf("failed to load config: %w", err)
	}

	ui.SetupColor(stdout, cfg.Output.Color)
	logger := newLogger(stderr, cfg.Output.Verbose)
	defer func() { _ = logger.Sync() }()

	root, err := filepath.Abs(f.aospRoot)
	if err != nil {
		return models.ExitFatal, err
	}
	ws, err := workspace.Discover(root)
	if err != nil {
		return models.ExitFatal, err
	}
	for _, missing := range ws.Missing {
		logger.Warn("Project in manifest is not checked out", zap.String("project", missing))
	}

	env, err := build.Environment(cfg.EnvFilePath())
	if err != nil {
		return models.ExitFatal, err
	}

	opts := pipeline.Options{
		Experiment:      f.exp,
		Namespace:       cfg.ExperimentNamespace(),
		ReferenceBranch: cfg.DevelopBranch(),
		Remote:          cfg.Branches.Remote,
		Fetch:           cfg.Branches.Fetch,
		ProbeProject:    cfg.Branches.ProbeProject,
		BuildSteps:      cfg.BuildSteps(),
		Env:             env,
		RequiredEnv:     cfg.Build.RequiredEnv,
		Target:          cfg.Build.Target,
		Variant:         cfg.Build.Variant,
		TailLines:       cfg.Build.TailLines,
	}
	if cfg.Output.Verbose {
		opts.Output = stderr
	}

	logger.Info("Checking experiment",
		zap.String("experiment", opts.Experiment),
		zap.String("root", ws.Root),
		zap.Int("projects", len(ws.Projects)),
		zap.String("develop", opts.ReferenceBranch))

	report, err := pipeline.New(ws, opts, logger).Run(ctx)
	if report.Merge != nil {
		fmt.Fprint(stdout, ui.RenderReport(report))
	}
	if err != nil {
		return models.ExitFatal, err
	}
	return report.ExitCode(), nil
}

// loadConfig reads the config file and applies explicitly set flags on top
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("aosp-base") {
		cfg.Branches.AospBase = f.aospBase
	}
	if fl.Changed("dev") {
		cfg.Branches.Develop = f.dev
	}
	if fl.Changed("remote") {
		cfg.Branches.Remote = f.remote
	}
	if fl.Changed("fetch") {
		cfg.Branches.Fetch = f.fetch
	}
	if fl.Changed("jobs") {
		cfg.Build.Jobs = f.jobs
	}
	if fl.Changed("target") {
		cfg.Build.Target = f.target
	}
	if fl.Changed("variant") {
		cfg.Build.Variant = f.variant
	}
	if fl.Changed("env-file") {
		cfg.Build.EnvFile = f.envFile
	}
	if f.noClean {
		cfg.Build.Clean = false
	}
	if f.verbose {
		cfg.Output.Verbose = true
	}
	if f.noColor {
		cfg.Output.Color = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}
