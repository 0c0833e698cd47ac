package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const fileName = "platform-checker.toml"

type Config struct {
	Branches BranchesConfig `toml:"branches"`
	Build    BuildConfig    `toml:"build"`
	Output   OutputConfig   `toml:"output"`
}

type BranchesConfig struct {
	// AospBase is the AOSP release the platform was forked from (e.g. "5.1.1_r3")
	AospBase string `toml:"aosp_base"`
	// ExperimentPrefix is the namespace experiment branches live under
	ExperimentPrefix string `toml:"experiment_prefix"`
	// Develop overrides the reference branch; empty means DevelopBranch()
	Develop string `toml:"develop"`
	Remote  string `toml:"remote"`
	Fetch   bool   `toml:"fetch"`
	// ProbeProject is the project used to resolve the experiment branch
	ProbeProject string `toml:"probe_project"`
}

type BuildConfig struct {
	Make    string   `toml:"make"`
	Jobs    int      `toml:"jobs"`
	Targets []string `toml:"targets"`
	Clean   bool     `toml:"clean"`
	// Command replaces the make invocation entirely when set
	Command     []string `toml:"command"`
	Target      string   `toml:"target"`
	Variant     string   `toml:"variant"`
	RequiredEnv []string `toml:"required_env"`
	EnvFile     string   `toml:"env_file"`
	TailLines   int      `toml:"tail_lines"`
}

type OutputConfig struct {
	Color   bool `toml:"color"`
	Verbose bool `toml:"verbose"`
}

func DefaultConfig() *Config {
	return &Config{
		Branches: BranchesConfig{
			AospBase:         "5.1.1_r3",
			ExperimentPrefix: "experiment",
			Remote:           "aosp",
			Fetch:            true,
			ProbeProject:     "frameworks/base",
		},
		Build: BuildConfig{
			Make:        "make",
			Jobs:        runtime.NumCPU() * 2,
			Targets:     []string{"dist"},
			Clean:       true,
			Target:      "hammerhead",
			Variant:     "userdebug",
			RequiredEnv: []string{"TARGET_PRODUCT", "TARGET_BUILD_VARIANT"},
			TailLines:   40,
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}

// Path returns the default config file location
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, fileName), nil
}

// Load reads the config at the default location, writing the defaults there
// when no file exists yet.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	return load(path, true)
}

// LoadFile reads the config at an explicit path. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	return load(expandTilde(path), false)
}

func load(path string, saveDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && saveDefaults {
			cfg := DefaultConfig()
			_ = cfg.SaveTo(path) // Best effort save
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Branches.AospBase == "" && c.Branches.Develop == "" {
		return fmt.Errorf("branches.aosp_base or branches.develop must be set")
	}
	if c.Branches.ExperimentPrefix == "" {
		return fmt.Errorf("branches.experiment_prefix must not be empty")
	}
	if c.Build.Jobs < 1 {
		return fmt.Errorf("build.jobs must be positive, got %d", c.Build.Jobs)
	}
	if c.Build.TailLines < 0 {
		return fmt.Errorf("build.tail_lines must not be negative, got %d", c.Build.TailLines)
	}
	if len(c.Build.Command) == 0 && c.Build.Make == "" {
		return fmt.Errorf("build.make or build.command must be set")
	}
	return nil
}

func (c *Config) SaveTo(path string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DevelopBranch returns the reference branch experiments must merge into
func (c *Config) DevelopBranch() string {
	if c.Branches.Develop != "" {
		return c.Branches.Develop
	}
	return fmt.Sprintf("phonelab/android-%s/develop", c.Branches.AospBase)
}

// ExperimentNamespace returns the branch namespace experiments are created
// under, e.g. "experiment/android-5.1.1_r3"
func (c *Config) ExperimentNamespace() string {
	return fmt.Sprintf("%s/android-%s", c.Branches.ExperimentPrefix, c.Branches.AospBase)
}

// BuildSteps returns the commands the build check runs, in order
func (c *Config) BuildSteps() [][]string {
	if len(c.Build.Command) > 0 {
		return [][]string{c.Build.Command}
	}

	var steps [][]string
	if c.Build.Clean {
		steps = append(steps, []string{c.Build.Make, "clean"})
	}
	build := []string{c.Build.Make, fmt.Sprintf("-j%d", c.Build.Jobs)}
	build = append(build, c.Build.Targets...)
	return append(steps, build)
}

// EnvFilePath returns the configured dotenv file with ~ expanded
func (c *Config) EnvFilePath() string {
	return expandTilde(c.Build.EnvFile)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
