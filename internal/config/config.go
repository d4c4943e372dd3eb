package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Dir is the per-project (and per-user) state directory.
const Dir = ".autoship"

// Dev server modes.
const (
	DevModePersistent = "persistent"
	DevModeSmokeTest  = "smoke-test"
)

// Deploy strategies.
const (
	StrategyExternalTool = "external-tool"
	StrategyBranchSwap   = "manual-branch-swap"
)

// Config is the top-level configuration structure.
type Config struct {
	OutputDir   string          `yaml:"output_dir"`
	Artifact    ArtifactConfig  `yaml:"artifact"`
	Build       BuildConfig     `yaml:"build"`
	DevServer   DevServerConfig `yaml:"dev_server"`
	WaitSeconds int             `yaml:"wait_seconds"`
	Git         GitConfig       `yaml:"git"`
	Deploy      DeployConfig    `yaml:"deploy"`
	LogLevel    string          `yaml:"log_level"`
}

type ArtifactConfig struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
}

type BuildConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

type DevServerConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Command       string   `yaml:"command"`
	Mode          string   `yaml:"mode"`
	ReadyPattern  string   `yaml:"ready_pattern"`
	QuietPatterns []string `yaml:"quiet_patterns"`
	ErrorPatterns []string `yaml:"error_patterns"`
	ReadyURL      string   `yaml:"ready_url"`
	StopGrace     string   `yaml:"stop_grace"`
}

type GitConfig struct {
	Remote        string `yaml:"remote"`
	Branch        string `yaml:"branch"`
	CommitMessage string `yaml:"commit_message"`
}

type DeployConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Strategy string `yaml:"strategy"`
	Command  string `yaml:"command"`
	Branch   string `yaml:"branch"`
	Message  string `yaml:"message"`
}

// StopGraceDuration returns the parsed dev_server.stop_grace, defaulting to 5s.
func (c *Config) StopGraceDuration() time.Duration {
	d, err := time.ParseDuration(c.DevServer.StopGrace)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Validate checks that required fields are present and enumerations are known.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Artifact.Prefix == "" && c.Artifact.Suffix == "" {
		return fmt.Errorf("artifact.prefix or artifact.suffix is required")
	}
	if c.WaitSeconds < 0 {
		return fmt.Errorf("wait_seconds must not be negative, got %d", c.WaitSeconds)
	}
	if c.Build.Enabled && c.Build.Command == "" {
		return fmt.Errorf("build.command is required when build is enabled")
	}
	if c.DevServer.Enabled {
		if c.DevServer.Command == "" {
			return fmt.Errorf("dev_server.command is required when the dev server is enabled")
		}
		switch c.DevServer.Mode {
		case DevModePersistent, DevModeSmokeTest:
		default:
			return fmt.Errorf("dev_server.mode must be %q or %q, got %q", DevModePersistent, DevModeSmokeTest, c.DevServer.Mode)
		}
		if c.DevServer.StopGrace != "" {
			if _, err := time.ParseDuration(c.DevServer.StopGrace); err != nil {
				return fmt.Errorf("dev_server.stop_grace: %w", err)
			}
		}
		patterns := append([]string{c.DevServer.ReadyPattern}, c.DevServer.QuietPatterns...)
		patterns = append(patterns, c.DevServer.ErrorPatterns...)
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("dev_server pattern %q: %w", p, err)
			}
		}
	}
	if c.Git.Remote == "" || c.Git.Branch == "" {
		return fmt.Errorf("git.remote and git.branch are required")
	}
	if c.Deploy.Enabled {
		switch c.Deploy.Strategy {
		case StrategyExternalTool:
			if c.Deploy.Command == "" {
				return fmt.Errorf("deploy.command is required for the %s strategy", StrategyExternalTool)
			}
		case StrategyBranchSwap:
			if c.Deploy.Branch == "" {
				return fmt.Errorf("deploy.branch is required for the %s strategy", StrategyBranchSwap)
			}
			if c.Deploy.Branch == c.Git.Branch {
				return fmt.Errorf("deploy.branch must differ from git.branch (%q)", c.Git.Branch)
			}
		default:
			return fmt.Errorf("deploy.strategy must be %q or %q, got %q", StrategyExternalTool, StrategyBranchSwap, c.Deploy.Strategy)
		}
	}
	return nil
}

// Load resolves config from defaults → user → project → environment. The
// project file is read from root.
func Load(ctx context.Context, root string) (*Config, error) {
	cfg := Defaults()

	// user-level config
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, Dir, "config.yaml")
		if err := mergeFile(cfg, userPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	// project-level config
	projectPath := filepath.Join(root, Dir, "config.yaml")
	if err := mergeFile(cfg, projectPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	// environment (highest priority below flags)
	if err := applyEnv(ctx, cfg, envconfig.OsLookuper()); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	return cfg, nil
}

func mergeFile(dst *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// envOverrides lists the AUTOSHIP_* variables. Unset variables leave the
// pointer nil so the file value survives.
type envOverrides struct {
	WaitSeconds    *int    `env:"WAIT_SECONDS, noinit"`
	DevMode        *string `env:"DEV_MODE, noinit"`
	DeployStrategy *string `env:"DEPLOY_STRATEGY, noinit"`
	Remote         *string `env:"REMOTE, noinit"`
	Branch         *string `env:"BRANCH, noinit"`
	OutputDir      *string `env:"OUTPUT_DIR, noinit"`
	LogLevel       *string `env:"LOG_LEVEL, noinit"`
}

func applyEnv(ctx context.Context, dst *Config, lookuper envconfig.Lookuper) error {
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: envconfig.PrefixLookuper("AUTOSHIP_", lookuper),
	}); err != nil {
		return err
	}

	if env.WaitSeconds != nil {
		dst.WaitSeconds = *env.WaitSeconds
	}
	if env.DevMode != nil {
		dst.DevServer.Mode = *env.DevMode
	}
	if env.DeployStrategy != nil {
		dst.Deploy.Strategy = *env.DeployStrategy
	}
	if env.Remote != nil {
		dst.Git.Remote = *env.Remote
	}
	if env.Branch != nil {
		dst.Git.Branch = *env.Branch
	}
	if env.OutputDir != nil {
		dst.OutputDir = *env.OutputDir
	}
	if env.LogLevel != nil {
		dst.LogLevel = *env.LogLevel
	}
	return nil
}

// Defaults suit a yarn + webpack project published to GitHub Pages.
func Defaults() *Config {
	return &Config{
		OutputDir: "dist",
		Artifact: ArtifactConfig{
			Prefix: "bundle",
			Suffix: ".js",
		},
		Build: BuildConfig{
			Enabled: false,
			Command: "yarn build",
		},
		DevServer: DevServerConfig{
			Enabled:      true,
			Command:      "yarn dev",
			Mode:         DevModePersistent,
			ReadyPattern: `compiled successfully`,
			QuietPatterns: []string{
				`DeprecationWarning`,
				`\[webpack-dev-server\]`,
				`^\s*$`,
			},
			ErrorPatterns: []string{
				`ERROR`,
				`Module not found`,
				`Failed to compile`,
			},
			StopGrace: "5s",
		},
		WaitSeconds: 30,
		Git: GitConfig{
			Remote:        "origin",
			Branch:        "main",
			CommitMessage: "build: novo hash/bundle gerado - {{artifact}}",
		},
		Deploy: DeployConfig{
			Enabled:  true,
			Strategy: StrategyExternalTool,
			Command:  "yarn gh-pages -d dist",
			Branch:   "gh-pages",
			Message:  "deploy: {{artifact}}",
		},
		LogLevel: "info",
	}
}
