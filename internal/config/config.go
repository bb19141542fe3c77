// Package config loads the packwright configuration file. All paths and
// policy knobs live here; commands only read flags on top of this.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// Target names the release the run builds for, recorded in run state.
	Target string `yaml:"target"`
	// Series is the distribution series the packages target.
	Series string `yaml:"series"`
	// BuildType selects the build flavor passed to the builder command.
	BuildType string `yaml:"build_type"`

	Defaults Defaults `yaml:"defaults"`
	Paths    Paths    `yaml:"paths"`
	Builder  Builder  `yaml:"builder"`

	// Retired lists source packages that must never be scheduled.
	Retired []string `yaml:"retired"`
	// SoftExclusions lists dependency edges to drop from the graph,
	// "<source>:<dependency>" per entry.
	SoftExclusions []string `yaml:"soft_exclusions"`
	// OptionalBuildDeps lists binary dependencies whose absence from the
	// index is tolerated during graph construction.
	OptionalBuildDeps []string `yaml:"optional_build_deps"`

	// Projects maps source package names to upstream project names where
	// the two differ.
	Projects map[string]string `yaml:"projects"`
	// UpstreamVersions pins the upstream version per source package, used
	// to locate tarball cache extractions.
	UpstreamVersions map[string]string `yaml:"upstream_versions"`
}

// Defaults holds run policy defaults, overridable per invocation by flags.
type Defaults struct {
	Parallel    int    `yaml:"parallel"`
	KeepGoing   bool   `yaml:"keep_going"`
	MaxFailures int    `yaml:"max_failures"`
	Timeout     string `yaml:"timeout"`
}

// BuildTimeout parses the per-package timeout. An empty or invalid value
// falls back to 30 minutes.
func (d Defaults) BuildTimeout() time.Duration {
	t, err := time.ParseDuration(d.Timeout)
	if err != nil || t <= 0 {
		return 30 * time.Minute
	}
	return t
}

// Paths locates the external inputs and the run workspace.
type Paths struct {
	StateRoot     string `yaml:"state_root"`
	IndexPath     string `yaml:"index_path"`
	SourcesPath   string `yaml:"sources_path"`
	PackagingRoot string `yaml:"packaging_root"`
	TarballCache  string `yaml:"tarball_cache"`
	LogRoot       string `yaml:"log_root"`
}

// Builder names the external command that builds one source package.
type Builder struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Series:    "devel",
		BuildType: "source",
		Defaults: Defaults{
			Parallel:    4,
			KeepGoing:   true,
			MaxFailures: 0,
			Timeout:     "30m",
		},
		Paths: Paths{
			StateRoot: ".packwright/state",
			LogRoot:   ".packwright/logs",
		},
		Builder: Builder{Command: "pw-build"},
	}
}

// Load reads a YAML configuration file over the defaults. Zero-valued
// fields in the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Defaults.Parallel < 1 {
		cfg.Defaults.Parallel = 1
	}
	return cfg, nil
}

// SoftExclusionSet converts the list form into the lookup the graph builder
// takes.
func (c *Config) SoftExclusionSet() map[string]bool {
	set := make(map[string]bool, len(c.SoftExclusions))
	for _, e := range c.SoftExclusions {
		set[e] = true
	}
	return set
}

// OptionalBuildDepSet converts the list form into a lookup set.
func (c *Config) OptionalBuildDepSet() map[string]bool {
	set := make(map[string]bool, len(c.OptionalBuildDeps))
	for _, d := range c.OptionalBuildDeps {
		set[d] = true
	}
	return set
}
