package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Defaults.Parallel)
	assert.True(t, cfg.Defaults.KeepGoing)
	assert.Equal(t, 30*time.Minute, cfg.Defaults.BuildTimeout())
	assert.Equal(t, "pw-build", cfg.Builder.Command)
}

func TestLoadOverridesDefaults(t *testing.T) {
	data := `
target: epoxy
series: plucky
build_type: binary
defaults:
  parallel: 8
  keep_going: false
  max_failures: 3
paths:
  state_root: /var/lib/packwright/state
  index_path: /var/cache/packwright/index.json
builder:
  command: sbuild-wrapper
  args: ["--chroot", "plucky-amd64"]
retired:
  - python-nose
soft_exclusions:
  - "nova:python-oslo.messaging"
optional_build_deps:
  - python3-sphinxcontrib-apidoc
projects:
  python-oslo.log: oslo.log
`
	path := filepath.Join(t.TempDir(), "packwright.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "epoxy", cfg.Target)
	assert.Equal(t, "plucky", cfg.Series)
	assert.Equal(t, 8, cfg.Defaults.Parallel)
	assert.False(t, cfg.Defaults.KeepGoing)
	assert.Equal(t, 3, cfg.Defaults.MaxFailures)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 30*time.Minute, cfg.Defaults.BuildTimeout())
	assert.Equal(t, "/var/lib/packwright/state", cfg.Paths.StateRoot)
	assert.Equal(t, "sbuild-wrapper", cfg.Builder.Command)
	assert.Equal(t, []string{"python-nose"}, cfg.Retired)
	assert.True(t, cfg.SoftExclusionSet()["nova:python-oslo.messaging"])
	assert.True(t, cfg.OptionalBuildDepSet()["python3-sphinxcontrib-apidoc"])
	assert.Equal(t, "oslo.log", cfg.Projects["python-oslo.log"])
}

func TestBuildTimeout(t *testing.T) {
	assert.Equal(t, time.Hour, Defaults{Timeout: "1h"}.BuildTimeout())
	assert.Equal(t, 30*time.Minute, Defaults{Timeout: "soon"}.BuildTimeout())
	assert.Equal(t, 30*time.Minute, Defaults{}.BuildTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadClampsParallel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packwright.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  parallel: -2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Defaults.Parallel)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packwright.yaml")
	require.NoError(t, os.WriteFile(path, []byte("series: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
