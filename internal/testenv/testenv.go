// Package testenv provides isolated test environments: a temp working
// directory, a scrubbed RELEASE_IMAGES_* environment and an optional config
// file on disk.
//
// Usage:
//
//	env := testenv.New(t)
//	env.Dirs.Base // temp root, also the working directory
//
//	env := testenv.New(t, testenv.WithConfig(yamlString))
//	env.ConfigPath // path to pass to --config
//	env.Config     // parsed *config.FileConfig
package testenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schmitthub/release-images/internal/config"
)

type IsolatedDirs struct {
	Base    string // temp root and working directory
	Reports string
}

type Env struct {
	Dirs       IsolatedDirs
	ConfigPath string
	Config     *config.FileConfig
}

type Option func(t *testing.T, e *Env)

// WithConfig writes yaml to <base>/release-images.yaml and parses it.
func WithConfig(yaml string) Option {
	return func(t *testing.T, e *Env) {
		t.Helper()
		cfg, err := config.FromString(yaml)
		if err != nil {
			t.Fatalf("testenv: parsing config: %v", err)
		}
		path := filepath.Join(e.Dirs.Base, "release-images.yaml")
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatalf("testenv: writing config: %v", err)
		}
		e.Config = &cfg
		e.ConfigPath = path
	}
}

// WithEnv sets one variable for the lifetime of the test.
func WithEnv(name, value string) Option {
	return func(t *testing.T, _ *Env) {
		t.Helper()
		t.Setenv(name, value)
	}
}

// New creates the environment and chdirs into it (restored on cleanup) so a
// stray .env in the repository never leaks into a test.
func New(t *testing.T, opts ...Option) *Env {
	t.Helper()

	// Resolve symlinks so paths match os.Getwd() after chdir (macOS: /var → /private/var).
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("testenv: resolving temp dir symlinks: %v", err)
	}

	dirs := IsolatedDirs{
		Base:    base,
		Reports: filepath.Join(base, "reports"),
	}
	if err := os.MkdirAll(dirs.Reports, 0o755); err != nil {
		t.Fatalf("testenv: creating dir %s: %v", dirs.Reports, err)
	}

	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "RELEASE_IMAGES_") || name == "GITHUB_TOKEN" {
			t.Setenv(name, "")
			if err := os.Unsetenv(name); err != nil {
				t.Fatalf("testenv: unsetting %s: %v", name, err)
			}
		}
	}

	prevDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("testenv: getting cwd: %v", err)
	}
	if err := os.Chdir(base); err != nil {
		t.Fatalf("testenv: chdir to %s: %v", base, err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(prevDir)
	})

	env := &Env{Dirs: dirs}
	for _, opt := range opts {
		opt(t, env)
	}

	return env
}
