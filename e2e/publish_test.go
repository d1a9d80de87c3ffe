package test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/release-images/e2e/harness"
	"github.com/schmitthub/release-images/internal/config"
	"github.com/schmitthub/release-images/internal/publish"
	"github.com/schmitthub/release-images/internal/testenv"
)

func newHarness(t *testing.T, opts ...testenv.Option) *harness.Harness {
	t.Helper()
	opts = append([]testenv.Option{testenv.WithEnv("RELEASE_IMAGES_REGISTRY_PASSWORD", "hunter2")}, opts...)
	h := harness.New(t, opts...)
	h.UpstreamTags = []string{"v3.0.0", "v1.0.0"}
	return h
}

func baseArgs(h *harness.Harness, extra ...string) []string {
	args := []string{
		"--upstream-repo", "acme/widget",
		"--upstream-api-url", h.URL(),
		"--registry-repo", "acme/widget",
		"--registry-api-url", h.URL(),
		"--registry-username", "bot",
		"--min-version", "2.0.0",
	}
	return append(args, extra...)
}

func TestPublishBuildsMissingVersionAndLatest(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h)...)
	require.NoError(t, result.Err, result.Logs)
	assert.Equal(t, 0, result.ExitCode)

	assert.Equal(t, []string{
		"docker login docker.io --username bot --password-stdin",
		"docker build --platform linux/arm64 --build-arg VERSION=v3.0.0 --build-arg ARCH=arm64 --file Dockerfile --tag acme/widget:v3.0.0-arm64 .",
		"docker push acme/widget:v3.0.0-arm64",
		"docker build --platform linux/amd64 --build-arg VERSION=v3.0.0 --build-arg ARCH=amd64 --file Dockerfile --tag acme/widget:v3.0.0-amd64 .",
		"docker push acme/widget:v3.0.0-amd64",
		"docker manifest create --amend acme/widget:v3.0.0 acme/widget:v3.0.0-arm64 acme/widget:v3.0.0-amd64",
		"docker manifest push acme/widget:v3.0.0",
		"docker tag acme/widget:v3.0.0 acme/widget:latest",
		"docker manifest create --amend acme/widget:latest acme/widget:v3.0.0-arm64 acme/widget:v3.0.0-amd64",
		"docker manifest push acme/widget:latest",
	}, h.Engine.Commands)
	assert.Equal(t, "hunter2", h.Engine.Stdin[0])

	assert.Contains(t, result.Logs, "v1.0.0")
	assert.NotContains(t, result.Logs, "hunter2")
}

func TestAlertModeReportsMissingWithoutBuilding(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "alert")...)
	require.Error(t, result.Err)
	assert.Equal(t, 1, result.ExitCode)

	var missing *publish.MissingError
	require.ErrorAs(t, result.Err, &missing)
	assert.Equal(t, []string{"v3.0.0"}, missing.Versions)

	assert.Empty(t, h.Engine.Matching("docker build"))
	assert.Empty(t, h.Engine.Matching("docker push"))
	assert.Empty(t, h.Engine.Matching("docker manifest"))
}

func TestAlertOnlyFlagMatchesPositionalMode(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "--alert-only")...)
	assert.Equal(t, 1, result.ExitCode)
	assert.Empty(t, h.Engine.Matching("docker build"))
}

func TestAlertModeSucceedsWhenEverythingPublished(t *testing.T) {
	h := newHarness(t)
	h.RegistryTags = []string{"v3.0.0", "v3.0.0-arm64", "v3.0.0-amd64", "latest"}

	result := h.Run(baseArgs(h, "alert")...)
	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "All supported versions have images.")
}

func TestUnknownModeIsRejected(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "panic")...)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `unknown mode "panic"`)
	assert.Empty(t, h.Engine.Commands)
}

func TestExistingVersionIsSkippedButLatestRelinked(t *testing.T) {
	h := newHarness(t)
	h.RegistryTags = []string{"v3.0.0", "v3.0.0-arm64", "v3.0.0-amd64"}

	result := h.Run(baseArgs(h)...)
	require.NoError(t, result.Err, result.Logs)

	assert.Empty(t, h.Engine.Matching("docker build"))
	assert.Equal(t, []string{"docker manifest push acme/widget:latest"}, h.Engine.Matching("docker manifest push"))
}

func TestForceRebuildIgnoresRegistry(t *testing.T) {
	h := newHarness(t)
	h.RegistryTags = []string{"v3.0.0"}
	h.FailRegistry = true

	result := h.Run(baseArgs(h, "--force-rebuild")...)
	require.NoError(t, result.Err, result.Logs)

	assert.Len(t, h.Engine.Matching("docker build"), 2)
	assert.Contains(t, h.Engine.Commands, "docker push acme/widget:v3.0.0-arm64")
	assert.Contains(t, h.Engine.Commands, "docker push acme/widget:v3.0.0-amd64")
}

func TestPaginatedDiscovery(t *testing.T) {
	h := newHarness(t)
	h.PageSize = 1
	h.UpstreamTags = []string{"v3.1.0", "v3.0.0", "v2.10.0", "v2.9.0", "v1.0.0"}
	h.RegistryTags = []string{"v3.0.0", "v2.10.0", "v2.9.0"}

	result := h.Run(baseArgs(h, "--min-version", "2.9.0", "alert")...)
	var missing *publish.MissingError
	require.ErrorAs(t, result.Err, &missing)
	assert.Equal(t, []string{"v3.1.0"}, missing.Versions)
}

func TestUpstreamFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.FailUpstream = true

	result := h.Run(baseArgs(h)...)
	require.Error(t, result.Err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Err.Error(), "discover versions")
	assert.Equal(t, []string{"docker login docker.io --username bot --password-stdin"}, h.Engine.Commands)
}

func TestRegistryFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.FailRegistry = true

	result := h.Run(baseArgs(h)...)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "inspect registry")
	assert.Empty(t, h.Engine.Matching("docker build"))
}

func TestLoginFailureStopsBeforeDiscovery(t *testing.T) {
	h := newHarness(t)
	h.FailUpstream = true
	h.Engine.FailOn = "docker login"

	result := h.Run(baseArgs(h)...)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "authenticate to registry")
	assert.Len(t, h.Engine.Commands, 1)
}

func TestBuildFailureStopsTheRun(t *testing.T) {
	h := newHarness(t)
	h.UpstreamTags = []string{"v4.0.0", "v3.0.0"}
	h.Engine.FailOn = "docker build --platform linux/amd64 --build-arg VERSION=v4.0.0"

	result := h.Run(baseArgs(h)...)
	require.Error(t, result.Err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Err.Error(), "simulated failure")

	last := h.Engine.Commands[len(h.Engine.Commands)-1]
	assert.True(t, strings.HasPrefix(last, h.Engine.FailOn), last)
	for _, c := range h.Engine.Commands {
		assert.NotContains(t, c, "v3.0.0")
		assert.NotContains(t, c, "manifest")
	}
}

func TestDryRunRunsNoEngineCommands(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "--dry-run")...)
	require.NoError(t, result.Err, result.Logs)
	assert.Empty(t, h.Engine.Commands)
	assert.Contains(t, result.Logs, "dry_run")
}

func TestMissingRequiredConfiguration(t *testing.T) {
	h := harness.New(t)

	result := h.Run("--upstream-repo", "acme/widget")
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "registry_repo")
	assert.Contains(t, result.Err.Error(), "registry_password")
	assert.Empty(t, h.Engine.Commands)
}

func TestInvalidMinimumVersion(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "--min-version", "2.0")...)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "invalid minimum version")
}

func TestConfigFileAndEnvironmentLayering(t *testing.T) {
	h := newHarness(t,
		testenv.WithEnv("RELEASE_IMAGES_REGISTRY_REPO", "env/widget"),
		testenv.WithEnv("RELEASE_IMAGES_DRY_RUN", "false"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(h.Env.Dirs.Base, "cfg.yaml"), []byte(`
upstream_repo: acme/widget
registry_repo: file/widget
registry_username: bot
min_version: 2.0.0
dockerfile: docker/Dockerfile
build_context: ./src
`), 0o644))

	result := h.Run(
		"--config", filepath.Join(h.Env.Dirs.Base, "cfg.yaml"),
		"--upstream-api-url", h.URL(),
		"--registry-api-url", h.URL(),
	)
	require.NoError(t, result.Err, result.Logs)

	assert.Contains(t, h.Engine.Commands,
		"docker build --platform linux/arm64 --build-arg VERSION=v3.0.0 --build-arg ARCH=arm64 --file docker/Dockerfile --tag env/widget:v3.0.0-arm64 ./src")
}

func TestDotenvFileSuppliesCredentials(t *testing.T) {
	h := harness.New(t)
	h.UpstreamTags = []string{"v3.0.0"}
	require.NoError(t, os.WriteFile(filepath.Join(h.Env.Dirs.Base, ".env"), []byte("RELEASE_IMAGES_REGISTRY_PASSWORD=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RELEASE_IMAGES_REGISTRY_PASSWORD") })

	result := h.Run(baseArgs(h)...)
	require.NoError(t, result.Err, result.Logs)
	assert.Equal(t, "from-dotenv", h.Engine.Stdin[0])
}

func TestMissingExplicitEnvFile(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "--env-file", "nope.env")...)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "nope.env")
}

func TestCustomRegistryHostQualifiesImages(t *testing.T) {
	h := newHarness(t)

	result := h.Run(baseArgs(h, "--registry-host", "ghcr.io", "--engine", "podman")...)
	require.NoError(t, result.Err, result.Logs)
	assert.Equal(t, "podman login ghcr.io --username bot --password-stdin", h.Engine.Commands[0])
	assert.Contains(t, h.Engine.Commands, "podman push ghcr.io/acme/widget:v3.0.0-arm64")
	assert.Contains(t, h.Engine.Commands, "podman manifest push ghcr.io/acme/widget:latest")
}

func TestReportFileIsWritten(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.Env.Dirs.Reports, "run.json")

	result := h.Run(baseArgs(h, "alert", "--report-file", path)...)
	require.Error(t, result.Err)

	report, err := publish.ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, publish.ModeAlert, report.Mode)
	assert.Equal(t, []string{"v3.0.0"}, report.Supported)
	assert.Equal(t, []string{"v1.0.0"}, report.Unsupported)
	assert.Equal(t, []string{"v3.0.0"}, report.Missing)
	assert.Empty(t, report.Built)
}

func TestVersionCommand(t *testing.T) {
	h := harness.New(t)

	result := h.Run("version")
	require.NoError(t, result.Err)
	assert.Equal(t, "release-images test (built test)\n", result.Stdout)
}

func TestConfigInitWritesTemplate(t *testing.T) {
	h := harness.New(t)
	target := filepath.Join(h.Env.Dirs.Base, "conf", "release-images.yaml")

	result := h.Run("config", "init", "--file", target)
	require.NoError(t, result.Err)

	cfg, err := config.Load(target)
	require.NoError(t, err)
	assert.Equal(t, "hub", cfg.RegistryAPI)

	again := h.Run("config", "init", "--file", target)
	require.Error(t, again.Err)

	forced := h.Run("config", "init", "--file", target, "--yes")
	require.NoError(t, forced.Err)
}
