package engine

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	stdin string
	name  string
	args  []string
}

type recorder struct {
	calls  []call
	output string
	err    error
}

func (r *recorder) run(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, call{stdin: stdin, name: name, args: args})
	return []byte(r.output), r.err
}

func TestCLICommandLines(t *testing.T) {
	rec := &recorder{}
	cli := NewCLIWithRunner("", false, rec.run, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, cli.Login(ctx, "docker.io", "bot", "hunter2"))
	require.NoError(t, cli.Build(ctx, BuildSpec{
		Tag:      "acme/widget:v3.0.0-arm64",
		Platform: "linux/arm64",
		BuildArgs: []BuildArg{
			{Name: "VERSION", Value: "v3.0.0"},
			{Name: "ARCH", Value: "arm64"},
		},
		Dockerfile: "build/Dockerfile",
	}))
	require.NoError(t, cli.Push(ctx, "acme/widget:v3.0.0-arm64"))
	require.NoError(t, cli.Tag(ctx, "acme/widget:v3.0.0", "acme/widget:latest"))
	require.NoError(t, cli.ManifestCreate(ctx, "acme/widget:v3.0.0", []string{"acme/widget:v3.0.0-arm64", "acme/widget:v3.0.0-amd64"}))
	require.NoError(t, cli.ManifestPush(ctx, "acme/widget:v3.0.0"))

	want := [][]string{
		{"login", "docker.io", "--username", "bot", "--password-stdin"},
		{"build", "--platform", "linux/arm64", "--build-arg", "VERSION=v3.0.0", "--build-arg", "ARCH=arm64", "--file", "build/Dockerfile", "--tag", "acme/widget:v3.0.0-arm64", "."},
		{"push", "acme/widget:v3.0.0-arm64"},
		{"tag", "acme/widget:v3.0.0", "acme/widget:latest"},
		{"manifest", "create", "--amend", "acme/widget:v3.0.0", "acme/widget:v3.0.0-arm64", "acme/widget:v3.0.0-amd64"},
		{"manifest", "push", "acme/widget:v3.0.0"},
	}
	require.Len(t, rec.calls, len(want))
	for i, w := range want {
		assert.Equal(t, "docker", rec.calls[i].name)
		assert.Equal(t, w, rec.calls[i].args)
	}
	assert.Equal(t, "hunter2", rec.calls[0].stdin)
	assert.Empty(t, rec.calls[1].stdin)
}

func TestCLILoginWithoutRegistryHost(t *testing.T) {
	rec := &recorder{}
	cli := NewCLIWithRunner("podman", false, rec.run, zerolog.Nop())

	require.NoError(t, cli.Login(context.Background(), "", "bot", "pw"))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "podman", rec.calls[0].name)
	assert.Equal(t, []string{"login", "--username", "bot", "--password-stdin"}, rec.calls[0].args)
}

func TestCLIWrapsFailures(t *testing.T) {
	rec := &recorder{output: "  denied: requested access to the resource is denied\n", err: errors.New("exit status 1")}
	cli := NewCLIWithRunner("docker", false, rec.run, zerolog.Nop())

	err := cli.Push(context.Background(), "acme/widget:v3.0.0-amd64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push acme/widget:v3.0.0-amd64")
	assert.Contains(t, err.Error(), "requested access to the resource is denied")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, []string{"docker", "push", "acme/widget:v3.0.0-amd64"}, cmdErr.Args)
	assert.Equal(t, -1, cmdErr.Status())
}

func TestCLIDryRunSkipsExecution(t *testing.T) {
	rec := &recorder{err: errors.New("must not run")}
	cli := NewCLIWithRunner("docker", true, rec.run, zerolog.Nop())

	require.NoError(t, cli.Build(context.Background(), BuildSpec{Tag: "acme/widget:v1.0.0-amd64", Platform: "linux/amd64"}))
	require.NoError(t, cli.ManifestPush(context.Background(), "acme/widget:v1.0.0"))
	assert.Empty(t, rec.calls)
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	cli := NewCLI("sh", false, zerolog.Nop())
	err := cli.exec(context.Background(), "", "-c", "echo nope >&2; exit 3")
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.Status())
	assert.Equal(t, "nope", cmdErr.Output)
}

func TestExecRunnerPassesStdin(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	out, err := execRunner(context.Background(), "secret", "sh", "-c", "cat")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(out))
}
