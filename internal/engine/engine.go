package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

const DefaultBinary = "docker"

// Engine is the subset of a container engine CLI the publisher drives.
type Engine interface {
	Login(ctx context.Context, registry, username, password string) error
	Build(ctx context.Context, spec BuildSpec) error
	Push(ctx context.Context, tag string) error
	Tag(ctx context.Context, source, target string) error
	ManifestCreate(ctx context.Context, name string, tags []string) error
	ManifestPush(ctx context.Context, name string) error
}

type BuildSpec struct {
	Tag        string
	Platform   string
	BuildArgs  []BuildArg
	Context    string
	Dockerfile string
}

type BuildArg struct {
	Name  string
	Value string
}

// Runner executes one engine command. stdin may be empty.
type Runner func(ctx context.Context, stdin, name string, args ...string) ([]byte, error)

type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Status returns the child's exit status, or -1 if it never ran.
func (e *CommandError) Status() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// CLI drives docker (or a compatible binary such as podman) through its
// command line.
type CLI struct {
	Binary string
	DryRun bool

	run Runner
	log zerolog.Logger
}

func NewCLI(binary string, dryRun bool, log zerolog.Logger) *CLI {
	return NewCLIWithRunner(binary, dryRun, execRunner, log)
}

func NewCLIWithRunner(binary string, dryRun bool, run Runner, log zerolog.Logger) *CLI {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &CLI{
		Binary: binary,
		DryRun: dryRun,
		run:    run,
		log:    log.With().Str("component", "engine").Str("binary", binary).Logger(),
	}
}

func (c *CLI) Login(ctx context.Context, registry, username, password string) error {
	args := []string{"login"}
	if registry = strings.TrimSpace(registry); registry != "" {
		args = append(args, registry)
	}
	args = append(args, "--username", username, "--password-stdin")
	if err := c.exec(ctx, password, args...); err != nil {
		return fmt.Errorf("registry login as %s: %w", username, err)
	}
	return nil
}

func (c *CLI) Build(ctx context.Context, spec BuildSpec) error {
	args := []string{"build", "--platform", spec.Platform}
	for _, arg := range spec.BuildArgs {
		args = append(args, "--build-arg", arg.Name+"="+arg.Value)
	}
	if spec.Dockerfile != "" {
		args = append(args, "--file", spec.Dockerfile)
	}
	buildContext := spec.Context
	if buildContext == "" {
		buildContext = "."
	}
	args = append(args, "--tag", spec.Tag, buildContext)

	if err := c.exec(ctx, "", args...); err != nil {
		return fmt.Errorf("build %s: %w", spec.Tag, err)
	}
	return nil
}

func (c *CLI) Push(ctx context.Context, tag string) error {
	if err := c.exec(ctx, "", "push", tag); err != nil {
		return fmt.Errorf("push %s: %w", tag, err)
	}
	return nil
}

func (c *CLI) Tag(ctx context.Context, source, target string) error {
	if err := c.exec(ctx, "", "tag", source, target); err != nil {
		return fmt.Errorf("tag %s as %s: %w", source, target, err)
	}
	return nil
}

// ManifestCreate uses --amend so a rerun replaces a manifest list left in the
// local store by an earlier run.
func (c *CLI) ManifestCreate(ctx context.Context, name string, tags []string) error {
	args := append([]string{"manifest", "create", "--amend", name}, tags...)
	if err := c.exec(ctx, "", args...); err != nil {
		return fmt.Errorf("create manifest %s: %w", name, err)
	}
	return nil
}

func (c *CLI) ManifestPush(ctx context.Context, name string) error {
	if err := c.exec(ctx, "", "manifest", "push", name); err != nil {
		return fmt.Errorf("push manifest %s: %w", name, err)
	}
	return nil
}

func (c *CLI) exec(ctx context.Context, stdin string, args ...string) error {
	event := c.log.Debug()
	if c.DryRun {
		event = c.log.Info().Bool("dry_run", true)
	}
	event.Strs("args", args).Msg("engine command")

	if c.DryRun {
		return nil
	}

	out, err := c.run(ctx, stdin, c.Binary, args...)
	if err != nil {
		return &CommandError{
			Args:   append([]string{c.Binary}, args...),
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}
	return nil
}

func execRunner(ctx context.Context, stdin, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}
