package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schmitthub/release-images/internal/engine"
	"github.com/schmitthub/release-images/internal/logging"
	"github.com/schmitthub/release-images/internal/publish"
	"github.com/schmitthub/release-images/internal/registry"
	"github.com/schmitthub/release-images/internal/versions"
)

func runPublish(cmd *cobra.Command, opts runtimeOptions, deps Deps) error {
	logOut := deps.LogOut
	if logOut == nil {
		logOut = cmd.ErrOrStderr()
	}
	log := logging.New(logging.Options{Debug: opts.Debug, Out: logOut})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(opts, deps, log)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx)

	if opts.ReportFile != "" {
		if err := publish.WriteReport(opts.ReportFile, report); err != nil {
			log.Error().Err(err).Str("path", opts.ReportFile).Msg("write report")
			if runErr == nil {
				return err
			}
		}
	}

	if runErr == nil && report.Mode == publish.ModeAlert {
		fmt.Fprintln(cmd.OutOrStdout(), "All supported versions have images.")
	}
	return runErr
}

func newRunner(opts runtimeOptions, deps Deps, log zerolog.Logger) (*publish.Runner, error) {
	minimum, err := versions.ParseMinimum(opts.MinVersion)
	if err != nil {
		return nil, err
	}

	var eng *engine.CLI
	if deps.EngineRunner != nil {
		eng = engine.NewCLIWithRunner(opts.Engine, opts.DryRun, deps.EngineRunner, log)
	} else {
		eng = engine.NewCLI(opts.Engine, opts.DryRun, log)
	}

	discoverer := versions.NewDiscoverer(versions.DiscoverOptions{
		APIURL:  opts.UpstreamAPIURL,
		Repo:    opts.UpstreamRepo,
		Token:   opts.UpstreamToken,
		Minimum: minimum,
	}, deps.HTTPClient, log)

	var inspector registry.Inspector
	switch opts.RegistryAPI {
	case registryAPIOCI:
		inspector = registry.NewOCIInspector(registry.OCIOptions{
			Host:     opts.RegistryHost,
			Repo:     opts.RegistryRepo,
			Username: opts.RegistryUsername,
			Password: opts.RegistryPassword,
			Insecure: opts.RegistryInsecure,
		}, log)
	default:
		inspector = registry.NewHubInspector(opts.RegistryAPIURL, opts.RegistryRepo, deps.HTTPClient, log)
	}

	mode := publish.ModeBuild
	if opts.AlertOnly {
		mode = publish.ModeAlert
	}

	return &publish.Runner{
		Engine:     eng,
		Discoverer: discoverer,
		Inspector:  inspector,
		Orchestrator: &publish.Orchestrator{
			Engine:       eng,
			Repository:   imageRepository(opts),
			BuildContext: opts.BuildContext,
			Dockerfile:   opts.Dockerfile,
			Log:          log.With().Str("component", "orchestrator").Logger(),
		},
		Credentials: publish.Credentials{
			Registry: opts.RegistryHost,
			Username: opts.RegistryUsername,
			Password: opts.RegistryPassword,
		},
		ForceRebuild: opts.ForceRebuild,
		Mode:         mode,
		Log:          log,
	}, nil
}

// imageRepository qualifies the repository with the registry host unless the
// host is Docker Hub, where the engine resolves short names itself.
func imageRepository(opts runtimeOptions) string {
	switch opts.RegistryHost {
	case "", defaultRegistry, "index.docker.io", "registry-1.docker.io":
		return opts.RegistryRepo
	default:
		return opts.RegistryHost + "/" + opts.RegistryRepo
	}
}
