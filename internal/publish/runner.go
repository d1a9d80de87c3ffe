package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/schmitthub/release-images/internal/engine"
	"github.com/schmitthub/release-images/internal/registry"
	"github.com/schmitthub/release-images/internal/versions"
)

type Mode string

const (
	ModeBuild Mode = "build"
	ModeAlert Mode = "alert"
)

type Discoverer interface {
	Discover(ctx context.Context) (versions.Discovery, error)
}

type Credentials struct {
	Registry string
	Username string
	Password string
}

type Runner struct {
	Engine       engine.Engine
	Discoverer   Discoverer
	Inspector    registry.Inspector
	Orchestrator *Orchestrator
	Credentials  Credentials
	ForceRebuild bool
	Mode         Mode
	Log          zerolog.Logger
}

// Report summarizes one run. Missing holds the versions that had no image
// when the run started, whether or not this run built them.
type Report struct {
	Mode        Mode     `json:"mode"`
	Forced      bool     `json:"forced"`
	Supported   []string `json:"supported"`
	Unsupported []string `json:"unsupported"`
	Existing    []string `json:"existing"`
	Missing     []string `json:"missing"`
	Built       []string `json:"built"`
	Latest      string   `json:"latest,omitempty"`
}

// MissingError is returned in alert mode when at least one supported version
// has no published image.
type MissingError struct {
	Versions []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%d version(s) missing an image: %s", len(e.Versions), strings.Join(e.Versions, ", "))
}

func (e *MissingError) ExitCode() int {
	return 1
}

func (r *Runner) Run(ctx context.Context) (Report, error) {
	mode := r.Mode
	if mode == "" {
		mode = ModeBuild
	}
	report := Report{
		Mode:     mode,
		Forced:   r.ForceRebuild,
		Existing: []string{},
		Missing:  []string{},
		Built:    []string{},
	}
	log := r.Log.With().Str("mode", string(mode)).Logger()

	if err := r.Engine.Login(ctx, r.Credentials.Registry, r.Credentials.Username, r.Credentials.Password); err != nil {
		return report, fmt.Errorf("authenticate to registry: %w", err)
	}

	discovery, err := r.Discoverer.Discover(ctx)
	if err != nil {
		return report, fmt.Errorf("discover versions: %w", err)
	}
	report.Supported = discovery.Supported
	report.Unsupported = discovery.Unsupported

	existing := registry.TagSet{}
	if r.ForceRebuild {
		log.Warn().Msg("force rebuild set, skipping registry check")
	} else {
		existing, err = r.Inspector.ExistingTags(ctx)
		if err != nil {
			return report, fmt.Errorf("inspect registry: %w", err)
		}
		report.Existing = existing.Sorted()
	}

	for _, version := range discovery.Supported {
		if registry.HasImage(version, existing) {
			log.Debug().Str("version", version).Msg("image exists, skipping")
			continue
		}
		report.Missing = append(report.Missing, version)

		if mode == ModeAlert {
			log.Warn().Str("version", version).Msg("image missing")
			continue
		}

		if err := r.Orchestrator.Publish(ctx, version); err != nil {
			return report, err
		}
		report.Built = append(report.Built, version)
	}

	if mode == ModeAlert {
		if len(report.Missing) > 0 {
			log.Error().Strs("missing", report.Missing).Msg("versions without images")
			return report, &MissingError{Versions: report.Missing}
		}
		log.Info().Msg("all supported versions have images")
		return report, nil
	}

	latest, ok := discovery.Latest()
	if !ok {
		log.Warn().Msg("no supported versions, not linking latest")
		return report, nil
	}
	if err := r.Orchestrator.LinkLatest(ctx, latest); err != nil {
		return report, err
	}
	report.Latest = latest

	log.Info().Strs("built", report.Built).Str("latest", latest).Msg("run complete")
	return report, nil
}
