package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/schmitthub/release-images/internal/engine"
)

const LatestTag = "latest"

type State string

const (
	StatePending        State = "PENDING"
	StateBuilding       State = "BUILDING"
	StatePushed         State = "PUSHED"
	StateManifestLinked State = "MANIFEST_LINKED"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Arch is one target architecture. Name doubles as the tag suffix and the
// ARCH build argument.
type Arch struct {
	Name     string
	Platform string
}

// DefaultArchitectures is built in this order, ARM first.
var DefaultArchitectures = []Arch{
	{Name: "arm64", Platform: "linux/arm64"},
	{Name: "amd64", Platform: "linux/amd64"},
}

// Target is a single (version, architecture) image.
type Target struct {
	Version string
	Arch    Arch
}

type Orchestrator struct {
	Engine        engine.Engine
	Repository    string
	Architectures []Arch
	BuildContext  string
	Dockerfile    string
	Log           zerolog.Logger
}

func (o *Orchestrator) architectures() []Arch {
	if len(o.Architectures) == 0 {
		return DefaultArchitectures
	}
	return o.Architectures
}

func (o *Orchestrator) imageRef(tag string) string {
	return strings.TrimSpace(o.Repository) + ":" + tag
}

func (o *Orchestrator) targetRef(t Target) string {
	return o.imageRef(t.Version + "-" + t.Arch.Name)
}

// ArchTags lists the per-architecture references a manifest for version
// aggregates, in build order.
func (o *Orchestrator) ArchTags(version string) []string {
	archs := o.architectures()
	tags := make([]string, 0, len(archs))
	for _, arch := range archs {
		tags = append(tags, o.targetRef(Target{Version: version, Arch: arch}))
	}
	return tags
}

// Publish builds and pushes every architecture for version, then links and
// pushes the bare version manifest. The first failing step aborts the version.
func (o *Orchestrator) Publish(ctx context.Context, version string) error {
	log := o.Log.With().Str("version", version).Logger()
	log.Info().Str("state", string(StatePending)).Msg("publishing version")

	for _, arch := range o.architectures() {
		target := Target{Version: version, Arch: arch}
		if err := o.buildAndPush(ctx, target, log); err != nil {
			log.Error().Err(err).Str("state", string(StateFailed)).Str("arch", arch.Name).Msg("publish failed")
			return err
		}
	}

	if err := o.link(ctx, o.imageRef(version), version); err != nil {
		log.Error().Err(err).Str("state", string(StateFailed)).Msg("publish failed")
		return err
	}
	log.Info().Str("state", string(StateManifestLinked)).Str("manifest", o.imageRef(version)).Msg("manifest pushed")
	log.Info().Str("state", string(StateDone)).Msg("version published")
	return nil
}

func (o *Orchestrator) buildAndPush(ctx context.Context, target Target, log zerolog.Logger) error {
	ref := o.targetRef(target)
	log.Info().Str("state", string(StateBuilding)).Str("arch", target.Arch.Name).Str("image", ref).Msg("building image")

	err := o.Engine.Build(ctx, engine.BuildSpec{
		Tag:      ref,
		Platform: target.Arch.Platform,
		BuildArgs: []engine.BuildArg{
			{Name: "VERSION", Value: target.Version},
			{Name: "ARCH", Value: target.Arch.Name},
		},
		Context:    o.BuildContext,
		Dockerfile: o.Dockerfile,
	})
	if err != nil {
		return fmt.Errorf("publish %s for %s: %w", target.Version, target.Arch.Name, err)
	}

	if err := o.Engine.Push(ctx, ref); err != nil {
		return fmt.Errorf("publish %s for %s: %w", target.Version, target.Arch.Name, err)
	}
	log.Info().Str("state", string(StatePushed)).Str("arch", target.Arch.Name).Str("image", ref).Msg("image pushed")
	return nil
}

// LinkLatest points "latest" at the per-architecture images of version. The
// images must already be in the registry; nothing is rebuilt here.
func (o *Orchestrator) LinkLatest(ctx context.Context, version string) error {
	latest := o.imageRef(LatestTag)
	log := o.Log.With().Str("version", version).Str("manifest", latest).Logger()

	if err := o.Engine.Tag(ctx, o.imageRef(version), latest); err != nil {
		log.Error().Err(err).Str("state", string(StateFailed)).Msg("tag latest failed")
		return fmt.Errorf("link latest to %s: %w", version, err)
	}

	if err := o.link(ctx, latest, version); err != nil {
		log.Error().Err(err).Str("state", string(StateFailed)).Msg("link latest failed")
		return fmt.Errorf("link latest to %s: %w", version, err)
	}

	log.Info().Str("state", string(StateManifestLinked)).Msg("latest manifest pushed")
	return nil
}

func (o *Orchestrator) link(ctx context.Context, manifest, version string) error {
	if err := o.Engine.ManifestCreate(ctx, manifest, o.ArchTags(version)); err != nil {
		return err
	}
	return o.Engine.ManifestPush(ctx, manifest)
}
