package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/rs/zerolog"
)

// OCIInspector lists tags through the distribution API (/v2/<repo>/tags/list)
// of any OCI registry.
type OCIInspector struct {
	ref     string
	options []crane.Option
	log     zerolog.Logger
}

type OCIOptions struct {
	Host     string
	Repo     string
	Username string
	Password string
	Insecure bool
}

func NewOCIInspector(opts OCIOptions, log zerolog.Logger) *OCIInspector {
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	ref := strings.Trim(opts.Repo, "/")
	if host != "" {
		ref = host + "/" + ref
	}

	craneOpts := make([]crane.Option, 0, 2)
	if opts.Username != "" || opts.Password != "" {
		craneOpts = append(craneOpts, crane.WithAuth(&authn.Basic{
			Username: opts.Username,
			Password: opts.Password,
		}))
	} else {
		craneOpts = append(craneOpts, crane.WithAuthFromKeychain(authn.DefaultKeychain))
	}
	if opts.Insecure {
		craneOpts = append(craneOpts, crane.Insecure)
	}

	return &OCIInspector{
		ref:     ref,
		options: craneOpts,
		log:     log.With().Str("component", "registry").Str("repository", ref).Logger(),
	}
}

func (o *OCIInspector) ExistingTags(ctx context.Context) (TagSet, error) {
	opts := append([]crane.Option{crane.WithContext(ctx)}, o.options...)

	names, err := crane.ListTags(o.ref, opts...)
	if err != nil {
		return nil, fmt.Errorf("query registry tags for %s: %w", o.ref, err)
	}

	existing := BareTags(names)
	o.log.Info().Strs("tags", existing.Sorted()).Int("raw", len(names)).Msg("existing images")
	return existing, nil
}
