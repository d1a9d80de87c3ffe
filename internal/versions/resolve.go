package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL   = "https://api.github.com"
	DefaultPageSize = 100

	// maxPages bounds discovery against an API that never returns an empty page.
	maxPages = 1000
)

type githubTag struct {
	Name string `json:"name"`
}

type Discoverer struct {
	opts   DiscoverOptions
	client *http.Client
	log    zerolog.Logger
}

func NewDiscoverer(opts DiscoverOptions, client *http.Client, log zerolog.Logger) *Discoverer {
	if strings.TrimSpace(opts.APIURL) == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Discoverer{
		opts:   opts,
		client: client,
		log:    log.With().Str("component", "discovery").Str("upstream", opts.Repo).Logger(),
	}
}

// Discover walks every page of the upstream tag list and classifies each tag
// against the minimum version. A failure on any page discards everything.
func (d *Discoverer) Discover(ctx context.Context) (Discovery, error) {
	tags, err := d.listTags(ctx)
	if err != nil {
		return Discovery{}, err
	}

	result := Classify(tags, d.opts.Minimum)

	d.log.Info().
		Strs("supported", result.Supported).
		Int("count", len(result.Supported)).
		Str("minimum", d.opts.Minimum.String()).
		Msg("supported versions")
	d.log.Info().
		Strs("unsupported", result.Unsupported).
		Int("count", len(result.Unsupported)).
		Msg("unsupported versions")

	return result, nil
}

// Classify partitions tags without reordering them.
func Classify(tags []string, min Minimum) Discovery {
	result := Discovery{
		Supported:   make([]string, 0, len(tags)),
		Unsupported: make([]string, 0),
	}
	for _, tag := range tags {
		if Supported(tag, min) {
			result.Supported = append(result.Supported, tag)
			continue
		}
		result.Unsupported = append(result.Unsupported, tag)
	}
	return result
}

func (d *Discoverer) listTags(ctx context.Context) ([]string, error) {
	all := make([]string, 0)

	for page := 1; page <= maxPages; page++ {
		names, err := d.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list upstream tags page %d: %w", page, err)
		}
		if len(names) == 0 {
			d.log.Debug().Int("pages", page-1).Int("tags", len(all)).Msg("tag listing complete")
			return all, nil
		}
		all = append(all, names...)
	}

	return nil, fmt.Errorf("list upstream tags: no empty page after %d pages", maxPages)
}

func (d *Discoverer) fetchPage(ctx context.Context, page int) ([]string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/tags", strings.TrimRight(d.opts.APIURL, "/"), strings.Trim(d.opts.Repo, "/"))
	query := url.Values{}
	query.Set("per_page", fmt.Sprint(d.opts.PageSize))
	query.Set("page", fmt.Sprint(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "release-images")
	if token := strings.TrimSpace(d.opts.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github tags api returned status %d", resp.StatusCode)
	}

	var tags []githubTag
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode github tags: %w", err)
	}

	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names, nil
}
