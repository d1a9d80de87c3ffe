package registry

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
	DefaultHubAPIURL = "https://hub.docker.com"

	// Docker Hub returns the whole tag list for our repositories in one page.
	hubPageSize = 1000
)

type hubTagPage struct {
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// HubInspector lists tags through the Docker Hub repositories API.
type HubInspector struct {
	apiURL string
	repo   string
	client *http.Client
	log    zerolog.Logger
}

func NewHubInspector(apiURL, repo string, client *http.Client, log zerolog.Logger) *HubInspector {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultHubAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HubInspector{
		apiURL: strings.TrimRight(apiURL, "/"),
		repo:   strings.Trim(repo, "/"),
		client: client,
		log:    log.With().Str("component", "registry").Str("repository", repo).Logger(),
	}
}

func (h *HubInspector) ExistingTags(ctx context.Context) (TagSet, error) {
	query := url.Values{}
	query.Set("page_size", fmt.Sprint(hubPageSize))
	endpoint := fmt.Sprintf("%s/v2/repositories/%s/tags?%s", h.apiURL, h.repo, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build registry tags request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query registry tags for %s: %w", h.repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query registry tags for %s: hub api returned status %d", h.repo, resp.StatusCode)
	}

	var page hubTagPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode registry tags for %s: %w", h.repo, err)
	}

	names := make([]string, 0, len(page.Results))
	for _, result := range page.Results {
		names = append(names, result.Name)
	}

	existing := BareTags(names)
	h.log.Info().Strs("tags", existing.Sorted()).Int("raw", len(names)).Msg("existing images")
	return existing, nil
}
