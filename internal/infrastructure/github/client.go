package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"ScoutRadar/internal/config"
	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/ports"
)

// Client talks to the GitHub REST API: repository search, per-repo activity
// markers, and the remaining rate budget. All calls go through a shared
// limiter so bursts across pipeline stages stay inside the API's limits.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

var _ ports.RepoWatcher = (*Client)(nil)
var _ ports.RateBudget = (*Client)(nil)

// NewClient builds a paced API client; a nil http.Client gets a sane timeout.
func NewClient(cfg config.GitHubConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: cfg.APIBaseURL,
		token:   cfg.Token,
		http:    client,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

type searchResponse struct {
	Items []repoJSON `json:"items"`
}

type repoJSON struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	PushedAt    string   `json:"pushed_at"`
	HTMLURL     string   `json:"html_url"`
}

func (j repoJSON) toDomain() domain.Repo {
	return domain.Repo{
		ID:          strconv.FormatInt(j.ID, 10),
		FullName:    j.FullName,
		Description: j.Description,
		Stars:       j.Stars,
		Language:    j.Language,
		Topics:      j.Topics,
		PushedAt:    j.PushedAt,
		URL:         j.HTMLURL,
	}
}

// Search runs a repository search sorted by most recently updated.
func (c *Client) Search(ctx context.Context, query string, perPage int) ([]domain.Repo, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "updated")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(perPage))

	var resp searchResponse
	if err := c.get(ctx, "/search/repositories?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	repos := make([]domain.Repo, 0, len(resp.Items))
	for _, item := range resp.Items {
		repos = append(repos, item.toDomain())
	}
	return repos, nil
}

// RepoInfo fetches metadata for one specifically tracked repository.
func (c *Client) RepoInfo(ctx context.Context, owner, repo string) (domain.Repo, error) {
	var item repoJSON
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &item); err != nil {
		return domain.Repo{}, fmt.Errorf("repo info %s/%s: %w", owner, repo, err)
	}
	return item.toDomain(), nil
}

// LatestMarker returns the newest commit SHA, falling back to the latest
// release tag when the commit list is unavailable.
func (c *Client) LatestMarker(ctx context.Context, owner, repo string) (string, error) {
	var commits []struct {
		SHA string `json:"sha"`
	}
	err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/commits?per_page=1", owner, repo), &commits)
	if err == nil && len(commits) > 0 {
		return commits[0].SHA, nil
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if relErr := c.get(ctx, fmt.Sprintf("/repos/%s/%s/releases/latest", owner, repo), &release); relErr == nil && release.TagName != "" {
		return release.TagName, nil
	}

	if err == nil {
		err = fmt.Errorf("no commits or releases")
	}
	return "", fmt.Errorf("latest marker %s/%s: %w", owner, repo, err)
}

// Remaining reports the core API budget left before GitHub starts refusing calls.
func (c *Client) Remaining(ctx context.Context) (int, error) {
	var resp struct {
		Rate struct {
			Remaining int `json:"remaining"`
		} `json:"rate"`
	}
	if err := c.get(ctx, "/rate_limit", &resp); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}
	return resp.Rate.Remaining, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "ScoutRadar/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
