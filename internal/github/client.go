// Package github is the upstream client for the GitHub REST API. It knows
// pagination, retries, and rate limits; it knows nothing about caching or
// aggregation.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"devdash/internal/apperror"
	"devdash/internal/models"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"

	perPageMax = 100

	// Hard page-count ceilings, enforced independently of the Link header so
	// a misbehaving upstream with a "next" rel that never disappears cannot
	// keep a loop alive.
	maxRepoPages   = 50
	maxEventPages  = 3  // upstream retains at most ~300 events
	maxSearchPages = 10 // search result window tops out at 1000 matches

	maxAttempts = 3
)

type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
}

func NewClient(log *slog.Logger) *Client {
	return NewClientWithBaseURL(log, defaultBaseURL)
}

// NewClientWithBaseURL exists for tests that point the client at a local
// httptest server.
func NewClientWithBaseURL(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:        log,
		httpClient: newHTTPClient(),
		baseURL:    baseURL,
		// authenticated budget is 5000/h; pace a little under it
		limiter: rate.NewLimiter(rate.Limit(1.2), 5),
		breaker: NewCircuitBreaker(),
	}
}

// get performs one GET against the API with auth headers, client-side
// pacing, and a bounded retry loop that honors Retry-After on 429.
func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, http.Header, error) {
	if !c.breaker.Allow() {
		return nil, nil, apperror.Upstream(path, fmt.Errorf("circuit_open"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, apperror.Upstream(path, err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, nil, apperror.Upstream(path, err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("github_request_failed", "path", path, "attempt", attempt+1, "error", err)
			lastErr = err
			resp = nil
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			retryAfter += 500 * time.Millisecond
			c.log.Warn("github_rate_limited", "path", path, "retry_after", retryAfter.Seconds(), "attempt", attempt+1)
			resp.Body.Close()
			resp = nil

			select {
			case <-ctx.Done():
				return nil, nil, apperror.Upstream(path, ctx.Err())
			case <-time.After(retryAfter):
			}
			continue
		}

		break
	}

	if resp == nil {
		c.breaker.RecordFailure()
		if lastErr == nil {
			lastErr = fmt.Errorf("exhausted_retries")
		}
		return nil, nil, apperror.Upstream(path, lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, nil, apperror.Upstream(path, err)
	}

	if resp.StatusCode != http.StatusOK {
		// auth failures are the caller's problem, not an upstream outage
		if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusNotFound {
			c.breaker.RecordFailure()
		}
		return nil, resp.Header, apperror.UpstreamStatus(path, resp.StatusCode)
	}

	c.breaker.RecordSuccess()

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if n, parseErr := strconv.Atoi(remaining); parseErr == nil && n < 100 {
			c.log.Warn("github_rate_budget_low", "path", path, "remaining", n)
		}
	}

	return body, resp.Header, nil
}

// FetchProfile returns the authenticated user's profile.
func (c *Client) FetchProfile(ctx context.Context, token string) (*models.GitHubProfile, error) {
	body, _, err := c.get(ctx, token, "/user", nil)
	if err != nil {
		return nil, err
	}

	var profile models.GitHubProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, apperror.Upstream("/user", err)
	}
	if profile.ID == 0 {
		return nil, apperror.Upstream("/user", fmt.Errorf("empty_profile"))
	}
	return &profile, nil
}

// FetchEmails returns the user's email addresses. Needs the user:email
// scope; used when the profile email is hidden.
func (c *Client) FetchEmails(ctx context.Context, token string) ([]models.GitHubEmail, error) {
	body, _, err := c.get(ctx, token, "/user/emails", nil)
	if err != nil {
		return nil, err
	}

	var emails []models.GitHubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return nil, apperror.Upstream("/user/emails", err)
	}
	return emails, nil
}

// ListRepos fetches one page of the user's repositories, private included.
func (c *Client) ListRepos(ctx context.Context, token string, page int) ([]models.Repository, map[string]string, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPageMax))
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	q.Set("visibility", "all")
	q.Set("affiliation", "owner,collaborator,organization_member")

	body, headers, err := c.get(ctx, token, "/user/repos", q)
	if err != nil {
		return nil, nil, err
	}

	var repos []models.Repository
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, nil, apperror.Upstream("/user/repos", err)
	}
	return repos, parseLinkHeader(headers.Get("Link")), nil
}

// ListAllRepos pages through the full repository list. A page-level failure
// after the first page degrades to the repos collected so far.
func (c *Client) ListAllRepos(ctx context.Context, token string) ([]models.Repository, error) {
	all := make([]models.Repository, 0, perPageMax)

	for page := 1; page <= maxRepoPages; page++ {
		repos, links, err := c.ListRepos(ctx, token, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("repo_page_fetch_failed", "page", page, "error", err)
			break
		}

		all = append(all, repos...)

		if len(repos) == 0 || !hasNextPage(links) {
			break
		}
	}

	return all, nil
}

// RepoLanguages returns the language -> byte-count map for one repository.
func (c *Client) RepoLanguages(ctx context.Context, token, owner, repo string) (map[string]int64, error) {
	path := fmt.Sprintf("/repos/%s/%s/languages", owner, repo)
	body, _, err := c.get(ctx, token, path, nil)
	if err != nil {
		return nil, err
	}

	var languages map[string]int64
	if err := json.Unmarshal(body, &languages); err != nil {
		return nil, apperror.Upstream(path, err)
	}
	return languages, nil
}

// ListEvents fetches one page of the user's activity feed.
func (c *Client) ListEvents(ctx context.Context, token, username string, page int) ([]models.Event, map[string]string, error) {
	path := fmt.Sprintf("/users/%s/events", url.PathEscape(username))

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPageMax))

	body, headers, err := c.get(ctx, token, path, q)
	if err != nil {
		return nil, nil, err
	}

	var events []models.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, nil, apperror.Upstream(path, err)
	}
	return events, parseLinkHeader(headers.Get("Link")), nil
}

// ListAllEvents fetches everything the activity feed still retains. The feed
// caps out around 300 events and 90 days; callers treat that as a known
// source limitation, not an error.
func (c *Client) ListAllEvents(ctx context.Context, token, username string) ([]models.Event, error) {
	all := make([]models.Event, 0, perPageMax)

	for page := 1; page <= maxEventPages; page++ {
		events, links, err := c.ListEvents(ctx, token, username, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("event_page_fetch_failed", "page", page, "error", err)
			break
		}

		all = append(all, events...)

		if len(events) == 0 || !hasNextPage(links) {
			break
		}
	}

	return all, nil
}

// SearchCommits queries commits authored by username inside the inclusive
// [since, until] calendar-day range. total_count is authoritative even when
// only a single item is paged in, so count-only callers pass perPage=1.
func (c *Client) SearchCommits(ctx context.Context, token, username, since, until string, page, perPage int) ([]models.CommitSearchItem, int, map[string]string, error) {
	if perPage <= 0 || perPage > perPageMax {
		perPage = perPageMax
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("author:%s committer-date:%s..%s", username, since, until))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", "committer-date")
	q.Set("order", "asc")

	body, headers, err := c.get(ctx, token, "/search/commits", q)
	if err != nil {
		return nil, 0, nil, err
	}

	var result models.CommitSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, 0, nil, apperror.Upstream("/search/commits", err)
	}
	return result.Items, result.TotalCount, parseLinkHeader(headers.Get("Link")), nil
}

// SearchAllCommits pages through every commit in the range, up to the search
// window ceiling. Page failures after the first degrade to partial results.
func (c *Client) SearchAllCommits(ctx context.Context, token, username, since, until string) ([]models.CommitSearchItem, error) {
	all := make([]models.CommitSearchItem, 0, perPageMax)

	for page := 1; page <= maxSearchPages; page++ {
		commits, _, links, err := c.SearchCommits(ctx, token, username, since, until, page, perPageMax)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("commit_search_page_failed", "page", page, "error", err)
			break
		}

		all = append(all, commits...)

		if len(commits) == 0 || !hasNextPage(links) {
			break
		}
	}

	return all, nil
}

// BreakerState exposes the circuit state for the health endpoint.
func (c *Client) BreakerState() string {
	return c.breaker.StateString()
}
