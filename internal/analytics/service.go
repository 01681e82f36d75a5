// Package analytics turns raw GitHub data into the five dashboard views:
// aggregate stats, daily contribution timeline, language breakdown, ranked
// repositories, and a day/hour activity heatmap. Every view goes through the
// same cache-or-fetch flow against the metric cache.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"devdash/internal/apperror"
	"devdash/internal/models"
)

const (
	DefaultDays  = 30
	MaxDays      = 90
	DefaultLimit = 10
	MaxLimit     = 100
)

// Upstream is the slice of the GitHub client the engine needs.
type Upstream interface {
	ListAllRepos(ctx context.Context, token string) ([]models.Repository, error)
	RepoLanguages(ctx context.Context, token, owner, repo string) (map[string]int64, error)
	ListAllEvents(ctx context.Context, token, username string) ([]models.Event, error)
	SearchCommits(ctx context.Context, token, username, since, until string, page, perPage int) ([]models.CommitSearchItem, int, map[string]string, error)
	SearchAllCommits(ctx context.Context, token, username, since, until string) ([]models.CommitSearchItem, error)
}

// MetricCache is the per-(user, metric-key) store the engine reads through.
type MetricCache interface {
	Get(ctx context.Context, userID int64, key string) ([]byte, bool, error)
	Set(ctx context.Context, userID int64, key string, payload []byte, ttl time.Duration) error
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	log      *slog.Logger
	upstream Upstream
	cache    MetricCache
}

func NewService(log *slog.Logger, upstream Upstream, cache MetricCache) *Service {
	return &Service{
		log:      log,
		upstream: upstream,
		cache:    cache,
	}
}

// cached unmarshals a fresh cache hit into out. A corrupt payload counts as
// a miss rather than an error; the write-through will replace it.
func (s *Service) cached(ctx context.Context, userID int64, key string, out any) bool {
	data, ok, err := s.cache.Get(ctx, userID, key)
	if err != nil {
		s.log.Warn("cache_read_failed", "user_id", userID, "cache_key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("cache_payload_corrupt", "user_id", userID, "cache_key", key, "error", err)
		return false
	}
	s.log.Debug("cache_hit", "user_id", userID, "cache_key", key)
	return true
}

// writeThrough stores a freshly computed view under the default TTL. Cache
// write failures are logged, not surfaced; the view is already computed.
func (s *Service) writeThrough(ctx context.Context, userID int64, key string, view any) {
	payload, err := json.Marshal(view)
	if err != nil {
		s.log.Warn("cache_marshal_failed", "user_id", userID, "cache_key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, userID, key, payload, -1); err != nil {
		s.log.Warn("cache_write_failed", "user_id", userID, "cache_key", key, "error", err)
	}
}

// Stats aggregates star/fork/visibility totals over the full repository list
// and reads the trailing-year commit count off the search API's total_count,
// requesting a single-item page so no commit objects are materialized.
func (s *Service) Stats(ctx context.Context, user *models.User) (*models.UserStats, error) {
	const key = "user_stats"

	var stats models.UserStats
	if s.cached(ctx, user.ID, key, &stats) {
		return &stats, nil
	}

	repos, err := s.upstream.ListAllRepos(ctx, user.AccessToken)
	if err != nil {
		return nil, err
	}

	for _, r := range repos {
		stats.TotalStars += r.StargazersCount
		stats.TotalForks += r.ForksCount
		if r.Private {
			stats.PrivateRepos++
		} else {
			stats.PublicRepos++
		}
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -365).Format("2006-01-02")
	until := now.Format("2006-01-02")

	_, total, _, err := s.upstream.SearchCommits(ctx, user.AccessToken, user.Username, since, until, 1, 1)
	if err != nil {
		return nil, err
	}
	stats.TotalCommits = total

	s.writeThrough(ctx, user.ID, key, &stats)
	return &stats, nil
}

// Contributions builds the daily timeline for the trailing days window.
// Commit counts come from the commit search source; the activity feed is
// capped at ~300 events and drops pushes, so it only supplies the much rarer
// PR-opened and issue-opened counts. Keep that split.
func (s *Service) Contributions(ctx context.Context, user *models.User, days int) ([]models.ContributionPoint, error) {
	if days < 1 || days > MaxDays {
		return nil, apperror.Validation("days", fmt.Sprintf("must be between 1 and %d", MaxDays))
	}

	key := fmt.Sprintf("contributions_%d", days)

	var points []models.ContributionPoint
	if s.cached(ctx, user.ID, key, &points) {
		return points, nil
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days).Format("2006-01-02")
	until := now.Format("2006-01-02")

	type bucket struct {
		commits, prs, issues int
	}
	daily := make(map[string]*bucket)
	at := func(dateKey string) *bucket {
		b, ok := daily[dateKey]
		if !ok {
			b = &bucket{}
			daily[dateKey] = b
		}
		return b
	}

	commits, err := s.upstream.SearchAllCommits(ctx, user.AccessToken, user.Username, since, until)
	if err != nil {
		return nil, err
	}
	for _, c := range commits {
		ts, parseErr := time.Parse(time.RFC3339, c.Commit.Committer.Date)
		if parseErr != nil {
			continue
		}
		at(ts.UTC().Format("2006-01-02")).commits++
	}

	cutoff := now.AddDate(0, 0, -days)
	events, err := s.upstream.ListAllEvents(ctx, user.AccessToken, user.Username)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		ts, parseErr := time.Parse(time.RFC3339, e.CreatedAt)
		if parseErr != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}

		dateKey := ts.UTC().Format("2006-01-02")
		switch e.Type {
		case "PullRequestEvent":
			if e.Payload.Action == "opened" {
				at(dateKey).prs++
			}
		case "IssuesEvent":
			if e.Payload.Action == "opened" {
				at(dateKey).issues++
			}
		}
	}

	// one point per calendar day, zero days included, ascending
	points = make([]models.ContributionPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		dateKey := now.AddDate(0, 0, -i).Format("2006-01-02")
		p := models.ContributionPoint{Date: dateKey}
		if b, ok := daily[dateKey]; ok {
			p.Commits = b.commits
			p.PullRequests = b.prs
			p.Issues = b.issues
		}
		points = append(points, p)
	}

	s.writeThrough(ctx, user.ID, key, points)
	return points, nil
}

// Languages aggregates byte counts across originally-authored repositories.
// Forks are skipped, and a repository whose language lookup fails simply
// contributes nothing.
func (s *Service) Languages(ctx context.Context, user *models.User) ([]models.LanguageBreakdown, error) {
	const key = "languages"

	var breakdown []models.LanguageBreakdown
	if s.cached(ctx, user.ID, key, &breakdown) {
		return breakdown, nil
	}

	repos, err := s.upstream.ListAllRepos(ctx, user.AccessToken)
	if err != nil {
		return nil, err
	}

	languageBytes := make(map[string]int64)
	var total int64

	for _, r := range repos {
		if r.Fork {
			continue
		}
		if r.Owner.Login == "" || r.Name == "" {
			continue
		}

		langs, langErr := s.upstream.RepoLanguages(ctx, user.AccessToken, r.Owner.Login, r.Name)
		if langErr != nil {
			s.log.Debug("repo_languages_skipped", "repo", r.FullName, "error", langErr)
			continue
		}
		for lang, bytes := range langs {
			languageBytes[lang] += bytes
			total += bytes
		}
	}

	if total == 0 {
		return []models.LanguageBreakdown{}, nil
	}

	breakdown = make([]models.LanguageBreakdown, 0, len(languageBytes))
	for lang, bytes := range languageBytes {
		pct := math.Round(float64(bytes)/float64(total)*100*100) / 100
		breakdown = append(breakdown, models.LanguageBreakdown{
			Language:   lang,
			Bytes:      bytes,
			Percentage: pct,
			Color:      colorFor(lang),
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Percentage != breakdown[j].Percentage {
			return breakdown[i].Percentage > breakdown[j].Percentage
		}
		return breakdown[i].Language < breakdown[j].Language
	})
	if len(breakdown) > 10 {
		breakdown = breakdown[:10]
	}

	s.writeThrough(ctx, user.ID, key, breakdown)
	return breakdown, nil
}

// TopRepositories ranks the repository list by stars. The sort is stable so
// equal-star repositories keep their upstream order.
func (s *Service) TopRepositories(ctx context.Context, user *models.User, limit int) ([]models.RepositoryView, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, apperror.Validation("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}

	key := fmt.Sprintf("repositories_%d", limit)

	var views []models.RepositoryView
	if s.cached(ctx, user.ID, key, &views) {
		return views, nil
	}

	repos, err := s.upstream.ListAllRepos(ctx, user.AccessToken)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(repos, func(i, j int) bool {
		return repos[i].StargazersCount > repos[j].StargazersCount
	})
	if len(repos) > limit {
		repos = repos[:limit]
	}

	views = make([]models.RepositoryView, 0, len(repos))
	for _, r := range repos {
		views = append(views, models.RepositoryView{
			Name:        r.Name,
			FullName:    r.FullName,
			Description: r.Description,
			HTMLURL:     r.HTMLURL,
			Language:    r.Language,
			Stars:       r.StargazersCount,
			Forks:       r.ForksCount,
			IsPrivate:   r.Private,
			UpdatedAt:   r.UpdatedAt,
		})
	}

	s.writeThrough(ctx, user.ID, key, views)
	return views, nil
}

// Heatmap counts events into a 7x24 day-of-week by hour-of-day grid. All
// 168 cells are emitted, zeros included, day-major then hour-minor, with
// day 0 = Sunday.
func (s *Service) Heatmap(ctx context.Context, user *models.User) ([]models.HeatmapPoint, error) {
	const key = "heatmap"

	var points []models.HeatmapPoint
	if s.cached(ctx, user.ID, key, &points) {
		return points, nil
	}

	events, err := s.upstream.ListAllEvents(ctx, user.AccessToken, user.Username)
	if err != nil {
		return nil, err
	}

	var counts [7][24]int
	for _, e := range events {
		ts, parseErr := time.Parse(time.RFC3339, e.CreatedAt)
		if parseErr != nil {
			continue
		}
		utc := ts.UTC()
		counts[int(utc.Weekday())][utc.Hour()]++
	}

	points = make([]models.HeatmapPoint, 0, 7*24)
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			points = append(points, models.HeatmapPoint{
				Day:   day,
				Hour:  hour,
				Count: counts[day][hour],
			})
		}
	}

	s.writeThrough(ctx, user.ID, key, points)
	return points, nil
}

// Refresh drops every cached view for the user. The next request per view
// recomputes from upstream.
func (s *Service) Refresh(ctx context.Context, userID int64) (int64, error) {
	return s.cache.DeleteAllForUser(ctx, userID)
}
