package models

import "time"

type User struct {
	ID          int64     `json:"id"`
	GitHubID    int64     `json:"github_id"`
	Username    string    `json:"username"`
	Email       *string   `json:"email,omitempty"`
	Name        *string   `json:"name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	Company     *string   `json:"company,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Blog        *string   `json:"blog,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at"`

	// OAuth bearer token for the GitHub API. Never serialized.
	AccessToken string `json:"-"`
}

// UserResponse is the external shape of a user. It is built from User and
// can never carry the access token.
type UserResponse struct {
	ID          int64     `json:"id"`
	GitHubID    int64     `json:"github_id"`
	Username    string    `json:"username"`
	Email       *string   `json:"email,omitempty"`
	Name        *string   `json:"name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	Company     *string   `json:"company,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Blog        *string   `json:"blog,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:          u.ID,
		GitHubID:    u.GitHubID,
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.Name,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		Company:     u.Company,
		Location:    u.Location,
		Blog:        u.Blog,
		PublicRepos: u.PublicRepos,
		Followers:   u.Followers,
		Following:   u.Following,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type CacheRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CacheKey  string    `json:"cache_key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserStats struct {
	TotalStars   int `json:"total_stars"`
	TotalForks   int `json:"total_forks"`
	PublicRepos  int `json:"public_repos"`
	PrivateRepos int `json:"private_repos"`
	TotalCommits int `json:"total_commits"`
}

type ContributionPoint struct {
	Date         string `json:"date"` // YYYY-MM-DD, UTC
	Commits      int    `json:"commits"`
	PullRequests int    `json:"pull_requests"`
	Issues       int    `json:"issues"`
}

type LanguageBreakdown struct {
	Language   string  `json:"language"`
	Bytes      int64   `json:"bytes"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

// RepositoryView renames the upstream star/fork/privacy fields for external
// consumption.
type RepositoryView struct {
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description,omitempty"`
	HTMLURL     string  `json:"html_url"`
	Language    *string `json:"language,omitempty"`
	Stars       int     `json:"stars"`
	Forks       int     `json:"forks"`
	IsPrivate   bool    `json:"is_private"`
	UpdatedAt   string  `json:"updated_at"`
}

type HeatmapPoint struct {
	Day   int `json:"day"`  // 0=Sunday .. 6=Saturday
	Hour  int `json:"hour"` // 0..23
	Count int `json:"count"`
}
