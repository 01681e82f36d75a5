package models

// Wire types for the subset of the GitHub REST API this service reads.
// GitHub returns far larger objects; only the fields used here are decoded.

type Repository struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     *string   `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Language        *string   `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Private         bool      `json:"private"`
	Fork            bool      `json:"fork"`
	Owner           RepoOwner `json:"owner"`
	UpdatedAt       string    `json:"updated_at"`
}

type RepoOwner struct {
	Login string `json:"login"`
}

// Event is one activity-feed item. The payload shape varies by Type; only
// the handled kinds are decoded, everything else is carried as a no-op.
type Event struct {
	Type      string       `json:"type"`
	CreatedAt string       `json:"created_at"`
	Payload   EventPayload `json:"payload"`
}

type EventPayload struct {
	// PullRequestEvent / IssuesEvent. Push payloads carry commit lists, but
	// commit counts come from the search API, so nothing here decodes them.
	Action string `json:"action,omitempty"`
}

type CommitSearchItem struct {
	SHA    string       `json:"sha"`
	Commit CommitDetail `json:"commit"`
}

type CommitDetail struct {
	Committer CommitActor `json:"committer"`
}

type CommitActor struct {
	Date string `json:"date"`
}

type CommitSearchResult struct {
	TotalCount int                `json:"total_count"`
	Items      []CommitSearchItem `json:"items"`
}

// GitHubProfile is the authenticated /user response.
type GitHubProfile struct {
	ID          int64   `json:"id"`
	Login       string  `json:"login"`
	Email       *string `json:"email"`
	Name        *string `json:"name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
	Company     *string `json:"company"`
	Location    *string `json:"location"`
	Blog        *string `json:"blog"`
	PublicRepos int     `json:"public_repos"`
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
}

type GitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}
