package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"devdash/internal/apperror"
	"devdash/internal/db"
	"devdash/internal/models"
)

type UserStore struct {
	db  *db.DB
	log *slog.Logger
}

func NewUserStore(log *slog.Logger, dbConn *db.DB) *UserStore {
	return &UserStore{db: dbConn, log: log}
}

const userColumns = `id, github_id, username, email, name, avatar_url, bio, company, location, blog,
	public_repos, followers, following, access_token, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.GitHubID, &u.Username, &u.Email, &u.Name, &u.AvatarURL, &u.Bio,
		&u.Company, &u.Location, &u.Blog,
		&u.PublicRepos, &u.Followers, &u.Following, &u.AccessToken,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert creates or refreshes the user row for a GitHub profile, keyed on
// the stable github_id. Called once per login.
func (s *UserStore) Upsert(ctx context.Context, profile *models.GitHubProfile, email *string, accessToken string) (*models.User, error) {
	if email == nil {
		email = profile.Email
	}

	row := s.db.Pool.QueryRow(ctx,
		`INSERT INTO users (github_id, username, email, name, avatar_url, bio, company, location, blog,
			public_repos, followers, following, access_token, created_at, updated_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW(), NOW())
		 ON CONFLICT (github_id) DO UPDATE SET
			username = EXCLUDED.username,
			email = COALESCE(EXCLUDED.email, users.email),
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			bio = EXCLUDED.bio,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			blog = EXCLUDED.blog,
			public_repos = EXCLUDED.public_repos,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			access_token = EXCLUDED.access_token,
			updated_at = NOW(),
			last_login_at = NOW()
		 RETURNING `+userColumns,
		profile.ID, profile.Login, email, profile.Name, profile.AvatarURL, profile.Bio,
		profile.Company, profile.Location, profile.Blog,
		profile.PublicRepos, profile.Followers, profile.Following, accessToken,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("user_upsert_failed: %w", err)
	}

	s.log.Info("user_upserted", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", apperror.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("user_get_failed: %w", err)
	}
	return user, nil
}
