// Package auth is the identity boundary: GitHub OAuth handshake, session
// JWTs, and the users table. The analytics core only ever sees the resolved
// user record.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"devdash/internal/apperror"
)

// GitHubProvider wraps the OAuth 2.0 authorization-code flow against GitHub.
// The code-for-token exchange runs server-to-server with the client secret;
// the access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
}

func NewGitHubProvider(clientID, clientSecret, redirectURI string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			// repo scope included so private repositories count in stats
			Scopes:   []string{"read:user", "user:email", "repo"},
			Endpoint: github.Endpoint,
		},
	}
}

// AuthURL returns the GitHub authorize URL for the given anti-CSRF state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for an access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", apperror.Upstream("oauth_exchange", err)
	}
	if tok.AccessToken == "" {
		return "", apperror.Upstream("oauth_exchange", fmt.Errorf("empty_access_token"))
	}
	return tok.AccessToken, nil
}
