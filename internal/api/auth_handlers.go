package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"devdash/internal/apperror"
)

const stateCookieName = "oauth_state"

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) cookieSecure() bool {
	return strings.HasPrefix(s.cfg.FrontendURL, "https://")
}

// githubLogin starts the OAuth flow: a random state goes into a short-lived
// cookie and the user is sent to GitHub's authorize page.
func (s *Server) githubLogin(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "failed to start login"}})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, 600, "/", "", s.cookieSecure(), true)
	c.Redirect(http.StatusFound, s.oauth.AuthURL(state))
}

// githubCallback finishes the flow: verify state, exchange the code, fetch
// the profile, upsert the user, issue the session cookie, bounce to the
// dashboard.
func (s *Server) githubCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "missing code or state"}})
		return
	}

	stateCookie, err := c.Cookie(stateCookieName)
	if err != nil || stateCookie == "" || stateCookie != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_state", "message": "state mismatch"}})
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", s.cookieSecure(), true)

	ctx, cancel := s.ctx(c)
	defer cancel()

	accessToken, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth_exchange_failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "oauth_failed", "message": "github rejected the authorization code"}})
		return
	}

	profile, err := s.gh.FetchProfile(ctx, accessToken)
	if err != nil {
		s.log.Warn("profile_fetch_failed", "error", err)
		if errors.Is(err, apperror.ErrBadCredential) {
			c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "github_unauthorized", "message": "github rejected the access token"}})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "upstream_unavailable", "message": "failed to fetch github profile"}})
		return
	}

	// profile email is empty when the user keeps it private
	email := profile.Email
	if email == nil {
		if emails, emailErr := s.gh.FetchEmails(ctx, accessToken); emailErr == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					addr := e.Email
					email = &addr
					break
				}
			}
		}
	}

	user, err := s.users.Upsert(ctx, profile, email, accessToken)
	if err != nil {
		s.log.Error("user_upsert_failed", "github_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "failed to save user"}})
		return
	}

	jwtToken, err := s.tokens.Generate(user.ID)
	if err != nil {
		s.log.Error("token_generate_failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "failed to create session"}})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authCookieName, jwtToken, int(s.tokens.TokenLifetime().Seconds()), "/", "", s.cookieSecure(), true)

	s.log.Info("user_logged_in", "user_id", user.ID, "username", user.Username)

	redirect, _ := url.JoinPath(s.cfg.FrontendURL, "dashboard")
	c.Redirect(http.StatusFound, redirect)
}

func (s *Server) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authCookieName, "", -1, "/", "", s.cookieSecure(), true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// authStatus never returns 401; the frontend polls it on load.
func (s *Server) authStatus(c *gin.Context) {
	user, err := s.resolveUser(c)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          user.Response(),
	})
}
