package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"inkwell/internal/services"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateKey     = "oauth_state"
)

// GoogleOAuth holds the OAuth2 client used for "Sign in with Google".
type GoogleOAuth struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleOAuth returns nil when no client id is configured.
func NewGoogleOAuth(clientID, clientSecret, siteURL string) *GoogleOAuth {
	if clientID == "" {
		return nil
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  siteURL + "/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleOAuth) Enabled() bool {
	return g != nil && g.config != nil
}

func (g *GoogleOAuth) fetchProfile(ctx context.Context, token *oauth2.Token) (*services.GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL+"?access_token="+url.QueryEscape(token.AccessToken), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}

	var profile services.GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.google.Enabled() {
		RenderError(c, http.StatusNotFound, "Google sign-in is not configured.")
		return
	}
	state, err := generateStateToken()
	if err != nil {
		renderServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		renderServiceError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.google.config.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.google.Enabled() {
		RenderError(c, http.StatusNotFound, "Google sign-in is not configured.")
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	if savedState == "" || c.Query("state") != savedState {
		Render(c, http.StatusBadRequest, "auth/login.html", gin.H{"Error": "Invalid sign-in state, please try again."})
		return
	}
	session.Delete(oauthStateKey)
	_ = session.Save()

	code := c.Query("code")
	if code == "" {
		Render(c, http.StatusBadRequest, "auth/login.html", gin.H{"Error": "Google did not return an authorization code."})
		return
	}

	ctx := c.Request.Context()
	token, err := h.google.config.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("google token exchange failed", zap.Error(err))
		Render(c, http.StatusBadGateway, "auth/login.html", gin.H{"Error": "Could not sign in with Google."})
		return
	}

	profile, err := h.google.fetchProfile(ctx, token)
	if err != nil {
		h.log.Warn("google userinfo failed", zap.Error(err))
		Render(c, http.StatusBadGateway, "auth/login.html", gin.H{"Error": "Could not sign in with Google."})
		return
	}

	user, err := h.users.LoginWithGoogle(ctx, *profile)
	if err != nil {
		status, _ := errorStatus(err)
		Render(c, status, "auth/login.html", gin.H{"Error": services.UserMessage(err)})
		return
	}
	if _, err := h.signIn(c, user); err != nil {
		renderServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/blog")
}
