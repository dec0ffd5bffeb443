package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/drive/internal/config"
	"github.com/templui/drive/internal/model"
	"github.com/templui/drive/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateCookie = "oauth_state"
	maxAuthBody      = 1 << 20
)

type authHandler struct {
	authService  *service.AuthService
	appURL       string
	isProduction bool

	google *oauthProvider
	github *oauthProvider
}

// oauthProvider is one social sign-in flow. Providers without client
// credentials are nil and their routes answer 404.
type oauthProvider struct {
	name     string
	config   *oauth2.Config
	userInfo func(ctx context.Context, client *http.Client) (email, name string, err error)
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *authHandler {
	h := &authHandler{
		authService:  authService,
		appURL:       cfg.AppURL,
		isProduction: cfg.IsProduction(),
	}

	if cfg.GoogleEnabled() {
		h.google = &oauthProvider{
			name: "google",
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.AppURL + "/auth/google/callback",
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
			userInfo: googleUserInfo("https://www.googleapis.com/oauth2/v2/userinfo"),
		}
	}
	if cfg.GitHubEnabled() {
		h.github = &oauthProvider{
			name: "github",
			config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				RedirectURL:  cfg.AppURL + "/auth/github/callback",
				Scopes:       []string{"user:email"},
				Endpoint:     github.Endpoint,
			},
			userInfo: githubUserInfo("https://api.github.com"),
		}
	}

	return h
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// Register creates a password account and signs the caller in.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, messages{Failed: "Failed to create user"})
		return
	}

	err = h.startSession(w, user)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{Message: "User created successfully", User: user})
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("password login failed", "error", err, "email", req.Email)
		writeServiceError(w, r, err, messages{Failed: "Failed to log in"})
		return
	}

	err = h.startSession(w, user)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	slog.Info("user logged in with password", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusOK, userResponse{Message: "Login successful", User: user})
}

type loginStatus struct {
	IsLoggedIn bool           `json:"isLoggedIn"`
	User       *model.Session `json:"user,omitempty"`
}

// IsLogin reports whether the session cookie is valid. A missing cookie is
// a normal anonymous state; a present but invalid one is 401.
func (h *authHandler) IsLogin(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(service.SessionCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, loginStatus{IsLoggedIn: false})
		return
	}

	session, err := h.authService.VerifySession(cookie.Value)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, loginStatus{IsLoggedIn: false})
		return
	}

	writeJSON(w, http.StatusOK, loginStatus{IsLoggedIn: true, User: session})
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (h *authHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.beginOAuth(w, r, h.google)
}

func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, h.google)
}

func (h *authHandler) GitHubAuth(w http.ResponseWriter, r *http.Request) {
	h.beginOAuth(w, r, h.github)
}

func (h *authHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, h.github)
}

// beginOAuth redirects the user to the provider consent screen.
func (h *authHandler) beginOAuth(w http.ResponseWriter, r *http.Request, p *oauthProvider) {
	if p == nil {
		writeError(w, http.StatusNotFound, "Sign-in provider is not configured")
		return
	}

	state, err := generateOAuthState()
	if err != nil {
		slog.Error("failed to generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "OAuth authentication failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.Redirect(w, r, p.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// finishOAuth validates state, exchanges the code and signs the user in.
func (h *authHandler) finishOAuth(w http.ResponseWriter, r *http.Request, p *oauthProvider) {
	if p == nil {
		writeError(w, http.StatusNotFound, "Sign-in provider is not configured")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		slog.Warn("oauth state validation failed", "provider", p.name, "error", err)
		writeError(w, http.StatusUnauthorized, "OAuth authentication failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback missing code", "provider", p.name)
		writeError(w, http.StatusBadRequest, "OAuth authentication failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		slog.Error("oauth token exchange failed", "provider", p.name, "error", err)
		writeError(w, http.StatusUnauthorized, "OAuth authentication failed")
		return
	}

	email, name, err := p.userInfo(ctx, p.config.Client(ctx, token))
	if err != nil {
		slog.Error("failed to get oauth user info", "provider", p.name, "error", err)
		writeError(w, http.StatusUnauthorized, "OAuth authentication failed")
		return
	}

	user, err := h.authService.AuthenticateOAuth(ctx, email, name, p.name)
	if err != nil {
		writeServiceError(w, r, err, messages{Failed: "OAuth authentication failed"})
		return
	}

	err = h.startSession(w, user)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "OAuth authentication failed")
		return
	}

	slog.Info("user logged in with oauth", "provider", p.name, "user_id", user.ID)
	http.Redirect(w, r, h.appURL+"/", http.StatusSeeOther)
}

func (h *authHandler) startSession(w http.ResponseWriter, user *model.User) error {
	token, session, err := h.authService.IssueSession(user)
	if err != nil {
		return err
	}
	h.authService.SetSessionCookie(w, token, session.ExpiresAt)
	return nil
}

func googleUserInfo(endpoint string) func(context.Context, *http.Client) (string, string, error) {
	return func(ctx context.Context, client *http.Client) (string, string, error) {
		var info struct {
			Email         string `json:"email"`
			Name          string `json:"name"`
			VerifiedEmail bool   `json:"verified_email"`
		}
		err := getJSON(ctx, client, endpoint, &info)
		if err != nil {
			return "", "", err
		}
		if info.Email == "" || !info.VerifiedEmail {
			return "", "", errors.New("google account has no verified email")
		}
		return info.Email, info.Name, nil
	}
}

func githubUserInfo(apiURL string) func(context.Context, *http.Client) (string, string, error) {
	return func(ctx context.Context, client *http.Client) (string, string, error) {
		var info struct {
			Email string `json:"email"`
			Name  string `json:"name"`
			Login string `json:"login"`
		}
		err := getJSON(ctx, client, apiURL+"/user", &info)
		if err != nil {
			return "", "", err
		}
		name := info.Name
		if name == "" {
			name = info.Login
		}

		// Private emails are only listed on /user/emails.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		err = getJSON(ctx, client, apiURL+"/user/emails", &emails)
		if err != nil {
			return "", "", err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				return e.Email, name, nil
			}
		}
		return "", "", errors.New("github account has no verified primary email")
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody))
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
