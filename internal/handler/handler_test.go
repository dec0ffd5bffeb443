package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/drive/internal/config"
	"github.com/templui/drive/internal/ctxkeys"
	"github.com/templui/drive/internal/markdown"
	"github.com/templui/drive/internal/model"
	"github.com/templui/drive/internal/repository"
	"github.com/templui/drive/internal/service"
	"github.com/templui/drive/internal/storage/storagetest"
	"github.com/templui/drive/internal/validation"
	"golang.org/x/oauth2"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func TestStatusAndMessageFor(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid password"},
		{fmt.Errorf("login: %w", repository.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{service.ErrForbidden, http.StatusForbidden, "Unauthorized to access this file"},
		{fmt.Errorf("%w: users/u/x", service.ErrNotFound), http.StatusNotFound, "File not found"},
		{&service.ValidationError{Msg: "No file specified"}, http.StatusBadRequest, "No file specified"},
		{service.ErrEmailAlreadyExists, http.StatusBadRequest, "Email already exists"},
		{validation.ErrEmptyFile, http.StatusBadRequest, "file is empty"},
		{fmt.Errorf("%w: %w", service.ErrUploadFailed, errors.New("s3: connection refused")), http.StatusInternalServerError, "Upload failed"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
			assert.Equal(t, tt.message, messageFor(tt.err, messages{Failed: "Upload failed"}))
		})
	}
}

func uploadRecorder(t *testing.T, h *fileHandler, size int) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(ctxkeys.WithSession(req.Context(), &model.Session{UserID: "u-1", Email: "u@example.com"}))

	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	return rec
}

func TestUploadSizeLimit(t *testing.T) {
	svc := service.NewFileService(storagetest.NewMemory(), markdown.NewParser(), time.Hour)
	h := NewFileHandler(svc, 1<<10, 1<<10)

	rec := uploadRecorder(t, h, 1<<10)
	assert.Equal(t, http.StatusOK, rec.Code, "a file of exactly the limit is accepted")

	rec = uploadRecorder(t, h, 1<<10+1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file too large")

	rec = uploadRecorder(t, h, 1<<10+multipartOverhead+1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"File too large"}`, rec.Body.String())
}

func TestDownloadNonASCIIName(t *testing.T) {
	store := storagetest.NewMemory()
	svc := service.NewFileService(store, nil, time.Hour)
	session := &model.Session{UserID: "u-1", Email: "u@example.com"}
	res, err := svc.Upload(context.Background(), session, service.UploadInput{
		Name: "résumé final.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf"),
	})
	require.NoError(t, err)

	h := NewFileHandler(svc, 1<<20, 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/download?"+url.Values{"blobName": {res.Key}}.Encode(), nil)
	req = req.WithContext(ctxkeys.WithSession(req.Context(), session))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename*=utf-8''r%C3%A9sum%C3%A9%20final.pdf")
}

// fakeProvider serves the token and user-info endpoints of an OAuth provider.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /userinfo", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"email": "carol@example.com", "name": "Carol", "verified_email": true})
	}))
	mux.HandleFunc("GET /user", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "octocat", "email": nil})
	}))
	mux.HandleFunc("GET /user/emails", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		})
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthHandler(t *testing.T) (*authHandler, *memUsers) {
	t.Helper()
	provider := fakeProvider(t)
	users := &memUsers{users: map[string]*model.User{}}
	auth := service.NewAuthService(users, nil, "test-secret", time.Hour, false)

	h := NewAuthHandler(auth, &config.Config{AppURL: "http://drive.test", AppEnv: "development"})
	endpoint := oauth2.Endpoint{AuthURL: provider.URL + "/authorize", TokenURL: provider.URL + "/token"}
	h.google = &oauthProvider{
		name:     "google",
		config:   &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: endpoint},
		userInfo: googleUserInfo(provider.URL + "/userinfo"),
	}
	h.github = &oauthProvider{
		name:     "github",
		config:   &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: endpoint},
		userInfo: githubUserInfo(provider.URL),
	}
	return h, users
}

func callback(h http.HandlerFunc, state, cookieState, code string) *httptest.ResponseRecorder {
	q := url.Values{"state": {state}, "code": {code}}
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+q.Encode(), nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == service.SessionCookie {
			return c
		}
	}
	return nil
}

func TestOAuthBeginSetsState(t *testing.T) {
	h, _ := newOAuthHandler(t)

	rec := httptest.NewRecorder()
	h.GoogleAuth(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			state = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, state)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state, loc.Query().Get("state"))
	assert.Equal(t, "/authorize", loc.Path)
}

func TestOAuthCallbackGoogle(t *testing.T) {
	h, users := newOAuthHandler(t)

	rec := callback(h.GoogleCallback, "abc", "abc", "good-code")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "http://drive.test/", rec.Header().Get("Location"))
	require.NotNil(t, sessionCookie(rec))

	u, err := users.ByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol", u.Name)
	assert.False(t, u.HasPassword())
}

func TestOAuthCallbackGitHubUsesPrimaryEmail(t *testing.T) {
	h, users := newOAuthHandler(t)

	rec := callback(h.GitHubCallback, "abc", "abc", "good-code")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	u, err := users.ByEmail(context.Background(), "octo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "octocat", u.Name)
}

func TestOAuthCallbackRejects(t *testing.T) {
	h, users := newOAuthHandler(t)

	tests := []struct {
		name        string
		state       string
		cookieState string
		code        string
		status      int
	}{
		{"state mismatch", "abc", "xyz", "good-code", http.StatusUnauthorized},
		{"missing state cookie", "abc", "", "good-code", http.StatusUnauthorized},
		{"missing code", "abc", "abc", "", http.StatusBadRequest},
		{"bad code", "abc", "abc", "bad-code", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := callback(h.GoogleCallback, tt.state, tt.cookieState, tt.code)
			assert.Equal(t, tt.status, rec.Code)
			assert.Nil(t, sessionCookie(rec))
		})
	}
	assert.Empty(t, users.users)
}
