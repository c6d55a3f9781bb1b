// Package client is a Go client for the workforce API. A Session holds the
// bearer token and the logged-in user; any 401 from the server discards both.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/arnavshah/workforce-api/pkg/models"
)

// APIError is a non-domain failure reported by the server, such as malformed input
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	IDs   []string `json:"ids"`
}

type Session struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
	user  *models.Principal
}

// New returns a logged-out session against baseURL, which includes the API
// prefix, for example http://localhost:8000/api
func New(baseURL string, httpClient *http.Client) (*Session, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Session{baseURL: u, httpClient: httpClient}, nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User is the principal returned at login, or nil when logged out
func (s *Session) User() *models.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Logout forgets the token and user locally
func (s *Session) Logout() {
	s.mu.Lock()
	s.token, s.user = "", nil
	s.mu.Unlock()
}

// Login posts form-encoded credentials and keeps the returned token
func (s *Session) Login(ctx context.Context, username, password string) (*models.Principal, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var out struct {
		AccessToken string           `json:"access_token"`
		User        models.Principal `json:"user"`
	}
	if err := s.send(ctx, http.MethodPost, "/auth/login", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.token, s.user = out.AccessToken, &out.User
	s.mu.Unlock()
	return &out.User, nil
}

func (s *Session) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	var body io.Reader
	contentType := ""
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return s.send(ctx, method, path, query, body, contentType, out)
}

func (s *Session) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		s.Logout()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err := w.Write(respBody)
		return err
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "decode response")
}

// decodeError turns an error response into a *models.Error when the server
// reported a domain kind, so callers can match it with errors.Is
func decodeError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	switch kind := models.ErrorKind(eb.Kind); kind {
	case models.KindNotFound, models.KindAccessDenied, models.KindInvalidTransition,
		models.KindInvariantViolation, models.KindIncompleteSchedule, models.KindTimeout,
		models.KindSessionExpired:
		return &models.Error{Kind: kind, Message: eb.Error, IDs: eb.IDs}
	}
	if status == http.StatusUnauthorized && eb.Kind == "" {
		return &models.Error{Kind: models.KindSessionExpired, Message: eb.Error}
	}
	return &APIError{Status: status, Kind: eb.Kind, Message: eb.Error}
}
