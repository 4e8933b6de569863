// Package api is the HTTP implementation of the sync-backend contract: a
// JSON protocol carrying a bearer token, with load/save of the full app
// document plus register/login/health endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agonv/tapertrack/internal/auth"
	"github.com/agonv/tapertrack/internal/models"
	"github.com/agonv/tapertrack/internal/syncengine"
)

// Client talks to a tapertrack sync server. It satisfies both
// syncengine.Backend and auth.Authenticator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the server at baseURL. The timeout bounds
// every request; zero means syncengine.DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = syncengine.DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}

type dataResponse struct {
	Status string           `json:"status"`
	Data   *models.AppState `json:"data"`
	Error  string           `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, token string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (models.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, path, "", credentialsRequest{Username: username, Password: password})
	if err != nil {
		return models.Session{}, err
	}
	defer resp.Body.Close()

	// Status class first: a proxy's 5xx error page is not JSON, and decoding
	// it would misreport the failure as a malformed response.
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := "request rejected"
		var body sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			reason = body.Error
		}
		return models.Session{}, &auth.RejectionError{Reason: reason}
	case resp.StatusCode != http.StatusOK:
		return models.Session{}, fmt.Errorf("server error (%d)", resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Session{}, fmt.Errorf("malformed server response: %w", err)
	}
	if body.Token == "" {
		return models.Session{}, fmt.Errorf("malformed server response: missing token")
	}
	return models.Session{Token: body.Token, Username: body.Username}, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (models.Session, error) {
	return c.authenticate(ctx, "/api/login", username, password)
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, username, password string) (models.Session, error) {
	return c.authenticate(ctx, "/api/register", username, password)
}

// Load fetches the user's full document. syncengine.ErrNotFound means the
// user has never saved; syncengine.ErrUnauthorized means the token was
// rejected. Malformed responses come back as plain errors, i.e. transient.
func (c *Client) Load(ctx context.Context, session models.Session) (*models.AppState, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/data", session.Token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, syncengine.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load failed (%d)", resp.StatusCode)
	}

	var body dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed server response: %w", err)
	}
	switch body.Status {
	case "success":
		if body.Data == nil {
			return nil, fmt.Errorf("malformed server response: missing data")
		}
		return body.Data, nil
	case "empty":
		return nil, syncengine.ErrNotFound
	default:
		return nil, fmt.Errorf("unexpected load status %q", body.Status)
	}
}

// Save replaces the user's full document.
func (c *Client) Save(ctx context.Context, session models.Session, state *models.AppState) error {
	resp, err := c.do(ctx, http.MethodPut, "/api/data", session.Token, state)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return syncengine.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save failed (%d)", resp.StatusCode)
	}

	var body dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("malformed server response: %w", err)
	}
	if body.Status != "success" {
		return fmt.Errorf("unexpected save status %q", body.Status)
	}
	return nil
}

// Ping checks connectivity. No side effects.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed (%d)", resp.StatusCode)
	}
	return nil
}
