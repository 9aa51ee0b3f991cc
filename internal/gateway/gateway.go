// Package gateway provides authenticated access to the Mercado Livre API.
//
// It resolves OAuth credentials per workspace, attaches bearer tokens to
// outgoing requests and refreshes expired tokens once on a 401 before
// surfacing the failure to callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/growthops/mercadoads/internal/pkg/logger"
)

// ErrNotConnected indicates the workspace has no Mercado Livre credentials.
var ErrNotConnected = errors.New("ml_not_connected")

// Credentials holds the OAuth token set for a workspace.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// CredentialSource loads and persists workspace credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, workspaceID string) (*Credentials, error)
	SaveCredentials(ctx context.Context, workspaceID string, creds *Credentials) error
}

// Request describes a single API call. Path is relative to the API base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any
}

// Doer executes an API request for a workspace and decodes the JSON
// response into out when out is non-nil.
type Doer interface {
	Do(ctx context.Context, workspaceID string, req Request, out any) error
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercado api: status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.StatusCode == code {
			return true
		}
	}
	return false
}

// HTTPDoer is the minimal http client surface the gateway needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the authenticated Mercado Livre API client.
type Client struct {
	baseURL string
	http    HTTPDoer
	source  CredentialSource
	oauth   *oauth2.Config
}

// NewClient creates a gateway client. clientID and clientSecret are used for
// token refresh; an empty pair disables refresh and 401s surface directly.
func NewClient(baseURL string, httpClient HTTPDoer, source CredentialSource, clientID, clientSecret string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: base,
		http:    httpClient,
		source:  source,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Credentials returns the stored token set for a workspace, or
// ErrNotConnected when none exist.
func (c *Client) Credentials(ctx context.Context, workspaceID string) (*Credentials, error) {
	creds, err := c.source.Credentials(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.AccessToken == "" {
		return nil, ErrNotConnected
	}
	return creds, nil
}

// Do executes a request with the workspace's bearer token. On a 401 it
// refreshes the token once, persists the new token set and retries.
func (c *Client) Do(ctx context.Context, workspaceID string, req Request, out any) error {
	creds, err := c.Credentials(ctx, workspaceID)
	if err != nil {
		return err
	}

	err = c.execute(ctx, creds.AccessToken, req, out)
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	refreshed, refreshErr := c.refresh(ctx, workspaceID, creds)
	if refreshErr != nil {
		logger.Warn("token refresh failed", "workspace_id", workspaceID, "error", refreshErr.Error())
		return err
	}
	return c.execute(ctx, refreshed.AccessToken, req, out)
}

func (c *Client) execute(ctx context.Context, token string, req Request, out any) error {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// refresh exchanges the refresh token for a new token set and saves it.
func (c *Client) refresh(ctx context.Context, workspaceID string, creds *Credentials) (*Credentials, error) {
	if c.oauth.ClientID == "" || creds.RefreshToken == "" {
		return nil, errors.New("refresh not available")
	}

	if hc, ok := c.http.(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	src := c.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	refreshed := &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		UserID:       creds.UserID,
		ExpiresAt:    tok.Expiry,
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = creds.RefreshToken
	}

	if err := c.source.SaveCredentials(ctx, workspaceID, refreshed); err != nil {
		return nil, fmt.Errorf("save refreshed credentials: %w", err)
	}

	logger.Info("token refreshed", "workspace_id", workspaceID, "token", logger.RedactToken(refreshed.AccessToken))
	return refreshed, nil
}
