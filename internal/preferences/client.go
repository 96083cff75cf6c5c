package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sapliy/reminder-engine/internal/reminder"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL  = "http://localhost:8080"
	preferencesPath = "/v1/notification-preferences"
	tokenTTL        = 5 * time.Minute
)

// Patch is a partial preference document. Keys follow the JSON field names of
// reminder.Preferences.
type Patch map[string]any

// APIError is returned for any non-2xx answer from the preferences service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("preferences api error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("preferences api error: status=%d: %s", e.StatusCode, e.Message)
}

// Claims identify the user whose preferences are requested.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Client talks to the remote preferences service.
type Client struct {
	baseURL    string
	userID     string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL sets the base URL for the client.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCredentials signs every request with a short-lived HS256 bearer token
// for userID. An empty secret disables the Authorization header.
func WithCredentials(secret, userID string) ClientOption {
	return func(c *Client) {
		c.secret = []byte(secret)
		c.userID = userID
	}
}

// Get fetches the full preference document.
func (c *Client) Get(ctx context.Context) (reminder.Preferences, error) {
	var prefs reminder.Preferences
	err := c.do(ctx, http.MethodGet, preferencesPath, nil, &prefs)
	return prefs, err
}

// Update sends a partial document and returns the authoritative full document
// echoed by the service.
func (c *Client) Update(ctx context.Context, patch Patch) (reminder.Preferences, error) {
	var prefs reminder.Preferences
	err := c.do(ctx, http.MethodPut, preferencesPath, patch, &prefs)
	return prefs, err
}

func (c *Client) token() (string, error) {
	now := c.now()
	claims := &Claims{
		UserID: c.userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if len(c.secret) > 0 {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
