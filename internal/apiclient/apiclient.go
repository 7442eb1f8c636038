// Package apiclient sends requests to the storefront API on behalf of the
// current session.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const bearerPrefix = "Bearer "

// TokenSource returns the current session token, empty when there is none.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL resolves path against the base URL. path may omit its leading slash.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Fetch sends a request with the session's bearer token and a JSON Accept
// header unless the caller set one. An empty method means GET. The response
// is returned as is, whatever its status.
func (c *Client) Fetch(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	url := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("couldn't build request for %s: %w", url, err)
	}

	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		if strings.HasPrefix(token, bearerPrefix) {
			req.Header.Set("Authorization", token)
		} else {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Info("auth fetch",
		zap.String("url", url),
		zap.String("method", method),
		zap.String("token", redact(req.Header.Get("Authorization"))),
	)

	return c.httpClient.Do(req)
}

// redact keeps the scheme and the first characters of a credential.
func redact(authorization string) string {
	if authorization == "" {
		return ""
	}
	cred := strings.TrimPrefix(authorization, bearerPrefix)
	if len(cred) > 6 {
		cred = cred[:6] + "…"
	}
	return bearerPrefix + cred
}

// StatusError is returned by the JSON helpers for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

const maxErrorBody = 4 << 10

// GetJSON fetches path and decodes the JSON body into a T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (*T, error) {
	res, err := c.Fetch(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     http.MethodGet,
			URL:        c.URL(path),
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	out := new(T)
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("couldn't decode %s: %w", c.URL(path), err)
	}
	return out, nil
}
