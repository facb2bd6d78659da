// Package client talks to the admin console backend: OAuth2 login, menus,
// access codes, resource CRUD, dictionaries, chunked uploads and exports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/notify"
	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
	"github.com/jmake-zxb/jk-ui/pkg/retry"
)

// DefaultUploadPath is the resource that accepts chunked uploads.
const DefaultUploadPath = "/ai/reviewDocument"

// refreshMargin is how close to expiry a token is refreshed before use.
const refreshMargin = 30 * time.Second

// Client is a backend API client. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	micro        bool
	clientID     string
	clientSecret string
	scope        string
	pwdEncKey    string
	uploadPath   string
	notices      *notify.Bus

	mu      sync.RWMutex
	session *models.Session
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config

	// Micro keeps /auth/... paths as-is; monolith deployments serve them
	// under /admin.
	Micro bool
	// OAuth2Client is "clientID:clientSecret" for the password grant.
	OAuth2Client string
	Scope        string
	// PwdEncKey, when set, encrypts the password before login.
	PwdEncKey  string
	Token      string
	UploadPath string
	Notices    *notify.Bus

	// Transport is the base transport; requests are always logged.
	Transport http.RoundTripper
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = DefaultUploadPath
	}
	if cfg.Scope == "" {
		cfg.Scope = "server"
	}
	base := cfg.Transport
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	id, secret, _ := strings.Cut(cfg.OAuth2Client, ":")
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: logging.NewTransport(base),
		},
		retryConfig:  cfg.RetryConfig,
		micro:        cfg.Micro,
		clientID:     id,
		clientSecret: secret,
		scope:        cfg.Scope,
		pwdEncKey:    cfg.PwdEncKey,
		uploadPath:   "/" + strings.Trim(cfg.UploadPath, "/"),
		notices:      cfg.Notices,
	}
	if cfg.Token != "" {
		c.SetToken(cfg.Token)
	}
	return c
}

// APIError is a failed call: a non-2xx status or a non-zero envelope code.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api error: status %d, code %d", e.Status, e.Code)
	}
	return fmt.Sprintf("api error: status %d, code %d: %s", e.Status, e.Code, e.Msg)
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.Status == http.StatusUnauthorized
}

func apiErrorFrom(status int, body []byte) *APIError {
	ae := &APIError{Status: status}
	var er protocol.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		ae.Code = er.Code
		switch {
		case er.Msg != "":
			ae.Msg = er.Msg
		case er.ErrorDescription != "":
			ae.Msg = er.ErrorDescription
		default:
			ae.Msg = er.Error
		}
	}
	if ae.Msg == "" {
		ae.Msg = strings.TrimSpace(string(body))
		if len(ae.Msg) > 200 {
			ae.Msg = ae.Msg[:200]
		}
	}
	return ae
}

// Session returns a copy of the current session, or nil when logged out.
func (c *Client) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SetSession replaces the current session.
func (c *Client) SetSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

// SetToken installs a bare access token. JWT tokens contribute their
// expiry.
func (c *Client) SetToken(token string) {
	s := &models.Session{AccessToken: token, TokenType: "Bearer"}
	if exp, err := TokenExpiry(token); err == nil {
		s.ExpiresAt = exp
	}
	c.SetSession(s)
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	}
}

// ensureFresh refreshes a token about to expire. Failures are logged and
// the request goes ahead with the old token.
func (c *Client) ensureFresh(ctx context.Context) {
	s := c.Session()
	if s == nil || s.RefreshToken == "" || !s.IsExpired(refreshMargin) {
		return
	}
	if _, err := c.Refresh(ctx); err != nil {
		logging.WithContext(ctx).Warn("token refresh failed", logging.Err(err))
	}
}

func (c *Client) url(p string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(p, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// call performs a JSON request and decodes the envelope's data into out.
// GET requests are retried on transport errors and 5xx responses.
func (c *Client) call(ctx context.Context, method, p string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	c.ensureFresh(ctx)

	attempt := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(p, query), body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.applyAuth(req)
		return c.do(req, out)
	}

	if method != http.MethodGet {
		return attempt()
	}
	return retry.Do(ctx, c.retryConfig, attempt)
}

// do sends req and decodes the envelope. Transport errors and 5xx
// responses are marked retryable.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}
	return decodeEnvelope(resp.StatusCode, data, out)
}

func decodeEnvelope(status int, data []byte, out any) error {
	if status < 200 || status > 299 {
		ae := apiErrorFrom(status, data)
		if status >= 500 {
			return retry.Retryable(ae)
		}
		return ae
	}

	var env protocol.RawResult
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != protocol.CodeOK {
		return &APIError{Status: status, Code: env.Code, Msg: env.Msg}
	}
	if out == nil || protocol.IsNull(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// AdaptURL rewrites /auth/... paths for monolith deployments, where the
// auth endpoints live under /admin. Micro-service deployments keep p.
func AdaptURL(p string, micro bool) string {
	if micro {
		return p
	}
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return "/admin/"
	}
	return "/admin/" + strings.Join(parts[2:], "/")
}
