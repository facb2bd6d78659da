package client

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
)

// Auth endpoints.
const (
	TokenPath  = "/auth/oauth2/token"
	LogoutPath = "/auth/token/logout"
	CodesPath  = "/auth/codes"
)

// ErrNotLoggedIn is returned by calls that need a refresh token.
var ErrNotLoggedIn = errors.New("client: not logged in")

// LoginParams are the password login inputs. Code and RandomStr carry
// the captcha answer when the backend requires one.
type LoginParams struct {
	Username  string
	Password  string
	Code      string
	RandomStr string
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.url(AdaptURL(TokenPath, c.micro), nil),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: []string{c.scope},
	}
}

// oauthContext routes token requests through the client's transport. Any
// extra values are added to the form body of the grant.
func (c *Client) oauthContext(ctx context.Context, extra url.Values) context.Context {
	hc := c.httpClient
	if len(extra) > 0 {
		cp := *c.httpClient
		cp.Transport = &formFields{base: c.httpClient.Transport, extra: extra}
		hc = &cp
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// formFields appends fields to form-encoded request bodies. The token
// endpoint reads the captcha next to grant_type.
type formFields struct {
	base  http.RoundTripper
	extra url.Values
}

func (t *formFields) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Body == nil {
		return base.RoundTrip(req)
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read token request: %w", err)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse token request: %w", err)
	}
	for k, vs := range t.extra {
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	enc := form.Encode()

	req = req.Clone(req.Context())
	req.Body = io.NopCloser(strings.NewReader(enc))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(enc)), nil
	}
	req.ContentLength = int64(len(enc))
	return base.RoundTrip(req)
}

// Login runs the OAuth2 password grant and installs the resulting session.
func (c *Client) Login(ctx context.Context, p LoginParams) (*models.Session, error) {
	password := p.Password
	if c.pwdEncKey != "" {
		enc, err := EncryptPassword(password, c.pwdEncKey)
		if err != nil {
			return nil, err
		}
		password = enc
	}

	extra := url.Values{}
	if p.Code != "" {
		extra.Set("code", p.Code)
	}
	if p.RandomStr != "" {
		extra.Set("randomStr", p.RandomStr)
	}

	tok, err := c.oauthConfig().PasswordCredentialsToken(c.oauthContext(ctx, extra), p.Username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", tokenError(err))
	}

	s := sessionFromToken(tok)
	if s.Username == "" {
		s.Username = p.Username
	}
	c.SetSession(s)
	logging.WithContext(ctx).Info("logged in",
		logging.String("username", s.Username),
		logging.String("client_id", s.ClientID),
	)
	return c.Session(), nil
}

// Refresh exchanges the refresh token for a new session.
func (c *Client) Refresh(ctx context.Context) (*models.Session, error) {
	cur := c.Session()
	if cur == nil || cur.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	src := c.oauthConfig().TokenSource(c.oauthContext(ctx, nil), &oauth2.Token{RefreshToken: cur.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", tokenError(err))
	}

	s := sessionFromToken(tok)
	if s.RefreshToken == "" {
		s.RefreshToken = cur.RefreshToken
	}
	if s.Username == "" {
		s.Username = cur.Username
	}
	if s.UserID == "" {
		s.UserID = cur.UserID
	}
	c.SetSession(s)
	return c.Session(), nil
}

// Logout revokes the token on the server and clears the session. The
// session is cleared even when the server rejects the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodDelete, LogoutPath, nil, nil, nil)
	if err == nil || IsUnauthorized(err) {
		c.SetSession(nil)
		return nil
	}
	c.SetSession(nil)
	return fmt.Errorf("logout: %w", err)
}

// AccessCodes returns the permission codes of the current principal.
func (c *Client) AccessCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := c.call(ctx, http.MethodGet, CodesPath, nil, nil, &codes); err != nil {
		return nil, fmt.Errorf("access codes: %w", err)
	}
	return codes, nil
}

// UserInfo returns the current principal's profile.
func (c *Client) UserInfo(ctx context.Context) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := c.call(ctx, http.MethodGet, "/admin/user/info", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	return &info, nil
}

func sessionFromToken(tok *oauth2.Token) *models.Session {
	extra := tokenExtras(tok)
	s := &models.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
		UserID:       extra.UserID,
		Username:     extra.Username,
		ClientID:     extra.ClientID,
		License:      extra.License,
	}
	if s.ExpiresAt.IsZero() {
		if exp, err := TokenExpiry(tok.AccessToken); err == nil {
			s.ExpiresAt = exp
		}
	}
	return s
}

// tokenExtras reads the backend's non-standard token response members.
func tokenExtras(tok *oauth2.Token) protocol.TokenResponse {
	str := func(key string) string {
		switch v := tok.Extra(key).(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
	return protocol.TokenResponse{
		UserID:   str("user_id"),
		Username: str("username"),
		ClientID: str("clientId"),
		License:  str("license"),
	}
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	return apiErrorFrom(re.Response.StatusCode, re.Body)
}

// TokenExpiry reads the exp claim of a JWT access token without
// verifying it. Opaque tokens return an error.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

// EncryptPassword encrypts plain with AES-CFB, using key as both key and
// IV, and returns base64. This is the backend's login password format.
func EncryptPassword(plain, key string) (string, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("password key: %w", err)
	}
	out := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, []byte(key)[:aes.BlockSize]).XORKeyStream(out, []byte(plain))
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptPassword reverses EncryptPassword.
func DecryptPassword(enc, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode password: %w", err)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("password key: %w", err)
	}
	out := make([]byte, len(raw))
	cipher.NewCFBDecrypter(block, []byte(key)[:aes.BlockSize]).XORKeyStream(out, raw)
	return string(out), nil
}
