package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrClosed is returned for requests issued through a closed session
var ErrClosed = errors.New("session closed")

// Credentials identify the agent account used for one run. Either Token
// (API token, paired with Email) or OAuthToken must be set.
type Credentials struct {
	Email      string
	Token      *Secret
	OAuthToken *Secret
}

// Destroy zeroes every secret held by the credentials
func (c Credentials) Destroy() {
	c.Token.Destroy()
	c.OAuthToken.Destroy()
}

// Validate checks that one authentication method is complete
func (c Credentials) Validate() error {
	if !c.OAuthToken.Empty() {
		return nil
	}
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("email is required for API token authentication")
	}
	if c.Token.Empty() {
		return errors.New("API token or OAuth token is required")
	}
	return nil
}

// Session is an authenticated HTTP context owned by one collector run
type Session struct {
	baseURL   string
	client    *http.Client
	transport *http.Transport
	creds     Credentials

	mu     sync.Mutex
	closed bool
}

type options struct {
	timeout time.Duration
	base    http.RoundTripper
}

// Option configures Open
type Option func(*options)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// Open creates a session that takes ownership of creds. The secrets are
// destroyed by Close, and also when Open fails.
func Open(ctx context.Context, baseURL string, creds Credentials, opts ...Option) (*Session, error) {
	if err := creds.Validate(); err != nil {
		creds.Destroy()
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	o := options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}

	base := o.base
	if base == nil {
		s.transport = http.DefaultTransport.(*http.Transport).Clone()
		base = s.transport
	}

	var rt http.RoundTripper
	if !creds.OAuthToken.Empty() {
		rt = &oauth2.Transport{
			Source: &secretTokenSource{secret: creds.OAuthToken},
			Base:   base,
		}
	} else {
		rt = &tokenTransport{base: base, email: creds.Email, secret: creds.Token}
	}

	s.client = &http.Client{
		Transport: &closeGuard{s: s, next: rt},
		Timeout:   o.timeout,
	}
	return s, nil
}

// Client returns the authenticated HTTP client
func (s *Session) Client() *http.Client {
	return s.client
}

// BaseURL returns the helpdesk base URL without trailing slash
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Close destroys the credentials and closes idle connections. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.creds.Destroy()
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	return nil
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type closeGuard struct {
	s    *Session
	next http.RoundTripper
}

func (g *closeGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	if g.s.Closed() {
		return nil, ErrClosed
	}
	return g.next.RoundTrip(req)
}

// tokenTransport authenticates with "{email}/token:{api_token}" basic auth
type tokenTransport struct {
	base   http.RoundTripper
	email  string
	secret *Secret
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := t.secret.Reveal()
	if !ok {
		return nil, ErrClosed
	}
	r := req.Clone(req.Context())
	creds := t.email + "/token:" + token
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	return t.base.RoundTrip(r)
}

type secretTokenSource struct {
	secret *Secret
}

func (s *secretTokenSource) Token() (*oauth2.Token, error) {
	token, ok := s.secret.Reveal()
	if !ok {
		return nil, ErrClosed
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
