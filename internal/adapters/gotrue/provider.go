// Package gotrue is the legacy database-auth identity provider: email/password sessions
// against a GoTrue-compatible auth service.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sudheendra1210/Citycycle/internal/adapters/listeners"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by Token and Claims when nobody is signed in.
var ErrNoSession = errors.New("no legacy session")

// Config holds configuration for the GoTrue provider.
type Config struct {
	// URL is the project URL; requests go to URL + "/auth/v1/...".
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	// RefreshStore, when set, persists the refresh token so Restore can resume the session.
	RefreshStore ports.TokenStore
	Logger       *slog.Logger
}

// Provider implements ports.IdentityProvider and ports.PasswordLogin.
type Provider struct {
	base         *url.URL
	anonKey      string
	httpClient   *http.Client
	refreshStore ports.TokenStore
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	loaded  bool
	session *legacySession

	subs listeners.Set
}

type legacySession struct {
	source    oauth2.TokenSource
	refresher *refresher
	claims    domainauth.HostedClaims
	// accessToken is the last token handed out, guarded by Provider.mu.
	accessToken string
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.PasswordLogin    = (*Provider)(nil)
)

// NewProvider validates cfg. Without a RefreshStore the provider starts loaded.
func NewProvider(cfg Config) (*Provider, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, apperrors.Misconfigured("legacy auth URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.Misconfiguredf("legacy auth URL %q is not an absolute URL", raw)
	}
	if cfg.AnonKey == "" {
		return nil, apperrors.Misconfigured("legacy auth anon key is required")
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		base:         base,
		anonKey:      cfg.AnonKey,
		httpClient:   httpClient,
		refreshStore: cfg.RefreshStore,
		logger:       logger.With("component", "gotrue_provider"),
		now:          time.Now,
		loaded:       cfg.RefreshStore == nil,
	}, nil
}

func (p *Provider) Source() domainauth.CredentialSource { return domainauth.SourceLegacy }

func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Provider) Active(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

func (p *Provider) Subscribe(fn func(ports.ProviderEvent)) func() { return p.subs.Add(fn) }

func (p *Provider) Claims(context.Context) (domainauth.HostedClaims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return domainauth.HostedClaims{}, ErrNoSession
	}
	return p.session.claims, nil
}

// SignInWithPassword runs the password grant and establishes the session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return apperrors.Validation("email and password are required")
	}
	resp, err := p.grant(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	return p.establish(ctx, resp)
}

// Token returns the current access token, refreshing it when it has expired.
// A refresh the service rejects ends the session.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return "", ErrNoSession
	}

	tok, err := s.source.Token()
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			p.logger.InfoContext(ctx, "legacy session revoked upstream")
			p.end(ctx, s)
		}
		return "", fmt.Errorf("refresh legacy token: %w", err)
	}
	p.mu.Lock()
	s.accessToken = tok.AccessToken
	p.mu.Unlock()
	return tok.AccessToken, nil
}

// SignOut ends the local session and asks the service to revoke it.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	var access string
	if s != nil {
		access = s.accessToken
	}
	p.mu.Unlock()

	var errs []error
	if p.refreshStore != nil {
		if err := p.refreshStore.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear refresh token: %w", err))
		}
	}
	if s == nil {
		return errors.Join(errs...)
	}
	p.subs.Emit(ports.EventSignedOut)

	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	req.Header.Set("Authorization", "Bearer "+access)
	if err := p.send(req, nil); err != nil {
		errs = append(errs, fmt.Errorf("logout: %w", err))
	}
	return errors.Join(errs...)
}

// Restore resumes a session from the persisted refresh token, then marks the provider loaded.
func (p *Provider) Restore(ctx context.Context) error {
	defer p.markLoaded()
	if p.refreshStore == nil {
		return nil
	}
	rt, err := p.refreshStore.Get(ctx)
	if errors.Is(err, ports.ErrNoToken) {
		return nil
	}
	if err != nil {
		p.logger.WarnContext(ctx, "read persisted refresh token", "error", err)
		return nil
	}

	resp, err := p.grant(ctx, "refresh_token", map[string]string{"refresh_token": rt})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.WarnContext(ctx, "restore legacy session", "error", err)
		if apperrors.IsUnauthorized(err) {
			_ = p.refreshStore.Clear(ctx)
		}
		return nil
	}
	if err := p.establish(ctx, resp); err != nil {
		p.logger.WarnContext(ctx, "establish restored session", "error", err)
	}
	return nil
}

func (p *Provider) markLoaded() {
	p.mu.Lock()
	was := p.loaded
	p.loaded = true
	p.mu.Unlock()
	if !was {
		p.subs.Emit(ports.EventLoaded)
	}
}

func (p *Provider) establish(ctx context.Context, resp tokenResponse) error {
	claims, err := claimsFromAccessToken(resp.AccessToken)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "decode legacy access token")
	}
	if claims.Email == "" {
		claims.Email = resp.User.Email
	}
	if claims.Name == "" {
		claims.Name = resp.User.Metadata.FullName
	}

	tok := resp.oauth2Token(p.now())
	r := &refresher{p: p, refreshToken: resp.RefreshToken}
	s := &legacySession{
		source:      oauth2.ReuseTokenSource(tok, r),
		refresher:   r,
		claims:      claims,
		accessToken: resp.AccessToken,
	}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	p.persist(ctx, resp.RefreshToken)
	p.logger.InfoContext(ctx, "legacy session established", "subject", claims.Subject)
	p.subs.Emit(ports.EventSignedIn)
	return nil
}

func (p *Provider) persist(ctx context.Context, refreshToken string) {
	if p.refreshStore == nil || refreshToken == "" {
		return
	}
	if err := p.refreshStore.Set(ctx, refreshToken); err != nil {
		p.logger.WarnContext(ctx, "persist refresh token", "error", err)
	}
}

// owns reports whether r belongs to the current session.
func (p *Provider) owns(r *refresher) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.refresher == r
}

func (p *Provider) end(ctx context.Context, s *legacySession) {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	p.session = nil
	p.mu.Unlock()

	if p.refreshStore != nil {
		_ = p.refreshStore.Clear(ctx)
	}
	p.subs.Emit(ports.EventSignedOut)
}

// refresher is the oauth2.TokenSource behind ReuseTokenSource; it rotates the refresh token.
type refresher struct {
	p *Provider

	mu           sync.Mutex
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refreshToken == "" {
		return nil, apperrors.Unauthorized("legacy session has no refresh token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp, err := r.p.grant(ctx, "refresh_token", map[string]string{"refresh_token": r.refreshToken})
	if err != nil {
		return nil, err
	}
	r.refreshToken = resp.RefreshToken
	if r.p.owns(r) {
		r.p.persist(ctx, resp.RefreshToken)
	}
	return resp.oauth2Token(r.p.now()), nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Metadata struct {
			FullName string `json:"full_name"`
		} `json:"user_metadata"`
	} `json:"user"`
}

func (r tokenResponse) oauth2Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: r.AccessToken, TokenType: r.TokenType, RefreshToken: r.RefreshToken}
	switch {
	case r.ExpiresAt > 0:
		tok.Expiry = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

type accessClaims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// claimsFromAccessToken reads identity claims without verifying the signature;
// the backend verifies the token on every request.
func claimsFromAccessToken(raw string) (domainauth.HostedClaims, error) {
	var c accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &c); err != nil {
		return domainauth.HostedClaims{}, err
	}
	if c.Subject == "" {
		return domainauth.HostedClaims{}, errors.New("access token has no subject")
	}
	name := c.UserMetadata.FullName
	if name == "" {
		name = c.UserMetadata.Name
	}
	return domainauth.HostedClaims{Subject: c.Subject, Email: c.Email, Name: name}, nil
}

func (p *Provider) grant(ctx context.Context, grantType string, body map[string]string) (tokenResponse, error) {
	var out tokenResponse
	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {grantType}}, body)
	if err != nil {
		return out, err
	}
	if err := p.send(req, &out); err != nil {
		return out, err
	}
	if out.AccessToken == "" {
		return out, apperrors.Unavailable("token response has no access_token")
	}
	return out, nil
}

func (p *Provider) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *p.base
	u.Path = p.base.Path + path
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request")
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Accept", "application/json")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (p *Provider) send(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := errorMessage(raw)
		if msg == "" {
			msg = resp.Status
		}
		// GoTrue answers bad credentials and dead refresh tokens with 400.
		if resp.StatusCode == http.StatusBadRequest {
			return apperrors.Unauthorized(msg)
		}
		return apperrors.FromStatus(resp.StatusCode, msg)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "decode auth response")
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	for _, s := range []string{body.Description, body.Msg, body.Message, body.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
