package devauth

// Package devauth provides a config-driven identity provider for local development.
// It skips the redirect round-trip and mints HS256 tokens the backend accepts when it
// shares the signing secret.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sudheendra1210/Citycycle/internal/adapters/listeners"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// Config controls the dev auth provider behavior.
// UserID, Email and Secret are required.
type Config struct {
	UserID          string
	Email           string
	Name            string
	Secret          string
	Issuer          string                      // default "citycycle-dev"
	Source          domainauth.CredentialSource // default hosted-identity
	SessionDuration time.Duration               // default 8h when zero
	// SignedIn starts the provider with an active session.
	SignedIn bool
}

// Provider implements ports.IdentityProvider and ports.LoginFlow for local development.
// Begin redirects straight back to our own callback; Exchange ignores the code.
type Provider struct {
	claims          domainauth.HostedClaims
	secret          []byte
	issuer          string
	source          domainauth.CredentialSource
	sessionDuration time.Duration
	now             func() time.Time

	mu     sync.Mutex
	active bool
	token  string
	exp    time.Time

	subs listeners.Set
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.LoginFlow        = (*Provider)(nil)
	_ ports.PasswordLogin    = (*Provider)(nil)
)

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("dev auth: Secret is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "citycycle-dev"
	}
	source := cfg.Source
	if source == domainauth.SourceNone {
		source = domainauth.SourceHosted
	}
	if !source.ProviderOwned() {
		return nil, fmt.Errorf("dev auth: source %q is not provider-owned", source)
	}
	return &Provider{
		claims:          domainauth.HostedClaims{Subject: cfg.UserID, Email: cfg.Email, Name: cfg.Name},
		secret:          []byte(cfg.Secret),
		issuer:          issuer,
		source:          source,
		sessionDuration: dur,
		now:             time.Now,
		active:          cfg.SignedIn,
	}, nil
}

func (p *Provider) Source() domainauth.CredentialSource { return p.source }

// Loaded is always true: there is nothing to restore.
func (p *Provider) Loaded() bool { return true }

func (p *Provider) Active(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Provider) Subscribe(fn func(ports.ProviderEvent)) func() { return p.subs.Add(fn) }

// remintSkew is how close to expiry a cached token may get before Token mints a new one.
const remintSkew = time.Minute

// Token returns an HS256 token for the configured identity, minting a new one when the
// cached token is within a minute of expiry.
func (p *Provider) Token(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return "", errors.New("dev auth: signed out")
	}
	now := p.now()
	if p.token != "" && now.Add(remintSkew).Before(p.exp) {
		return p.token, nil
	}
	claims := struct {
		Email string `json:"email,omitempty"`
		Name  string `json:"name,omitempty"`
		jwt.RegisteredClaims
	}{
		Email: p.claims.Email,
		Name:  p.claims.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   p.claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.sessionDuration)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("dev auth: sign token: %w", err)
	}
	p.token, p.exp = s, claims.ExpiresAt.Time
	return s, nil
}

func (p *Provider) Claims(ctx context.Context) (domainauth.HostedClaims, error) {
	if !p.Active(ctx) {
		return domainauth.HostedClaims{}, errors.New("dev auth: signed out")
	}
	return p.claims, nil
}

func (p *Provider) SignOut(context.Context) error {
	if p.setActive(false) {
		p.subs.Emit(ports.EventSignedOut)
	}
	return nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// Our standard handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by handler) and signs in.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) error {
	p.signIn()
	return nil
}

// SignInWithPassword accepts the configured email with any non-empty password.
func (p *Provider) SignInWithPassword(_ context.Context, email, password string) error {
	if email != p.claims.Email || password == "" {
		return errors.New("dev auth: invalid credentials")
	}
	p.signIn()
	return nil
}

func (p *Provider) signIn() {
	p.setActive(true)
	p.subs.Emit(ports.EventSignedIn)
}

// setActive reports whether the state changed.
func (p *Provider) setActive(v bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.active != v
	p.active = v
	if !v {
		p.token, p.exp = "", time.Time{}
	}
	return changed
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		// pad
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
