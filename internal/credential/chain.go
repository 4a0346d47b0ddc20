// Package credential selects the effective bearer credential from the configured identity sources.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"golang.org/x/sync/singleflight"
)

// Mode controls how the chain treats an active provider whose token cannot be obtained.
type Mode int

const (
	// Strict gives the first active provider exclusive ownership of the lookup.
	// A failed token fetch yields no credential; lower sources are not consulted.
	Strict Mode = iota
	// FallThrough moves on to the next source when a provider fails or returns an empty token.
	FallThrough
)

func (m Mode) String() string {
	if m == FallThrough {
		return "fall_through"
	}
	return "strict"
}

// Result is the outcome of one lookup.
type Result struct {
	Credential domainauth.Credential
	// Owner is the active provider that owned a Strict lookup, set even when its token fetch failed.
	Owner ports.IdentityProvider
	// ProviderErr is the token-fetch failure of Owner, if any.
	ProviderErr error
	// Expired holds the stored OTP token when it was skipped because its exp claim has passed.
	Expired string
}

// Options configures a Chain.
type Options struct {
	// Providers in precedence order, highest first.
	Providers []ports.IdentityProvider
	Tokens    ports.TokenStore
	Logger    *slog.Logger
	// Now is used for token expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Chain resolves the effective credential. It is safe for concurrent use.
type Chain struct {
	providers []ports.IdentityProvider
	tokens    ports.TokenStore
	logger    *slog.Logger
	now       func() time.Time
	fetches   singleflight.Group
}

// New constructs a Chain.
func New(opts Options) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Chain{
		providers: opts.Providers,
		tokens:    opts.Tokens,
		logger:    logger.With("component", "credential_chain"),
		now:       now,
	}
}

// Providers returns the configured providers in precedence order.
func (c *Chain) Providers() []ports.IdentityProvider { return c.providers }

// ActiveProvider returns the highest-precedence provider that reports a session, or nil.
func (c *Chain) ActiveProvider(ctx context.Context) ports.IdentityProvider {
	for _, p := range c.providers {
		if p.Active(ctx) {
			return p
		}
	}
	return nil
}

// Resolve returns the effective credential for mode. It never returns an error:
// upstream failures are logged and reported on the Result.
func (c *Chain) Resolve(ctx context.Context, mode Mode) Result {
	var res Result
	for _, p := range c.providers {
		if !p.Active(ctx) {
			continue
		}
		token, err := c.providerToken(ctx, p)
		if err == nil && token != "" {
			res.Credential = domainauth.Credential{Source: p.Source(), Token: token}
			res.Owner = p
			return res
		}
		if err == nil {
			err = errors.New("provider returned an empty token")
		}
		c.logger.WarnContext(ctx, "provider token unavailable",
			"source", string(p.Source()),
			"mode", mode.String(),
			"error", err)
		if mode == Strict {
			res.Owner = p
			res.ProviderErr = err
			return res
		}
	}

	token, expired := c.localToken(ctx)
	if expired {
		res.Expired = token
		return res
	}
	if token != "" {
		res.Credential = domainauth.Credential{Source: domainauth.SourceOTP, Token: token}
	}
	return res
}

// Local returns the stored OTP token if present and not expired.
func (c *Chain) Local(ctx context.Context) string {
	token, expired := c.localToken(ctx)
	if expired {
		return ""
	}
	return token
}

// providerToken shares one in-flight fetch per provider. The fetch is detached from any single
// caller's cancellation; each caller stops waiting when its own ctx is done.
func (c *Chain) providerToken(ctx context.Context, p ports.IdentityProvider) (string, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(string(p.Source()), func() (any, error) {
		return p.Token(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

func (c *Chain) localToken(ctx context.Context) (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	token, err := c.tokens.Get(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrNoToken) {
			c.logger.WarnContext(ctx, "read stored token failed", "error", err)
		}
		return "", false
	}
	exp, ok := ExpiresAt(token)
	if ok && !exp.After(c.now()) {
		return token, true
	}
	return token, false
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report ok=false.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
