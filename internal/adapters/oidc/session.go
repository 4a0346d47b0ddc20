package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sudheendra1210/Citycycle/internal/credential"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by Token and Claims when no hosted session is active.
var ErrNoSession = errors.New("no hosted session")

type hostedSession struct {
	source       oauth2.TokenSource
	refreshToken string
	accessToken  string
	claims       domainauth.HostedClaims
}

func (p *Provider) Source() domainauth.CredentialSource { return domainauth.SourceHosted }

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

// Claims returns the identity captured when the session was established.
func (p *Provider) Claims(context.Context) (domainauth.HostedClaims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return domainauth.HostedClaims{}, ErrNoSession
	}
	return p.session.claims, nil
}

// Token returns a fresh bearer, refreshing through the token endpoint when the cached
// access token has expired. An unexpired id_token is preferred over the access token.
// A refresh rejected with invalid_grant ends the session.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return "", ErrNoSession
	}

	tok, err := s.source.Token()
	if err != nil {
		if isRevoked(err) {
			p.logger.InfoContext(ctx, "hosted session revoked upstream")
			p.end(ctx, s)
		}
		return "", fmt.Errorf("refresh hosted token: %w", err)
	}
	if tok.RefreshToken != "" && tok.RefreshToken != s.refreshToken {
		p.rotate(ctx, s, tok.RefreshToken)
	}

	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		if exp, ok := credential.ExpiresAt(raw); !ok || exp.After(p.now()) {
			return raw, nil
		}
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response has no usable bearer")
	}
	return tok.AccessToken, nil
}

// SignOut drops the local session, forgets the persisted refresh token and revokes it
// at the issuer when a revocation_endpoint was discovered.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	var errs []error
	if p.refreshStore != nil {
		if err := p.refreshStore.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear refresh token: %w", err))
		}
	}
	if s != nil {
		p.subs.Emit(ports.EventSignedOut)
		if err := p.revoke(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore resumes a session from the persisted refresh token and then marks the
// provider loaded. Failures leave the provider signed out; they are logged, not returned,
// unless ctx is done.
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

	tok, err := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.WarnContext(ctx, "restore hosted session", "error", err)
		if isRevoked(err) {
			_ = p.refreshStore.Clear(ctx)
		}
		return nil
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = rt
	}

	claims, err := p.identify(ctx, tok, "")
	if err != nil {
		p.logger.WarnContext(ctx, "identify restored session", "error", err)
		return nil
	}
	p.establish(ctx, tok, claims)
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

func (p *Provider) establish(ctx context.Context, tok *oauth2.Token, claims domainauth.HostedClaims) {
	s := &hostedSession{
		// Background context: the source outlives the request that created it.
		source:       p.config.TokenSource(p.clientContext(context.Background()), tok),
		refreshToken: tok.RefreshToken,
		accessToken:  tok.AccessToken,
		claims:       claims,
	}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	if p.refreshStore != nil && tok.RefreshToken != "" {
		if err := p.refreshStore.Set(ctx, tok.RefreshToken); err != nil {
			p.logger.WarnContext(ctx, "persist refresh token", "error", err)
		}
	}
	p.logger.InfoContext(ctx, "hosted session established", "subject", claims.Subject)
	p.subs.Emit(ports.EventSignedIn)
}

func (p *Provider) rotate(ctx context.Context, s *hostedSession, refreshToken string) {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	s.refreshToken = refreshToken
	p.mu.Unlock()

	if p.refreshStore != nil {
		if err := p.refreshStore.Set(ctx, refreshToken); err != nil {
			p.logger.WarnContext(ctx, "persist rotated refresh token", "error", err)
		}
	}
}

// end clears s if it is still the current session.
func (p *Provider) end(ctx context.Context, s *hostedSession) {
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

func (p *Provider) revoke(ctx context.Context, s *hostedSession) error {
	if p.revocationURL == "" {
		return nil
	}
	token, hint := s.refreshToken, "refresh_token"
	if token == "" {
		token, hint = s.accessToken, "access_token"
	}
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}, "token_type_hint": {hint}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke hosted token: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke hosted token: %s", resp.Status)
	}
	return nil
}

func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re) && re.ErrorCode == "invalid_grant"
}
