package oidc

// Package oidc provides the hosted-identity adapter: an OIDC relying party that owns
// the hosted session, refreshes it and signs it out.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/sudheendra1210/Citycycle/internal/adapters/listeners"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"golang.org/x/oauth2"
)

// Provider implements ports.IdentityProvider and ports.LoginFlow using OIDC/OAuth2.
type Provider struct {
	config        *oauth2.Config
	logoutURL     string
	revocationURL string
	httpClient    *http.Client
	refreshStore  ports.TokenStore
	logger        *slog.Logger
	now           func() time.Time

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	mu      sync.Mutex
	loaded  bool
	session *hostedSession

	subs listeners.Set
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	// LogoutURL overrides the discovered end_session_endpoint.
	LogoutURL  string
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
	// RefreshStore, when set, persists the refresh token so Restore can resume the session.
	RefreshStore ports.TokenStore
	Logger       *slog.Logger
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.LoginFlow        = (*Provider)(nil)
)

// NewProvider runs discovery and creates a new OIDC provider.
// Without a RefreshStore the provider is loaded as soon as it is constructed.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		logoutURL:    config.LogoutURL,
		httpClient:   httpClient,
		refreshStore: config.RefreshStore,
		logger:       logger.With("component", "oidc_provider"),
		now:          time.Now,
		loaded:       config.RefreshStore == nil,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := op.Claims(&extra); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	p.revocationURL = extra.RevocationEndpoint
	if p.logoutURL == "" {
		p.logoutURL = extra.EndSessionEndpoint
	}

	// Configure OAuth2 using discovered endpoints
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// LogoutURL is the browser-facing end-session URL, empty when the issuer has none.
func (p *Provider) LogoutURL() string { return p.logoutURL }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	// Generate cryptographically secure state and nonce
	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}

	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// Note: Don't override redirect_uri here as it should match the configured RedirectURL exactly
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return authURL, state, nonce, nil
}

// Exchange trades the authorization code for tokens, verifies the ID token nonce
// and establishes the hosted session. Subscribers receive EventSignedIn.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) error {
	if in.Code == "" {
		return errors.New("authorization code is required")
	}
	if in.State == "" {
		return errors.New("state is required")
	}
	if in.Nonce == "" {
		return errors.New("nonce is required")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), in.Code)
	if err != nil {
		return fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.identify(ctx, token, in.Nonce)
	if err != nil {
		return err
	}

	p.establish(ctx, token, claims)
	return nil
}

// identify builds HostedClaims from the ID token, filling gaps from UserInfo.
func (p *Provider) identify(ctx context.Context, token *oauth2.Token, nonce string) (domainauth.HostedClaims, error) {
	var fields idFields
	// Refresh responses may omit the id_token; restored sessions then rely on UserInfo.
	if _, missing := getIDTokenFromToken(token); missing == nil || nonce != "" {
		var err error
		fields, err = p.extractFromIDToken(ctx, token, nonce)
		if err != nil {
			return domainauth.HostedClaims{}, fmt.Errorf("extract id_token: %w", err)
		}
	}
	if fields.email == "" || fields.userID == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &fields); fillErr != nil {
			return domainauth.HostedClaims{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}
	if fields.userID == "" {
		return domainauth.HostedClaims{}, errors.New("identity has no subject")
	}
	return fields.claims(), nil
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
}

func (p *Provider) getUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var userInfo UserInfo
	if claimsErr := ui.Claims(&userInfo); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return &userInfo, nil
}

type idFields struct {
	userID     string
	email      string
	name       string
	givenName  string
	familyName string
}

func (f idFields) claims() domainauth.HostedClaims {
	name := f.name
	if name == "" {
		name = strings.TrimSpace(f.givenName + " " + f.familyName)
	}
	return domainauth.HostedClaims{Subject: f.userID, Email: f.email, Name: name}
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (idFields, error) {
	var f idFields
	if !p.hasOpenIDScope() {
		return f, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return f, err
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return f, errors.New("invalid nonce")
	}
	return mapIDTokenClaims(claims), nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.getUserInfo(ctx, accessToken)
	if err != nil {
		return err
	}
	fillFromUserInfoClaims(f, *ui)
	return nil
}

// idTokenClaims is the standard OIDC claim set the provider reads.
type idTokenClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	Nonce             string `json:"nonce"`
}

func mapIDTokenClaims(c idTokenClaims) idFields {
	return idFields{
		userID:     c.Sub,
		email:      c.Email,
		name:       firstNonEmpty(c.Name, c.PreferredUsername),
		givenName:  c.GivenName,
		familyName: c.FamilyName,
	}
}

// fillFromUserInfoClaims fills missing fields from a UserInfo payload.
func fillFromUserInfoClaims(f *idFields, ui UserInfo) {
	if f.userID == "" {
		f.userID = ui.Subject
	}
	if f.email == "" {
		f.email = ui.Email
	}
	if f.name == "" {
		f.name = firstNonEmpty(ui.Name, ui.PreferredUsername)
	}
	if f.givenName == "" {
		f.givenName = ui.GivenName
	}
	if f.familyName == "" {
		f.familyName = ui.FamilyName
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
