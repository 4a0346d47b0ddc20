package ports

// Package ports defines interfaces (hexagonal ports) for identity sources, durable token storage
// and the CityCycle backend. Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

// ProviderEvent is pushed by an IdentityProvider when its session state changes.
type ProviderEvent string

const (
	// EventLoaded fires once when the provider has settled its initial state.
	EventLoaded ProviderEvent = "loaded"
	// EventSignedIn fires after a successful sign-in or session restore.
	EventSignedIn ProviderEvent = "signed_in"
	// EventSignedOut fires after sign-out or upstream revocation.
	EventSignedOut ProviderEvent = "signed_out"
)

// IdentityProvider is an upstream identity source that owns persistence and refresh of its credential
// (hosted identity, legacy database session).
type IdentityProvider interface {
	// Source identifies the credential kind this provider issues.
	Source() domainauth.CredentialSource
	// Loaded reports whether the provider has settled its initial state.
	Loaded() bool
	// Active reports whether the provider currently holds a signed-in session.
	Active(ctx context.Context) bool
	// Token fetches a fresh bearer token. It may perform network I/O and may fail.
	Token(ctx context.Context) (string, error)
	// Claims returns the provider-side identity claims of the active session.
	Claims(ctx context.Context) (domainauth.HostedClaims, error)
	// SignOut ends the provider session.
	SignOut(ctx context.Context) error
	// Subscribe registers fn for session events and returns an unsubscribe function.
	Subscribe(fn func(ProviderEvent)) (unsubscribe func())
}

// BeginInput carries inputs for initiating a redirect login flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// LoginFlow initiates and completes a redirect-based sign-in against a hosted provider.
type LoginFlow interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)
	// Exchange completes the login flow, verifying state and nonce, and establishes the provider session.
	Exchange(ctx context.Context, in ExchangeInput) error
}

// PasswordLogin signs in with email and password against a database-auth service.
type PasswordLogin interface {
	SignInWithPassword(ctx context.Context, email, password string) error
}

// ErrNoToken is returned by TokenStore.Get when no durable token is stored.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the custom-otp-backend bearer token under a single durable key.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// PhoneVerification is the backend's answer to a successful custom OTP verification.
type PhoneVerification struct {
	Token string
	User  domainauth.ResolvedUser
}

// HostedVerification is the backend's answer to a hosted-session OTP verification.
type HostedVerification struct {
	Verified bool   `json:"verified"`
	Phone    string `json:"phone,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ProfileUpdate carries partial profile fields; nil fields are left untouched.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
	Area *string `json:"area,omitempty"`
}

// IdentityAPI is the CityCycle backend's auth contract.
type IdentityAPI interface {
	// Me resolves the canonical user for a bearer token.
	Me(ctx context.Context, bearer string) (domainauth.ResolvedUser, error)
	// SendPhoneOTP asks the backend to text a one-time code. No auth.
	SendPhoneOTP(ctx context.Context, phone, name string) error
	// VerifyPhoneOTP checks a code and returns a new custom-otp-backend token. No auth.
	VerifyPhoneOTP(ctx context.Context, phone, code string) (PhoneVerification, error)
	// RequestOTP asks for a code under an existing session bearer.
	RequestOTP(ctx context.Context, bearer, phone string) error
	// VerifyOTP checks a code under an existing session bearer.
	VerifyOTP(ctx context.Context, bearer, phone, code string) (HostedVerification, error)
	// UpdateProfile sends partial profile fields using the effective credential.
	UpdateProfile(ctx context.Context, upd ProfileUpdate) error
}
