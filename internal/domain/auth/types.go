package auth

// Package auth contains domain-level types for credentials, resolved users and session state.
// It is pure and free of framework/adapter concerns.

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CredentialSource tags which identity backend issued a credential.
type CredentialSource string

const (
	SourceHosted CredentialSource = "hosted-identity"
	SourceLegacy CredentialSource = "legacy-database-session"
	SourceOTP    CredentialSource = "custom-otp-backend"
	SourceNone   CredentialSource = ""
)

const fingerprintSize = 12

// ProviderOwned reports whether an upstream provider owns persistence and refresh of the credential.
// Only custom-otp-backend tokens are persisted and expired by this layer.
func (s CredentialSource) ProviderOwned() bool {
	return s == SourceHosted || s == SourceLegacy
}

// Credential is an opaque bearer token plus the source that issued it.
type Credential struct {
	Source CredentialSource
	Token  string
}

// IsZero reports whether no credential is present.
func (c Credential) IsZero() bool { return c.Token == "" }

// Fingerprint returns a short stable digest of the token, safe for logs and snapshots.
func (c Credential) Fingerprint() string {
	if c.Token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.Token))
	return hex.EncodeToString(sum[:])[:fingerprintSize]
}

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleGuest:    0,
	RoleViewer:   1,
	RoleOperator: 2,
	RoleWorker:   3,
	RoleAdmin:    4,
}

// LookupRole returns the Role named by s (case-insensitive) and whether the name is known.
// Use it for operator-supplied settings, where an unknown name is a mistake.
func LookupRole(s string) (Role, bool) {
	v := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleRank[v]
	return v, ok
}

// ParseRole maps a backend role string to a Role. The backend's "user" role is a viewer;
// anything unknown falls back to guest.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), "user") {
		return RoleViewer
	}
	if v, ok := LookupRole(s); ok {
		return v
	}
	return RoleGuest
}

// AtLeast reports whether r grants at least the privileges of required.
func (r Role) AtLeast(required Role) bool {
	return roleRank[ParseRole(string(r))] >= roleRank[ParseRole(string(required))]
}

// ResolvedUser is the canonical application-level identity.
type ResolvedUser struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Area          string `json:"area,omitempty"`
	Role          Role   `json:"role"`
	PhoneVerified bool   `json:"phone_verified"`
}

// NeedsProfile is true for users that have not set a display name yet.
func (u ResolvedUser) NeedsProfile() bool { return strings.TrimSpace(u.Name) == "" }

// HostedClaims is the subset of provider-side claims used for the degraded projection.
type HostedClaims struct {
	Subject string
	Email   string
	Name    string
}

// ProjectHostedClaims builds a minimal lowest-privilege user from provider claims.
func ProjectHostedClaims(c HostedClaims) (ResolvedUser, bool) {
	if c.Subject == "" {
		return ResolvedUser{}, false
	}
	return ResolvedUser{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  RoleGuest,
	}, true
}

// SessionState is the tri-state session status.
type SessionState string

const (
	StateLoading       SessionState = "loading"
	StateAuthenticated SessionState = "authenticated"
	StateAnonymous     SessionState = "anonymous"
)

// Reason explains an anonymous snapshot to the UI.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoCredential Reason = "no_credential"
	ReasonSignedOut    Reason = "signed_out"
	ReasonRejected     Reason = "rejected"
	ReasonUnavailable  Reason = "unavailable"
)

// Snapshot is an immutable view of the session published by the store.
// User is non-nil if and only if State is authenticated.
type Snapshot struct {
	State       SessionState     `json:"state"`
	User        *ResolvedUser    `json:"user"`
	Source      CredentialSource `json:"source,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Reason      Reason           `json:"reason,omitempty"`
	Version     uint64           `json:"version"`
}

// Authenticated reports whether the snapshot carries a resolved user.
func (s Snapshot) Authenticated() bool { return s.State == StateAuthenticated && s.User != nil }
