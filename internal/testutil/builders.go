package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

// UserBuilder provides a fluent interface for building ResolvedUser values for testing.
type UserBuilder struct {
	user domainauth.ResolvedUser
}

// NewUser creates a UserBuilder with sensible defaults: a named, phone-verified viewer.
func NewUser() *UserBuilder {
	return &UserBuilder{
		user: domainauth.ResolvedUser{
			ID:            "user_test",
			Email:         "test@citycycle.test",
			Name:          "Test User",
			Phone:         "+15551234567",
			Area:          "Ward 1",
			Role:          domainauth.RoleViewer,
			PhoneVerified: true,
		},
	}
}

// WithID sets the user ID.
func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.user.ID = id
	return b
}

// WithRole sets the role.
func (b *UserBuilder) WithRole(role domainauth.Role) *UserBuilder {
	b.user.Role = role
	return b
}

// WithName sets the display name; an empty name marks the profile incomplete.
func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.user.Name = name
	return b
}

// WithArea sets the service area.
func (b *UserBuilder) WithArea(area string) *UserBuilder {
	b.user.Area = area
	return b
}

// Unverified clears the phone verification flag.
func (b *UserBuilder) Unverified() *UserBuilder {
	b.user.PhoneVerified = false
	return b
}

// Build returns the built user.
func (b *UserBuilder) Build() domainauth.ResolvedUser {
	return b.user
}

// SignedToken returns an HS256 JWT for subject expiring at exp, signed with a throwaway key.
func SignedToken(t TestingTB, subject string, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("testutil"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return s
}
