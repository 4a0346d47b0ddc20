package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		if !envBool("TESTUTIL_FLAG") {
			t.Errorf("envBool(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "no", "off"} {
		t.Setenv("TESTUTIL_FLAG", v)
		if envBool("TESTUTIL_FLAG") {
			t.Errorf("envBool(%q) = true, want false", v)
		}
	}
}

func TestSelectTestRedisDB_RespectsOverride(t *testing.T) {
	t.Setenv("TEST_REDIS_DB", "7")
	if got := selectTestRedisDB(t, "unused:0"); got != 7 {
		t.Fatalf("selectTestRedisDB = %d, want 7", got)
	}
}

func TestUserBuilder(t *testing.T) {
	u := NewUser().WithID("u1").WithRole(domainauth.RoleAdmin).WithName("").Unverified().Build()
	if u.ID != "u1" || u.Role != domainauth.RoleAdmin || u.PhoneVerified {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !u.NeedsProfile() {
		t.Fatal("user without a name should need a profile")
	}
}

func TestSignedToken(t *testing.T) {
	exp := TestTime().Add(time.Hour)
	raw := SignedToken(t, "sub-1", exp)

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "sub-1" || !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRedisCandidates_PrefersEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	got := redisCandidates()
	if got[0] != "cache:6380" || len(got) != 4 {
		t.Fatalf("redisCandidates = %v", got)
	}

	t.Setenv("REDIS_ADDR", "")
	if got := redisCandidates(); got[0] != "redis:6379" {
		t.Fatalf("redisCandidates without env = %v", got)
	}
}

func TestPtr(t *testing.T) {
	p := Ptr("Ward 7")
	if p == nil || *p != "Ward 7" {
		t.Fatalf("Ptr = %v", p)
	}
}
