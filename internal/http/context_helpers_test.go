package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

func TestGetSnapshotFromContext(t *testing.T) {
	// No snapshot
	_, ok := GetSnapshotFromContext(context.Background())
	assert.False(t, ok)

	snap := domainauth.Snapshot{State: domainauth.StateAnonymous, Version: 3}
	got, ok := GetSnapshotFromContext(SetSnapshotInContext(context.Background(), snap))
	assert.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestCurrentUser(t *testing.T) {
	_, ok := CurrentUser(context.Background())
	assert.False(t, ok)

	anon := SetSnapshotInContext(context.Background(), domainauth.Snapshot{State: domainauth.StateAnonymous})
	_, ok = CurrentUser(anon)
	assert.False(t, ok, "anonymous snapshot has no user")

	user := domainauth.ResolvedUser{ID: "u1", Role: domainauth.RoleViewer}
	authed := SetSnapshotInContext(context.Background(), domainauth.Snapshot{
		State: domainauth.StateAuthenticated,
		User:  &user,
	})
	got, ok := CurrentUser(authed)
	assert.True(t, ok)
	assert.Equal(t, user, got)
}
