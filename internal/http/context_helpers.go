package httpx

import (
	"context"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

// snapshotKey is an unexported context key type to avoid collisions across packages.
type snapshotKey struct{}

// SetSnapshotInContext returns a child context that carries the session snapshot a request was
// authorized against.
func SetSnapshotInContext(ctx context.Context, snap domainauth.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// GetSnapshotFromContext returns the snapshot stored by RequireRole and a boolean indicating presence.
func GetSnapshotFromContext(ctx context.Context) (domainauth.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey{}).(domainauth.Snapshot)
	return snap, ok
}

// CurrentUser returns the resolved user of the request's snapshot, if any.
func CurrentUser(ctx context.Context) (domainauth.ResolvedUser, bool) {
	snap, ok := GetSnapshotFromContext(ctx)
	if !ok || !snap.Authenticated() {
		return domainauth.ResolvedUser{}, false
	}
	return *snap.User, true
}
