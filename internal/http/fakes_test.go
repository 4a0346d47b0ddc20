package httpx

import (
	"context"
	"sync"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/sudheendra1210/Citycycle/internal/session"
	"github.com/sudheendra1210/Citycycle/internal/testutil"
)

// fakeBridge records calls and answers from its function fields; unset fields succeed.
type fakeBridge struct {
	store *session.Store

	signOutErr     error
	refreshFunc    func(ctx context.Context) (domainauth.Snapshot, error)
	startPhoneFunc func(ctx context.Context, phone, name string) error
	completeFunc   func(ctx context.Context, phone, code string) (domainauth.ResolvedUser, error)
	requestFunc    func(ctx context.Context, phone string) error
	verifyFunc     func(ctx context.Context, phone, code string) (ports.HostedVerification, error)
	profileFunc    func(ctx context.Context, upd ports.ProfileUpdate) (domainauth.Snapshot, error)

	mu       sync.Mutex
	triggers []string
	signOuts int
}

var _ SessionBridge = (*fakeBridge)(nil)

func newFakeBridge() *fakeBridge { return &fakeBridge{store: session.NewStore()} }

func (f *fakeBridge) Notify(trigger string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
}

func (f *fakeBridge) Triggers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.triggers...)
}

func (f *fakeBridge) Resolve(context.Context) domainauth.Snapshot { return f.store.State() }

func (f *fakeBridge) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.store.Commit(domainauth.Credential{}, nil, domainauth.ReasonSignedOut)
	return f.signOutErr
}

func (f *fakeBridge) RefreshResolvedUser(ctx context.Context) (domainauth.Snapshot, error) {
	if f.refreshFunc != nil {
		return f.refreshFunc(ctx)
	}
	return f.store.State(), nil
}

func (f *fakeBridge) StartPhoneVerification(ctx context.Context, phone, name string) error {
	if f.startPhoneFunc != nil {
		return f.startPhoneFunc(ctx, phone, name)
	}
	return nil
}

func (f *fakeBridge) CompletePhoneVerification(ctx context.Context, phone, code string) (domainauth.ResolvedUser, error) {
	if f.completeFunc != nil {
		return f.completeFunc(ctx, phone, code)
	}
	return domainauth.ResolvedUser{ID: "u1", Phone: phone, Role: domainauth.RoleViewer, PhoneVerified: true}, nil
}

func (f *fakeBridge) RequestHostedVerification(ctx context.Context, phone string) error {
	if f.requestFunc != nil {
		return f.requestFunc(ctx, phone)
	}
	return nil
}

func (f *fakeBridge) VerifyHostedVerification(ctx context.Context, phone, code string) (ports.HostedVerification, error) {
	if f.verifyFunc != nil {
		return f.verifyFunc(ctx, phone, code)
	}
	return ports.HostedVerification{Verified: true, Phone: phone}, nil
}

func (f *fakeBridge) UpdateProfile(ctx context.Context, upd ports.ProfileUpdate) (domainauth.Snapshot, error) {
	if f.profileFunc != nil {
		return f.profileFunc(ctx, upd)
	}
	return f.store.State(), nil
}

func signIn(store *session.Store, role domainauth.Role) {
	user := testutil.NewUser().WithID("u1").WithName("Asha").WithRole(role).Build()
	store.Commit(domainauth.Credential{Source: domainauth.SourceOTP, Token: "tok"}, &user, domainauth.ReasonNone)
}
