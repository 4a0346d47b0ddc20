package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeProvider)(nil)
	_ ports.LoginFlow        = (*MockLoginFlow)(nil)
	_ ports.PasswordLogin    = (*FakeProvider)(nil)
	_ ports.TokenStore       = (*MemoryTokenStore)(nil)
)

// FakeProvider is a controllable identity provider. Tests flip its session state and push events with Emit.
type FakeProvider struct {
	SourceTag domainauth.CredentialSource

	// TokenFunc overrides Token when set.
	TokenFunc func(ctx context.Context) (string, error)
	// SignOutErr is returned from SignOut after the session is ended.
	SignOutErr error

	mu         sync.Mutex
	loaded     bool
	active     bool
	token      string
	claims     domainauth.HostedClaims
	subs       map[int]func(ports.ProviderEvent)
	nextSub    int
	tokenCalls int
	signOuts   int
}

// NewFakeProvider returns a loaded, signed-out provider for source.
func NewFakeProvider(source domainauth.CredentialSource) *FakeProvider {
	return &FakeProvider{
		SourceTag: source,
		loaded:    true,
		subs:      make(map[int]func(ports.ProviderEvent)),
	}
}

func (f *FakeProvider) Source() domainauth.CredentialSource { return f.SourceTag }

func (f *FakeProvider) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *FakeProvider) Active(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *FakeProvider) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.tokenCalls++
	fn := f.TokenFunc
	token := f.token
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return token, nil
}

func (f *FakeProvider) Claims(context.Context) (domainauth.HostedClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return domainauth.HostedClaims{}, errors.New("no active session")
	}
	return f.claims, nil
}

func (f *FakeProvider) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.active = false
	f.token = ""
	f.mu.Unlock()
	f.Emit(ports.EventSignedOut)
	return f.SignOutErr
}

// SignInWithPassword accepts any non-empty credentials and signs the fake in.
func (f *FakeProvider) SignInWithPassword(_ context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password required")
	}
	f.SignIn("token-"+email, domainauth.HostedClaims{Subject: "sub-" + email, Email: email})
	return nil
}

func (f *FakeProvider) Subscribe(fn func(ports.ProviderEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// SetLoaded flips the settled flag without emitting.
func (f *FakeProvider) SetLoaded(loaded bool) {
	f.mu.Lock()
	f.loaded = loaded
	f.mu.Unlock()
}

// SetSession sets session state without emitting.
func (f *FakeProvider) SetSession(active bool, token string, claims domainauth.HostedClaims) {
	f.mu.Lock()
	f.active = active
	f.token = token
	f.claims = claims
	f.mu.Unlock()
}

// SignIn activates the session and emits EventSignedIn.
func (f *FakeProvider) SignIn(token string, claims domainauth.HostedClaims) {
	f.SetSession(true, token, claims)
	f.Emit(ports.EventSignedIn)
}

// Emit delivers ev to every subscriber.
func (f *FakeProvider) Emit(ev ports.ProviderEvent) {
	f.mu.Lock()
	fns := make([]func(ports.ProviderEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// TokenCalls reports how many times Token was invoked.
func (f *FakeProvider) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

// SignOuts reports how many times SignOut was invoked.
func (f *FakeProvider) SignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

// Subscribers reports the number of live subscriptions.
func (f *FakeProvider) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// MockLoginFlow simulates a redirect IdP with deterministic state/nonce handling.
type MockLoginFlow struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) error

	AuthURL string

	mu        sync.Mutex
	callCount int
}

func (m *MockLoginFlow) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	return authURL, fmt.Sprintf("state-%d", n), fmt.Sprintf("nonce-%d", n), nil
}

func (m *MockLoginFlow) Exchange(ctx context.Context, in ports.ExchangeInput) error {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return nil
}

// MemoryTokenStore is an in-memory durable token store for unit tests.
type MemoryTokenStore struct {
	// GetErr and SetErr, when set, are returned instead of touching the value.
	GetErr error
	SetErr error

	mu     sync.Mutex
	token  string
	writes int
}

// NewMemoryTokenStore creates a store pre-populated with token (empty for none).
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (m *MemoryTokenStore) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	if m.token == "" {
		return "", ports.ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryTokenStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	m.token = token
	m.writes++
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.writes++
	return nil
}

// Value returns the stored token without going through the port.
func (m *MemoryTokenStore) Value() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Writes counts Set and Clear calls.
func (m *MemoryTokenStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
