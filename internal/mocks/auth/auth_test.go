package auth

import (
	"context"
	"errors"
	"testing"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLoginFlow_Begin_Defaults(t *testing.T) {
	flow := &MockLoginFlow{}
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"}
	authURL, state, nonce, err := flow.Begin(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	// Second call should increment counters
	_, state2, nonce2, err := flow.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockLoginFlow_CustomFuncs(t *testing.T) {
	exchangeErr := errors.New("bad code")
	flow := &MockLoginFlow{
		BeginFunc: func(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
			return "custom-url", "custom-state", "custom-nonce", nil
		},
		ExchangeFunc: func(_ context.Context, _ ports.ExchangeInput) error {
			return exchangeErr
		},
	}
	ctx := context.Background()

	authURL, state, nonce, err := flow.Begin(ctx, ports.BeginInput{})
	require.NoError(t, err)
	assert.Equal(t, "custom-url", authURL)
	assert.Equal(t, "custom-state", state)
	assert.Equal(t, "custom-nonce", nonce)

	err = flow.Exchange(ctx, ports.ExchangeInput{Code: "c"})
	assert.ErrorIs(t, err, exchangeErr)
}

func TestFakeProvider_SessionLifecycle(t *testing.T) {
	p := NewFakeProvider(domainauth.SourceHosted)
	ctx := context.Background()

	var events []ports.ProviderEvent
	unsubscribe := p.Subscribe(func(ev ports.ProviderEvent) { events = append(events, ev) })

	assert.True(t, p.Loaded())
	assert.False(t, p.Active(ctx))

	p.SignIn("tok", domainauth.HostedClaims{Subject: "user_1"})
	assert.True(t, p.Active(ctx))
	token, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	claims, err := p.Claims(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)

	require.NoError(t, p.SignOut(ctx))
	assert.False(t, p.Active(ctx))
	assert.Equal(t, 1, p.SignOuts())
	assert.Equal(t, []ports.ProviderEvent{ports.EventSignedIn, ports.EventSignedOut}, events)

	unsubscribe()
	assert.Equal(t, 0, p.Subscribers())
}

func TestFakeProvider_SignOutErrorStillEndsSession(t *testing.T) {
	p := NewFakeProvider(domainauth.SourceHosted)
	p.SignOutErr = errors.New("network down")
	p.SetSession(true, "tok", domainauth.HostedClaims{Subject: "s"})

	err := p.SignOut(context.Background())
	require.Error(t, err)
	assert.False(t, p.Active(context.Background()))
}

func TestFakeProvider_PasswordLogin(t *testing.T) {
	p := NewFakeProvider(domainauth.SourceLegacy)
	ctx := context.Background()

	require.Error(t, p.SignInWithPassword(ctx, "", "secret"))
	require.NoError(t, p.SignInWithPassword(ctx, "a@b.c", "secret"))
	token, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-a@b.c", token)
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore("")
	ctx := context.Background()

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ports.ErrNoToken)

	require.NoError(t, store.Set(ctx, "abc"))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.Error(t, store.Set(ctx, ""))

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.Value())
	assert.Equal(t, 2, store.Writes())
}
