package session

import (
	"sync"
	"testing"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan domainauth.Snapshot) []domainauth.Snapshot {
	var out []domainauth.Snapshot
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestStore_InitialStateIsLoading(t *testing.T) {
	s := NewStore()
	snap := s.State()
	assert.Equal(t, domainauth.StateLoading, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.Authenticated())
}

func TestStore_CommitAuthenticatedAndAnonymous(t *testing.T) {
	s := NewStore()
	cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}

	s.Begin(cred)
	s.Commit(cred, &domainauth.ResolvedUser{ID: "u1", Role: domainauth.RoleViewer}, domainauth.ReasonNone)

	snap := s.State()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, domainauth.SourceOTP, snap.Source)
	assert.Equal(t, cred.Fingerprint(), snap.Fingerprint)

	s.Commit(domainauth.Credential{}, nil, domainauth.ReasonSignedOut)
	snap = s.State()
	assert.Equal(t, domainauth.StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Equal(t, domainauth.ReasonSignedOut, snap.Reason)
}

func TestStore_CredentialSwitchPassesThroughLoading(t *testing.T) {
	s := NewStore()
	first := domainauth.Credential{Source: domainauth.SourceOTP, Token: "one"}
	second := domainauth.Credential{Source: domainauth.SourceHosted, Token: "two"}
	s.Commit(first, &domainauth.ResolvedUser{ID: "u1"}, domainauth.ReasonNone)

	ch, cancel := s.Subscribe(16)
	defer cancel()

	s.Begin(second)
	s.Commit(second, &domainauth.ResolvedUser{ID: "u2"}, domainauth.ReasonNone)

	got := drain(ch)
	require.Len(t, got, 3)
	assert.Equal(t, "u1", got[0].User.ID)
	assert.Equal(t, domainauth.StateLoading, got[1].State)
	assert.Nil(t, got[1].User)
	assert.Equal(t, "u2", got[2].User.ID)
	assert.Equal(t, second.Fingerprint(), got[2].Fingerprint)
}

func TestStore_CommitWithoutBeginStillTransitions(t *testing.T) {
	s := NewStore()
	first := domainauth.Credential{Source: domainauth.SourceOTP, Token: "one"}
	second := domainauth.Credential{Source: domainauth.SourceOTP, Token: "two"}
	s.Commit(first, &domainauth.ResolvedUser{ID: "u1"}, domainauth.ReasonNone)

	ch, cancel := s.Subscribe(16)
	defer cancel()

	s.Commit(second, &domainauth.ResolvedUser{ID: "u2"}, domainauth.ReasonNone)

	got := drain(ch)
	require.Len(t, got, 3)
	assert.Equal(t, domainauth.StateLoading, got[1].State)
	assert.Equal(t, "u2", got[2].User.ID)
}

func TestStore_SameCredentialRefreshSkipsLoading(t *testing.T) {
	s := NewStore()
	cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}
	s.Commit(cred, &domainauth.ResolvedUser{ID: "u1", Name: ""}, domainauth.ReasonNone)

	ch, cancel := s.Subscribe(16)
	defer cancel()

	s.Begin(cred)
	s.Commit(cred, &domainauth.ResolvedUser{ID: "u1", Name: "Ravi"}, domainauth.ReasonNone)

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Equal(t, "Ravi", got[1].User.Name)
}

func TestStore_SetResolvedUser(t *testing.T) {
	t.Run("nil without pending credential is anonymous", func(t *testing.T) {
		s := NewStore()
		s.SetResolvedUser(nil)
		assert.Equal(t, domainauth.StateAnonymous, s.State().State)
	})

	t.Run("nil with pending credential stays loading", func(t *testing.T) {
		s := NewStore()
		s.Begin(domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"})
		s.SetResolvedUser(nil)
		assert.Equal(t, domainauth.StateLoading, s.State().State)
	})

	t.Run("user keeps tracked credential", func(t *testing.T) {
		s := NewStore()
		cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}
		s.Commit(cred, &domainauth.ResolvedUser{ID: "u1"}, domainauth.ReasonNone)
		s.SetResolvedUser(&domainauth.ResolvedUser{ID: "u1", Area: "north"})

		snap := s.State()
		require.True(t, snap.Authenticated())
		assert.Equal(t, "north", snap.User.Area)
		assert.Equal(t, cred.Fingerprint(), snap.Fingerprint)
	})
}

func TestStore_SetLoadingClearsUser(t *testing.T) {
	s := NewStore()
	s.Commit(domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}, &domainauth.ResolvedUser{ID: "u1"}, domainauth.ReasonNone)
	s.SetLoading()

	snap := s.State()
	assert.Equal(t, domainauth.StateLoading, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Fingerprint)
}

func TestStore_VersionIsMonotonic(t *testing.T) {
	s := NewStore()
	cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}
	prev := s.State().Version
	for i := 0; i < 5; i++ {
		s.Commit(cred, &domainauth.ResolvedUser{ID: "u1"}, domainauth.ReasonNone)
		next := s.State().Version
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	user := &domainauth.ResolvedUser{ID: "u1", Name: "Asha"}
	s.Commit(domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}, user, domainauth.ReasonNone)

	user.Name = "mutated"
	snap := s.State()
	snap.User.Name = "also mutated"

	assert.Equal(t, "Asha", s.State().User.Name)
}

func TestStore_SlowSubscriberReceivesLatest(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: "abc"}
	for i := 0; i < 10; i++ {
		s.Commit(cred, &domainauth.ResolvedUser{ID: "u1", Area: string(rune('a' + i))}, domainauth.ReasonNone)
	}

	got := drain(ch)
	require.Len(t, got, 1)
	assert.Equal(t, s.State().Version, got[0].Version)
	assert.Equal(t, "j", got[0].User.Area)
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic.
	s.SetResolvedUser(nil)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(4)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: string(rune('a' + i))}
			for j := 0; j < 50; j++ {
				s.Begin(cred)
				s.Commit(cred, &domainauth.ResolvedUser{ID: cred.Token}, domainauth.ReasonNone)
				_ = s.State()
			}
		}(i)
	}
	wg.Wait()

	snaps := drain(ch)
	require.NotEmpty(t, snaps)
	assert.Equal(t, s.State().Version, snaps[len(snaps)-1].Version)
}
