// Package session holds the single source of truth for the current session: its state,
// the resolved user and the credential that user is attached to.
package session

import (
	"sync"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

// Store publishes immutable snapshots of the session to any number of subscribers.
// It is safe for concurrent use. Construct one per composition root; there is no package-level instance.
type Store struct {
	mu      sync.RWMutex
	snap    domainauth.Snapshot
	pending string
	subs    map[chan domainauth.Snapshot]struct{}
}

// NewStore returns a store in the loading state.
func NewStore() *Store {
	return &Store{
		snap: domainauth.Snapshot{State: domainauth.StateLoading, Version: 1},
		subs: make(map[chan domainauth.Snapshot]struct{}),
	}
}

// State returns the current snapshot.
func (s *Store) State() domainauth.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap)
}

// SetLoading marks the session as not yet settled and drops any resolved user.
func (s *Store) SetLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State == domainauth.StateLoading && s.snap.User == nil {
		return
	}
	s.publish(domainauth.Snapshot{State: domainauth.StateLoading})
}

// SetResolvedUser attaches user to the credential the store currently tracks.
// A nil user yields anonymous unless a credential is pending resolution, in which case
// the store stays loading until the pending pass commits.
func (s *Store) SetResolvedUser(user *domainauth.ResolvedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		if s.pending != "" {
			return
		}
		s.publish(domainauth.Snapshot{State: domainauth.StateAnonymous, Reason: domainauth.ReasonNoCredential})
		return
	}
	s.publish(domainauth.Snapshot{
		State:       domainauth.StateAuthenticated,
		User:        user,
		Source:      s.snap.Source,
		Fingerprint: s.snap.Fingerprint,
	})
}

// Begin records that cred is being resolved. If the current user belongs to a different
// credential the store drops back to loading so stale content is never shown under a new login.
func (s *Store) Begin(cred domainauth.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := cred.Fingerprint()
	s.pending = fp
	if s.snap.State == domainauth.StateAuthenticated && s.snap.Fingerprint != fp {
		s.publish(domainauth.Snapshot{
			State:       domainauth.StateLoading,
			Source:      cred.Source,
			Fingerprint: fp,
		})
	}
}

// Commit finishes a resolution pass. A non-nil user is attached to cred (authenticated);
// a nil user yields anonymous. reason is recorded on either snapshot.
func (s *Store) Commit(cred domainauth.Credential, user *domainauth.ResolvedUser, reason domainauth.Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = ""
	fp := cred.Fingerprint()
	if user == nil {
		s.publish(domainauth.Snapshot{State: domainauth.StateAnonymous, Reason: reason})
		return
	}
	if s.snap.State == domainauth.StateAuthenticated && s.snap.Fingerprint != fp {
		s.publish(domainauth.Snapshot{State: domainauth.StateLoading, Source: cred.Source, Fingerprint: fp})
	}
	s.publish(domainauth.Snapshot{
		State:       domainauth.StateAuthenticated,
		User:        user,
		Source:      cred.Source,
		Fingerprint: fp,
		Reason:      reason,
	})
}

// Subscribe returns a channel receiving the current snapshot immediately and every later one.
// A slow subscriber may miss intermediate snapshots but always ends up holding the newest.
// cancel unregisters and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan domainauth.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domainauth.Snapshot, buffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- cloneSnapshot(s.snap)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, ch)
			close(ch)
		})
	}
	return ch, cancel
}

// publish must be called with mu held.
func (s *Store) publish(next domainauth.Snapshot) {
	next.Version = s.snap.Version + 1
	if next.User != nil {
		u := *next.User
		next.User = &u
	}
	s.snap = next

	for ch := range s.subs {
		out := cloneSnapshot(next)
		select {
		case ch <- out:
			continue
		default:
		}
		// Replace the oldest buffered snapshot with the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- out:
		default:
		}
	}
}

func cloneSnapshot(s domainauth.Snapshot) domainauth.Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
