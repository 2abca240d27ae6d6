package core

import (
	"context"
	"sync"
)

// SessionReader is the synchronous view guards need.
type SessionReader interface {
	Current() *Identity
}

// SessionState holds "current user or none" and fans changes out to subscribers.
//
// Publishes are serialized: every subscriber sees publish N before any sees
// publish N+1, in subscription order. Subscribers run on the publishing
// goroutine and must not call Publish themselves.
type SessionState struct {
	pubMu sync.Mutex // serializes Publish and Subscribe

	mu      sync.RWMutex
	current *Identity
	subs    []*subscriber
	nextID  uint64
}

type subscriber struct {
	id uint64
	fn func(*Identity)
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// Initialize publishes the cached identity from store, without any network call.
// The identity counts only when a credential is stored with it. Half of a
// login (either key alone, or an unreadable identity) is cleared so that the
// bearer transport never sends a token the guards do not see.
func (s *SessionState) Initialize(ctx context.Context, store *TokenStore) {
	var initial *Identity
	_, hasToken := store.Token(ctx)
	id, hasIdentity := store.CachedIdentity(ctx)
	switch {
	case hasToken && hasIdentity:
		initial = &id
	case hasToken || hasIdentity:
		store.Clear(ctx)
	}
	s.Publish(initial)
}

// Current returns a copy of the current identity, or nil when signed out.
func (s *SessionState) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneIdentity(s.current)
}

// Publish replaces the current value and notifies subscribers before returning.
func (s *SessionState) Publish(id *Identity) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.current = cloneIdentity(id)
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(cloneIdentity(id))
	}
}

// Subscribe registers fn, calls it once with the current value, and returns
// a function that removes the subscription.
func (s *SessionState) Subscribe(fn func(*Identity)) (unsubscribe func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	cur := cloneIdentity(s.current)
	s.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.subs {
				if existing.id == sub.id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	c.Roles = append([]string(nil), id.Roles...)
	return &c
}
