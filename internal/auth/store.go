package auth

import "sync"

// MemoryStore holds one session's credential for the lifetime of its
// dashboard controller.
type MemoryStore struct {
	mu      sync.Mutex
	cred    Credential
	cleared bool
}

// NewMemoryStore seeds a store with token. An empty token starts cleared.
func NewMemoryStore(token string) *MemoryStore {
	s := &MemoryStore{}
	s.Set(token)
	return s
}

// Credential returns the cached credential when one is present.
func (s *MemoryStore) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared || !s.cred.Valid() {
		return Credential{}, false
	}
	return s.cred, true
}

// Set replaces the cached credential.
func (s *MemoryStore) Set(token string) {
	cred := ParseCredential(token)
	s.mu.Lock()
	s.cred = cred
	s.cleared = !cred.Valid()
	s.mu.Unlock()
}

// Clear drops the cached credential.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.cred = Credential{}
	s.cleared = true
	s.mu.Unlock()
}

// Token returns the raw token or an empty string once cleared.
func (s *MemoryStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared {
		return ""
	}
	return s.cred.Token
}
