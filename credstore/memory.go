package credstore

import (
	"sync"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps credentials for the life of the process. It is the
// degraded mode of FileStore and the store of choice in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
	ident *identity.Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
}

func (s *MemoryStore) Load() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

func (s *MemoryStore) SaveIdentitySnapshot(id *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == nil {
		s.ident = nil
		return
	}
	copied := *id
	s.ident = &copied
}

func (s *MemoryStore) LoadIdentitySnapshot() *identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ident == nil {
		return nil
	}
	copied := *s.ident
	return &copied
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.ident = nil
}
