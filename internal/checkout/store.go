package checkout

import (
	"sync"

	"github.com/davidahmann/checkout/internal/gateway"
)

type SetupRecord struct {
	SetupTokenID string
	Status       gateway.SetupStatus
	PaymentToken gateway.PaymentToken
}

// MemoryStore keeps intents and setup tokens for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]Intent
	setups map[string]SetupRecord
	locks  map[string]*keyLock
}

// keyLock is dropped from the map once nobody holds or waits on it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]Intent),
		setups: make(map[string]SetupRecord),
		locks:  make(map[string]*keyLock),
	}
}

func (s *MemoryStore) Get(id string) (Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[id]
	if !ok {
		return Intent{}, false
	}
	return rec.clone(), true
}

func (s *MemoryStore) Put(rec Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[rec.ID] = rec.clone()
}

func (s *MemoryStore) GetSetup(id string) (SetupRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.setups[id]
	return rec, ok
}

func (s *MemoryStore) PutSetup(rec SetupRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setups[rec.SetupTokenID] = rec
}

// Lock serializes work on one key and returns the matching unlock.
func (s *MemoryStore) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
	}
}
