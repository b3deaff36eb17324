package guard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIntentTTL bounds how long a login redirect remembers its destination.
const DefaultIntentTTL = 10 * time.Minute

// Intent remembers where to resume after signing in.
type Intent struct {
	ID         string
	ResumePath string
	Message    string
	CreatedAt  time.Time
}

// IntentStore holds pending intents. Each intent can be consumed once.
type IntentStore struct {
	mu      sync.Mutex
	intents map[string]Intent
	ttl     time.Duration
	now     func() time.Time
}

// NewIntentStore creates an empty store. A non-positive ttl uses DefaultIntentTTL.
func NewIntentStore(ttl time.Duration) *IntentStore {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &IntentStore{
		intents: make(map[string]Intent),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put registers intent under a fresh ID and returns the stored copy.
func (s *IntentStore) Put(intent Intent) Intent {
	intent.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	intent.CreatedAt = s.now()
	s.pruneLocked(intent.CreatedAt)
	s.intents[intent.ID] = intent
	return intent
}

// Peek returns the intent without consuming it, for showing its message.
func (s *IntentStore) Peek(id string) (Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || s.expired(intent, s.now()) {
		return Intent{}, false
	}
	return intent, true
}

// Consume retrieves and removes an intent. Missing or expired intents
// report false.
func (s *IntentStore) Consume(id string) (Intent, bool) {
	s.mu.Lock()
	intent, ok := s.intents[id]
	if ok {
		delete(s.intents, id)
	}
	now := s.now()
	s.mu.Unlock()
	if !ok || s.expired(intent, now) {
		return Intent{}, false
	}
	return intent, true
}

// Len returns the number of pending intents, expired ones included.
func (s *IntentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}

func (s *IntentStore) expired(intent Intent, now time.Time) bool {
	return now.Sub(intent.CreatedAt) > s.ttl
}

func (s *IntentStore) pruneLocked(now time.Time) {
	for id, intent := range s.intents {
		if s.expired(intent, now) {
			delete(s.intents, id)
		}
	}
}
