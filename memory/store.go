package memory

import (
	"context"
	"sync"
	"time"
)

// Round is one question/answer turn of a conversation.
type Round struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ConversationStore keeps per-session chat history for the answer prompt.
// Sessions are keyed by the messaging platform's user id.
type ConversationStore interface {
	GetLastNRounds(ctx context.Context, sessionID string, n int) ([]Round, error)
	SaveRound(ctx context.Context, sessionID string, round Round) error
	Clear(ctx context.Context, sessionID string) error
}

// InMemoryStore is the single-process implementation. Each session keeps at
// most maxRounds recent turns.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]Round
	maxRounds int
}

func NewInMemoryStore(maxRounds int) *InMemoryStore {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &InMemoryStore{
		sessions:  make(map[string][]Round),
		maxRounds: maxRounds,
	}
}

func (s *InMemoryStore) GetLastNRounds(_ context.Context, sessionID string, n int) ([]Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rounds := s.sessions[sessionID]
	if len(rounds) == 0 {
		return []Round{}, nil
	}
	if n <= 0 || n >= len(rounds) {
		n = len(rounds)
	}
	out := make([]Round, n)
	copy(out, rounds[len(rounds)-n:])
	return out, nil
}

func (s *InMemoryStore) SaveRound(_ context.Context, sessionID string, round Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rounds := append(s.sessions[sessionID], round)
	if len(rounds) > s.maxRounds {
		rounds = rounds[len(rounds)-s.maxRounds:]
	}
	s.sessions[sessionID] = rounds
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
