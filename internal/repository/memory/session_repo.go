package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
)

type sessionEntry struct {
	data      []byte
	expiresAt time.Time
}

// SessionRepository keeps form sessions in process memory. Used when Redis is not configured.
// Sessions are stored serialized so callers never share mutable state.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *SessionRepository) Get(id string) (*domain.FormSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.sessions, id)
		return nil, domain.ErrSessionNotFound
	}

	var session domain.FormSession
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Fees == nil {
		session.Fees = []domain.Fee{}
	}
	return &session, nil
}

func (r *SessionRepository) Save(session *domain.FormSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = sessionEntry{data: data, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *SessionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
