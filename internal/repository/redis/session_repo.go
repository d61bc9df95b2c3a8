package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
)

const sessionKeyPrefix = "session:"

// SessionRepository stores form sessions as JSON with a sliding TTL
type SessionRepository struct {
	client *Client
	ttl    time.Duration
}

func NewSessionRepository(client *Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *SessionRepository) Get(id string) (*domain.FormSession, error) {
	data, err := r.client.Get(context.Background(), sessionKey(id))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession([]byte(data))
}

func (r *SessionRepository) Save(session *domain.FormSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(context.Background(), sessionKey(session.ID), data, r.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(id string) error {
	n, err := r.client.Del(context.Background(), sessionKey(id))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func decodeSession(data []byte) (*domain.FormSession, error) {
	var session domain.FormSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Fees == nil {
		session.Fees = []domain.Fee{}
	}
	return &session, nil
}
