package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
)

const sessionKeyPrefix = "session:"

type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session models.Session) error {
	data, ttl, err := encodeSession(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// SwapCredential is an optimistic WATCH/MULTI transaction on the session key.
func (r *SessionRepository) SwapCredential(ctx context.Context, id string, prev, next models.Credential) error {
	key := sessionKeyPrefix + id

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return storage.ErrSessionNotFound
			}
			return fmt.Errorf("get session: %w", err)
		}

		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		if !session.Credential.Same(prev) {
			return storage.ErrCredentialConflict
		}

		session.Credential = next
		encoded, ttl, err := encodeSession(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return storage.ErrCredentialConflict
	case err != nil && !errors.Is(err, storage.ErrSessionNotFound) && !errors.Is(err, storage.ErrCredentialConflict):
		return fmt.Errorf("swap credential: %w", err)
	}
	return err
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func encodeSession(session models.Session) ([]byte, time.Duration, error) {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil, 0, fmt.Errorf("session %s already expired", session.ID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, 0, fmt.Errorf("encode session: %w", err)
	}
	return data, ttl, nil
}
