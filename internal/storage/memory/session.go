package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
)

type InMemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	log      *zap.SugaredLogger
}

func NewSessionRepository(log *zap.SugaredLogger) *InMemorySessionManager {
	return &InMemorySessionManager{
		sessions: make(map[string]models.Session),
		log:      log,
	}
}

func (m *InMemorySessionManager) CreateSession(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	m.log.Debugw("Session created", "sessionID", session.ID, "userID", session.UserID, "expiresAt", session.ExpiresAt)

	return nil
}

func (m *InMemorySessionManager) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		m.log.Debugw("Session not found", "sessionID", id)
		return nil, storage.ErrSessionNotFound
	}

	if session.Expired(time.Now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		m.log.Debugw("Session expired", "sessionID", id)
		return nil, storage.ErrSessionNotFound
	}

	return &session, nil
}

func (m *InMemorySessionManager) SwapCredential(_ context.Context, id string, prev, next models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok || session.Expired(time.Now()) {
		return storage.ErrSessionNotFound
	}
	if !session.Credential.Same(prev) {
		return storage.ErrCredentialConflict
	}
	session.Credential = next
	m.sessions[id] = session

	return nil
}

func (m *InMemorySessionManager) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)

	return nil
}
