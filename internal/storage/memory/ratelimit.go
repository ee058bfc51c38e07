package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rryowa/krychek/internal/models"
)

// AdmissionStore is a process-local fixed-window counter map.
// It is only consistent for a single instance deployment.
type AdmissionStore struct {
	mu            sync.Mutex
	entries       map[string]*models.RateLimitEntry
	sweepInterval time.Duration
	lastSweep     time.Time
}

func NewAdmissionStore(sweepInterval time.Duration, now time.Time) *AdmissionStore {
	return &AdmissionStore{
		entries:       make(map[string]*models.RateLimitEntry),
		sweepInterval: sweepInterval,
		lastSweep:     now,
	}
}

func (s *AdmissionStore) Admit(
	_ context.Context,
	key string,
	policy models.RateLimitPolicy,
	now time.Time,
) (models.AdmissionDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweep(now)

	entry, ok := s.entries[key]
	if !ok || now.After(entry.WindowResetAt) {
		entry = &models.RateLimitEntry{Count: 1, WindowResetAt: now.Add(policy.Window)}
		s.entries[key] = entry
		return models.AdmissionDecision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests - 1,
			ResetAt:   entry.WindowResetAt,
		}, nil
	}

	if entry.Count >= policy.MaxRequests {
		return models.AdmissionDecision{
			Allowed:           false,
			Limit:             policy.MaxRequests,
			Remaining:         0,
			ResetAt:           entry.WindowResetAt,
			RetryAfterSeconds: models.RetryAfterSeconds(entry.WindowResetAt, now),
		}, nil
	}

	entry.Count++
	return models.AdmissionDecision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests - entry.Count,
		ResetAt:   entry.WindowResetAt,
	}, nil
}

// Len reports the number of tracked keys.
func (s *AdmissionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// maybeSweep runs removeExpired at most once per sweep interval. Caller holds mu.
func (s *AdmissionStore) maybeSweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = now
	s.removeExpired(now)
}

func (s *AdmissionStore) removeExpired(now time.Time) {
	for key, entry := range s.entries {
		if now.After(entry.WindowResetAt) {
			delete(s.entries, key)
		}
	}
}
