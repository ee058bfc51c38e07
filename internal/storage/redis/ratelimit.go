package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/krychek/internal/models"
)

const rateLimitKeyPrefix = "ratelimit:"

// admitScript checks and counts in one round trip. A rejected request is not counted.
// Returns {allowed, count, pttl}.
//
//nolint:gochecknoglobals // compiled once, safe for concurrent use
var admitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local window = tonumber(ARGV[2])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
current = tonumber(current)
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
if current >= tonumber(ARGV[1]) then
  return {0, current, ttl}
end
local count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// AdmissionStore shares fixed-window counters across instances.
// Windows expire through key TTLs, so no sweep is needed.
type AdmissionStore struct {
	client *redis.Client
}

func NewAdmissionStore(client *redis.Client) *AdmissionStore {
	return &AdmissionStore{client: client}
}

func (s *AdmissionStore) Admit(
	ctx context.Context,
	key string,
	policy models.RateLimitPolicy,
	now time.Time,
) (models.AdmissionDecision, error) {
	res, err := admitScript.Run(
		ctx,
		s.client,
		[]string{rateLimitKeyPrefix + key},
		policy.MaxRequests,
		policy.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return models.AdmissionDecision{}, fmt.Errorf("run admit script: %w", err)
	}
	if len(res) != 3 {
		return models.AdmissionDecision{}, fmt.Errorf("admit script: unexpected reply %v", res)
	}

	allowed, count, ttl := res[0] == 1, int(res[1]), time.Duration(res[2])*time.Millisecond
	resetAt := now.Add(ttl)

	if !allowed {
		return models.AdmissionDecision{
			Allowed:           false,
			Limit:             policy.MaxRequests,
			Remaining:         0,
			ResetAt:           resetAt,
			RetryAfterSeconds: models.RetryAfterSeconds(resetAt, now),
		}, nil
	}

	return models.AdmissionDecision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests - count,
		ResetAt:   resetAt,
	}, nil
}
