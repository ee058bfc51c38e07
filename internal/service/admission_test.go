package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage/memory"
	"github.com/rryowa/krychek/internal/util"
)

var admissionT0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testRateLimiterConfig() *util.RateLimiterConfig {
	return &util.RateLimiterConfig{
		Default:       util.RateLimitPolicyConfig{MaxRequests: 30, Window: time.Minute},
		NowPlaying:    util.RateLimitPolicyConfig{MaxRequests: 6, Window: 10 * time.Second},
		SweepInterval: time.Minute,
	}
}

func TestAdmissionController_NowPlayingScenario(t *testing.T) {
	store := memory.NewAdmissionStore(time.Minute, admissionT0)
	ac := NewAdmissionController(store, testRateLimiterConfig(), nil, zap.NewNop().Sugar())

	now := admissionT0
	ac.now = func() time.Time { return now }

	for i := range 6 {
		now = admissionT0.Add(time.Duration(i) * 100 * time.Millisecond)
		d := ac.Admit(context.Background(), models.SpotifyRouteNow, "1.2.3.4")
		require.True(t, d.Allowed, "call %d", i+1)
		assert.Equal(t, 5-i, d.Remaining)
		assert.Equal(t, 6, d.Limit)
	}

	now = admissionT0.Add(600 * time.Millisecond)
	d := ac.Admit(context.Background(), models.SpotifyRouteNow, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 10, d.RetryAfterSeconds)

	// another client and another route have their own windows
	assert.True(t, ac.Admit(context.Background(), models.SpotifyRouteNow, "5.6.7.8").Allowed)
	assert.True(t, ac.Admit(context.Background(), models.SpotifyRouteTop, "1.2.3.4").Allowed)

	now = admissionT0.Add(10*time.Second + time.Millisecond)
	assert.True(t, ac.Admit(context.Background(), models.SpotifyRouteNow, "1.2.3.4").Allowed)
}

func TestAdmissionController_Policy(t *testing.T) {
	ac := NewAdmissionController(memory.NewAdmissionStore(time.Minute, admissionT0), testRateLimiterConfig(), nil, zap.NewNop().Sugar())

	assert.Equal(t, models.RateLimitPolicy{MaxRequests: 6, Window: 10 * time.Second}, ac.Policy(models.SpotifyRouteNow))
	assert.Equal(t, models.RateLimitPolicy{MaxRequests: 30, Window: time.Minute}, ac.Policy(models.SpotifyRouteRecent))
	assert.Equal(t, models.RateLimitPolicy{MaxRequests: 30, Window: time.Minute}, ac.Policy(models.AuthRouteLogin))
}

type failingAdmissionStore struct{}

func (failingAdmissionStore) Admit(context.Context, string, models.RateLimitPolicy, time.Time) (models.AdmissionDecision, error) {
	return models.AdmissionDecision{}, errors.New("store unavailable")
}

func TestAdmissionController_FailsOpen(t *testing.T) {
	ac := NewAdmissionController(failingAdmissionStore{}, testRateLimiterConfig(), nil, zap.NewNop().Sugar())
	ac.now = func() time.Time { return admissionT0 }

	d := ac.Admit(context.Background(), models.SpotifyRouteTop, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 30, d.Limit)
	assert.Equal(t, admissionT0.Add(time.Minute), d.ResetAt)
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "spotify-now-1.2.3.4", IdentityKey(models.SpotifyRouteNow, "1.2.3.4"))
}
