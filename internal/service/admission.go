package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/metrics"
	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
	"github.com/rryowa/krychek/internal/util"
)

// AdmissionController caps requests per client identity and route within a fixed window.
// Rejection is a normal outcome and is reported through the decision, never as an error.
type AdmissionController struct {
	store         storage.AdmissionStore
	defaultPolicy models.RateLimitPolicy
	policies      map[string]models.RateLimitPolicy
	metrics       *metrics.Metrics
	log           *zap.SugaredLogger
	now           func() time.Time
}

func NewAdmissionController(
	store storage.AdmissionStore,
	cfg *util.RateLimiterConfig,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *AdmissionController {
	return &AdmissionController{
		store: store,
		defaultPolicy: models.RateLimitPolicy{
			MaxRequests: cfg.Default.MaxRequests,
			Window:      cfg.Default.Window,
		},
		policies: map[string]models.RateLimitPolicy{
			models.SpotifyRouteNow: {
				MaxRequests: cfg.NowPlaying.MaxRequests,
				Window:      cfg.NowPlaying.Window,
			},
		},
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Policy returns the route's policy, falling back to the default one.
func (a *AdmissionController) Policy(route string) models.RateLimitPolicy {
	if p, ok := a.policies[route]; ok {
		return p
	}
	return a.defaultPolicy
}

// Admit counts a request from clientID against route. A failing store admits the request.
func (a *AdmissionController) Admit(ctx context.Context, route, clientID string) models.AdmissionDecision {
	policy := a.Policy(route)
	now := a.now()

	decision, err := a.store.Admit(ctx, IdentityKey(route, clientID), policy, now)
	if err != nil {
		a.log.Errorw("admission store failed, admitting request", "route", route, "client", clientID, "error", err)
		decision = models.AdmissionDecision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests,
			ResetAt:   now.Add(policy.Window),
		}
	}

	a.metrics.ObserveAdmission(route, decision.Allowed)
	if !decision.Allowed {
		a.log.Debugw("request rejected by admission controller", "route", route, "client", clientID, "retryAfter", decision.RetryAfterSeconds)
	}
	return decision
}

func IdentityKey(route, clientID string) string {
	return route + "-" + clientID
}
