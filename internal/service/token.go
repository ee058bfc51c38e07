package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rryowa/krychek/internal/metrics"
	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/spotify"
	"github.com/rryowa/krychek/internal/util"
)

// TokenManager drives the credential state machine:
//
//	Fresh --(time)--> Expired --(refresh ok)--> Fresh
//	                  Expired --(refresh fails)--> RefreshFailed (terminal)
type TokenManager struct {
	provider   TokenProvider
	timeout    time.Duration
	maxRetries uint64
	retryBase  time.Duration
	group      singleflight.Group
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewTokenManager(provider TokenProvider, cfg *util.RefreshConfig, m *metrics.Metrics, log *zap.SugaredLogger) *TokenManager {
	return &TokenManager{
		provider:   provider,
		timeout:    cfg.Timeout,
		maxRetries: uint64(max(cfg.MaxRetries, 0)),
		retryBase:  cfg.RetryBase,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// Resolve brings cred to a usable state in place and reports whether it changed.
// Fresh and RefreshFailed records are returned untouched without any network call.
// An Expired record is refreshed synchronously; failure sets the sticky flag.
func (m *TokenManager) Resolve(ctx context.Context, cred *models.Credential) bool {
	if cred.State(m.now()) != models.CredentialExpired {
		return false
	}

	grant, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		m.log.Errorw("Error refreshing access token", "error", err)
		m.metrics.ObserveRefresh(metrics.RefreshFailed)
		cred.MarkRefreshFailed()
		return true
	}

	m.metrics.ObserveRefresh(metrics.RefreshSucceeded)
	cred.ApplyGrant(*grant, m.now())
	return true
}

// refresh coalesces concurrent refreshes of the same token into one call.
// The call is detached from the caller's cancellation and bounded per attempt.
func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (*models.TokenGrant, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	v, err, _ := m.group.Do(refreshToken, func() (any, error) {
		var grant *models.TokenGrant
		backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.retryBase))

		err := retry.Do(context.WithoutCancel(ctx), backoff, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			g, err := m.provider.RefreshToken(attemptCtx, refreshToken)
			if err != nil {
				if errors.Is(err, spotify.ErrTemporaryFailure) {
					m.metrics.ObserveRefresh(metrics.RefreshRetried)
					m.log.Warnw("transient token refresh failure", "error", err)
					return retry.RetryableError(err)
				}
				return err
			}
			grant = g
			return nil
		})
		if err != nil {
			return nil, err
		}
		return grant, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	grant, ok := v.(*models.TokenGrant)
	if !ok || grant == nil {
		return nil, errors.New("refresh access token: empty grant")
	}
	return grant, nil
}
