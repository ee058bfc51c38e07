package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
)

const (
	defaultHTTPStatusThreshold = 300
	webhookTimeout             = 5 * time.Second

	EventLogin         = "login"
	EventLogout        = "logout"
	EventRefreshFailed = "refresh_failed"
)

// WebhookService posts session events to WEBHOOK_URL. Delivery is best effort.
type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{Timeout: webhookTimeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *WebhookService) Notify(ctx context.Context, event models.SessionEvent) {
	if s.webhookURL == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			s.log.Errorw("failed to marshal webhook payload", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create webhook request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send webhook", "event", event.Event, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("webhook returned non-2xx status", "event", event.Event, "status", resp.StatusCode)
		}
	}()
}
