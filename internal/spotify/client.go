package spotify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rryowa/krychek/internal/metrics"
	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/util"
)

const (
	MaxLimit     = 50
	DefaultLimit = 20
)

// Client reads listening data on behalf of a user.
// Calls share one outbound token bucket; top and recent responses are
// cached per access token for the configured TTL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *expirable.LRU[string, []byte]
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
}

func NewClient(cfg *util.SpotifyConfig, m *metrics.Metrics, log *zap.SugaredLogger) *Client {
	c := &Client{
		baseURL:    cfg.APIBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		metrics:    m,
		log:        log,
	}
	if cfg.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return c
}

func (c *Client) GetTopTracks(ctx context.Context, accessToken string, timeRange models.TimeRange, limit int) (*models.TopTracksResponse, error) {
	var out models.TopTracksResponse
	if _, err := c.get(ctx, accessToken, "top", topPath(models.TopTracks, timeRange, limit), true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTopArtists(ctx context.Context, accessToken string, timeRange models.TimeRange, limit int) (*models.TopArtistsResponse, error) {
	var out models.TopArtistsResponse
	if _, err := c.get(ctx, accessToken, "top", topPath(models.TopArtists, timeRange, limit), true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRecentlyPlayed(ctx context.Context, accessToken string, limit int) (*models.RecentlyPlayedResponse, error) {
	var out models.RecentlyPlayedResponse
	path := "/me/player/recently-played?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	if _, err := c.get(ctx, accessToken, "recent", path, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCurrentlyPlaying returns nil, nil when nothing is playing.
func (c *Client) GetCurrentlyPlaying(ctx context.Context, accessToken string) (*models.CurrentlyPlayingResponse, error) {
	var out models.CurrentlyPlayingResponse
	found, err := c.get(ctx, accessToken, "now", "/me/player/currently-playing", false, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCurrentUser(ctx context.Context, accessToken string) (*models.SpotifyProfile, error) {
	var out models.SpotifyProfile
	found, err := c.get(ctx, accessToken, "me", "/me", false, &out)
	if err != nil {
		return nil, err
	}
	if !found || out.ID == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "empty profile response"}
	}
	return &out, nil
}

func topPath(itemType models.TopItemType, timeRange models.TimeRange, limit int) string {
	params := url.Values{}
	params.Set("time_range", string(timeRange))
	params.Set("limit", strconv.Itoa(limit))
	return "/me/top/" + string(itemType) + "?" + params.Encode()
}

// get fetches path and decodes it into out. found is false for 204 or an empty body.
func (c *Client) get(ctx context.Context, accessToken, endpoint, path string, cacheable bool, out any) (bool, error) {
	cacheKey := ""
	if cacheable && c.cache != nil {
		sum := sha256.Sum256([]byte(accessToken))
		cacheKey = hex.EncodeToString(sum[:]) + path
		if body, ok := c.cache.Get(cacheKey); ok {
			return true, decodeBody(body, out)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("wait for upstream budget: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, 0, time.Since(start))
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Message: "Spotify API error: " + http.StatusText(resp.StatusCode)}

		var parsed apiErrorResponse
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
		c.log.Warnw("upstream returned non-2xx status", "endpoint", endpoint, "status", resp.StatusCode, "message", apiErr.Message)
		return false, apiErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return false, fmt.Errorf("%w: read body: %w", ErrTemporaryFailure, err)
	}
	if len(body) > maxResponseBody {
		return false, fmt.Errorf("%w: %s", ErrResponseTooLarge, endpoint)
	}
	if len(body) == 0 {
		return false, nil
	}

	if err := decodeBody(body, out); err != nil {
		return false, err
	}
	if cacheKey != "" {
		c.cache.Add(cacheKey, body)
	}
	return true, nil
}

func decodeBody(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}
