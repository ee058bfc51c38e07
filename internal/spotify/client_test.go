package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
)

func TestClient_GetTopArtists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/me/top/artists", r.URL.Path)
		assert.Equal(t, "long_term", r.URL.Query().Get("time_range"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"items":[{"id":"a1","name":"Artist","external_urls":{"spotify":"https://x"}}],"total":1,"limit":50,"offset":0}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	res, err := c.GetTopArtists(context.Background(), "tok", models.TimeRangeLong, 50)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Artist", res.Items[0].Name)
}

func TestClient_CachesTopAndRecentPerToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"items":[],"limit":20}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	ctx := context.Background()

	_, err := c.GetRecentlyPlayed(ctx, "tok", 20)
	require.NoError(t, err)
	_, err = c.GetRecentlyPlayed(ctx, "tok", 20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.GetRecentlyPlayed(ctx, "other-token", 20)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GetCurrentlyPlaying_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	res, err := c.GetCurrentlyPlaying(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClient_GetCurrentlyPlaying_NotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"is_playing":true,"progress_ms":1000,"item":{"id":"t1","name":"Song"}}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	for i := 0; i < 2; i++ {
		res, err := c.GetCurrentlyPlaying(context.Background(), "tok")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.True(t, res.IsPlaying)
		assert.Equal(t, "Song", res.Item.Name)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	_, err := c.GetTopTracks(context.Background(), "tok", models.TimeRangeMedium, 20)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "The access token expired", apiErr.Message)
}

func TestClient_OversizedBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[],"padding":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBody)))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	_, err := c.GetTopTracks(context.Background(), "tok", models.TimeRangeMedium, 20)
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestClient_GetCurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"user-1","email":"u@example.com","display_name":"User"}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL), nil, zap.NewNop().Sugar())
	p, err := c.GetCurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "User", p.DisplayName)
}
