package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-session/pkg/models"
)

func fastRetry() Option {
	return WithRetry(2, time.Millisecond, 5*time.Millisecond)
}

func TestPostEvent(t *testing.T) {
	var got models.SessionEventPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sessions/abc/events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Session-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, "abc", fastRetry())
	err := c.PostEvent(context.Background(), models.SessionEventPayload{
		SessionID:    "abc",
		Event:        "MANIFEST_READY",
		ManifestPath: "/tmp/hls/manifest.m3u8",
		DurationSec:  120,
	})

	require.NoError(t, err)
	assert.Equal(t, "MANIFEST_READY", got.Event)
	assert.Equal(t, int64(120), got.DurationSec)
}

func TestFinalize(t *testing.T) {
	var path string
	var got models.SessionResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, "abc", fastRetry())
	payload := models.SessionResultPayload{Status: models.StatusFailed, ExitCode: 1, ErrorMsg: "boom"}
	payload.Metrics.Attempts = 2
	require.NoError(t, c.Finalize(context.Background(), payload))

	assert.Equal(t, "/api/v1/sessions/abc/finalize", path)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 2, got.Metrics.Attempts)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, "abc", fastRetry())
	require.NoError(t, c.PostEvent(context.Background(), models.SessionEventPayload{Event: "PIPELINE_STATUS"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotFoundIsStateError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, "abc", fastRetry())
	err := c.PostEvent(context.Background(), models.SessionEventPayload{})

	require.Error(t, err)
	assert.True(t, IsStateError(err))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, "abc", fastRetry())
	err := c.Finalize(context.Background(), models.SessionResultPayload{})

	require.ErrorContains(t, err, "400")
	assert.False(t, IsStateError(err))
	assert.Equal(t, int32(1), calls.Load())
}
