package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, endpoint http.HandlerFunc) (int, statusResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	endpoint(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveEndpointHealthyByDefault(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, func(context.Context) error { return nil })

	code, resp := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReadyEndpointRequiresManualGate(t *testing.T) {
	h := New()

	code, resp := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckUnhealthyAfterConsecutiveFailures(t *testing.T) {
	c := newCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	ctx := context.Background()
	c.run(ctx)
	c.run(ctx)
	_, failed := c.failure()
	require.False(t, failed, "two failures should not trip the threshold")

	c.run(ctx)
	msg, failed := c.failure()
	assert.True(t, failed)
	assert.Equal(t, "connection refused", msg)
}

func TestCheckRecoversAfterSuccess(t *testing.T) {
	healthy := false
	c := newCheck("db", time.Second, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	ctx := context.Background()
	for i := 0; i < failureThreshold; i++ {
		c.run(ctx)
	}
	_, failed := c.failure()
	require.True(t, failed)

	healthy = true
	c.run(ctx)
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestIsReadyReflectsFailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("down")
	})
	require.True(t, h.IsReady(), "check has not run yet")

	h.mu.RLock()
	c := h.readiness[0]
	h.mu.RUnlock()
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}

	assert.False(t, h.IsReady())
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
