package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(context.Context) error { return errors.New("dial tcp: connection refused") }

func ready(t *testing.T, c *Checker) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	return rec.Code, report
}

func TestReadyWhenAllUp(t *testing.T) {
	c := NewChecker()
	c.Register("snapshot", Ping(up, true))
	code, report := ready(t, c)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, report.Status)
	assert.Equal(t, StatusUp, report.Components["snapshot"].Status)
}

func TestOptionalFailureDegrades(t *testing.T) {
	c := NewChecker()
	c.Register("snapshot", Ping(up, true))
	c.Register("redis", Ping(down, false))
	code, report := ready(t, c)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Components["redis"].Message, "connection refused")
}

func TestRequiredFailureNotReady(t *testing.T) {
	c := NewChecker()
	c.Register("snapshot", Ping(down, true))
	c.Register("redis", Ping(down, false))
	code, report := ready(t, c)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDown, report.Status)
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
