package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady() (string, string) {
	return c.status, c.message
}

type staticDeps map[string]bool

func (d staticDeps) Health() map[string]bool {
	return d
}

func readiness(t *testing.T, h *HealthHandler) (int, healthReadyResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp healthReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthReady(t *testing.T) {
	ok := staticChecker{status: "ok"}

	code, resp := readiness(t, NewHealthHandler(ok, ok))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Checks.Dependencies)

	code, resp = readiness(t, NewHealthHandler(staticChecker{status: "fail", message: "нет связи"}, ok))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "нет связи", resp.Checks.PostgreSQL.Message)
}

func TestHealthReady_Dependencies(t *testing.T) {
	ok := staticChecker{status: "ok"}

	h := NewHealthHandler(ok, ok).WithDependencies(staticDeps{"postgresql:db:5432": true})
	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Checks.Dependencies)
	assert.Equal(t, "ok", resp.Checks.Dependencies.Status)

	h = NewHealthHandler(ok, ok).WithDependencies(staticDeps{
		"postgresql:db:5432":  false,
		"postgresql:db2:5432": true,
	})
	code, resp = readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", resp.Status)
	require.NotNil(t, resp.Checks.Dependencies)
	assert.Equal(t, "degraded", resp.Checks.Dependencies.Status)
	assert.Contains(t, resp.Checks.Dependencies.Message, "postgresql:db:5432")
	assert.NotContains(t, resp.Checks.Dependencies.Message, "db2")
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, "ok", overallStatus("ok", "ok"))
	assert.Equal(t, "degraded", overallStatus("ok", "degraded"))
	assert.Equal(t, "fail", overallStatus("degraded", "fail"))
}
