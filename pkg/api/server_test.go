package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinthq/sleuth/pkg/config"
	"github.com/osinthq/sleuth/pkg/engine"
	"github.com/osinthq/sleuth/pkg/integration"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Initialize("")
	require.NoError(t, err)

	run := models.NewRun("test question", t.TempDir(), time.Now().UTC())
	eng := engine.New(engine.Deps{
		Config:   cfg,
		Run:      run,
		LLM:      nil,
		Registry: integration.NewRegistry(nil, nil),
		Store:    store.New(),
		Budget:   engine.NewBudget(time.Now(), time.Hour, time.Minute),
	})
	return NewServer(eng, 0)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestRunStatus(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test question", status.Question)
	assert.Equal(t, engine.StateInitializing, status.State)
	assert.Zero(t, status.TasksCreated)
}
