package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sprinklerd/internal/config"
	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/events"
	"github.com/aristath/sprinklerd/internal/hardware/null"
	"github.com/aristath/sprinklerd/internal/model"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, eng.ActivateConfig(&config.Config{
		On:       true,
		Timezone: "UTC",
		Zones:    []model.Zone{{Name: "Front Lawn"}, {Name: "Back Lawn"}},
		Programs: []model.Program{
			{Name: "Morning", Active: true, Start: "06:00", Repeat: model.RepeatNone,
				Zones: []model.ProgramZone{{Zone: 0, Seconds: 30}}},
		},
	}, nil))

	return New(Config{Engine: eng, Bus: events.NewBus(zerolog.Nop()), Log: zerolog.Nop()})
}

func TestServer_GetStatusReturnsOK(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"On\":true")
}

func TestServer_PostOnTogglesMode(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/on", strings.NewReader(`{"on":false}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"Mode\":\"off\"")
}

func TestServer_PostProgramRunUnknownNameReturns400(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/program/does-not-exist/run", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PostProgramRunLocalIndexStartsExecutor(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/program/L0/run", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"Active\":true")
}

func TestServer_PostWeatherTogglesEnabled(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/weather", strings.NewReader(`{"enabled":true}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_PostWateringIndexTogglesEnabled(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/wateringindex", strings.NewReader(`{"enabled":true}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_PostRefreshReturnsStatus(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_PostOffClearsRunningState(t *testing.T) {
	s := testServer(t)
	runReq := httptest.NewRequest(http.MethodPost, "/api/program/L0/run", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), runReq)

	req := httptest.NewRequest(http.MethodPost, "/api/off", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"QueueDepth\":0")
}

func TestServer_PostZoneOnStartsZone(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/zone/1/on", strings.NewReader(`{"seconds":5}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"Zone\":1")
}

func TestServer_ShutdownWithoutStartIsNoop(t *testing.T) {
	s := testServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}
