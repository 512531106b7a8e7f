package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testCfg := &config.Config{JWTSecret: "routes-secret"}
	backend, err := openBackend(testCfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(backend.Close)

	hub := tv.NewHub(zerolog.Nop())
	t.Cleanup(hub.Close)
	repo := schedule.NewRepository(backend.Store, ordering.NewManager(), zerolog.Nop())
	svc := schedule.NewService(repo, backend.Assets, nil, hub, schedule.Options{Location: time.UTC}, zerolog.Nop())

	r := gin.New()
	require.NoError(t, RegisterRoutes(r, testCfg, svc, hub, zerolog.Nop()))
	return r
}

func TestRoutes(t *testing.T) {
	r := newTestEngine(t)
	token, err := middleware.GenerateJWT(1, "", "routes-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		status int
	}{
		{"health", http.MethodGet, "/healthz", false, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", false, http.StatusOK},
		{"admin needs token", http.MethodGet, "/api/v2/schedule/slots", false, http.StatusUnauthorized},
		{"admin with token", http.MethodGet, "/api/v2/schedule/slots", true, http.StatusOK},
		{"admin status", http.MethodGet, "/api/v2/schedule/status", true, http.StatusOK},
		{"player status is public", http.MethodGet, "/api/tv/schedule/status", false, http.StatusOK},
		{"unknown", http.MethodGet, "/api/admin/screens", true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCORSExposesETag(t *testing.T) {
	r := newTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tv/schedule/status", nil)
	req.Header.Set("Origin", "http://player.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "If-None-Match")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://player.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/tv/schedule/status", nil)
	req.Header.Set("Origin", "http://player.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Expose-Headers")), "etag")
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	next := now.Add(5 * time.Hour)
	var buf bytes.Buffer
	printStatus(&buf, packets.StatusResponse{
		ScheduleEnabled: true,
		CurrentSlot:     &packets.SlotResponse{Name: "Fallback", SlotType: model.SlotTypeDefault},
		NextChangeAt:    &next,
		UsingDefault:    true,
		TotalSlots:      2,
	}, now)

	out := buf.String()
	assert.Contains(t, out, "Fallback (default, 0 items) [fallback]")
	assert.Contains(t, out, "in 5h0m0s")
	assert.Contains(t, out, "slots:")

	buf.Reset()
	printStatus(&buf, packets.StatusResponse{}, now)
	assert.Contains(t, buf.String(), "disabled")
}

func TestLoadAssets(t *testing.T) {
	assets, err := loadAssets("")
	require.NoError(t, err)
	assert.Empty(t, assets)

	_, err = loadAssets("does-not-exist.json")
	assert.Error(t, err)
}
