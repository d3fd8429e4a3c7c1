//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-service/internal/traffic"
	testhelpers "github.com/kjstillabower/forecast-service/internal/testhelpers"
)

func setupIntegrationRouter(t *testing.T) (http.Handler, func()) {
	cfg := testhelpers.GetIntegrationConfig(t)
	logger := zap.NewNop()
	svc, weatherClient, _, cleanup := testhelpers.SetupIntegrationService(t, cfg, logger)

	tr := traffic.NewTracker(clockwork.NewRealClock())
	h := NewHandler(svc, weatherClient, tr, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, logger, 200)
	return NewRouter(h, logger, RouterOptions{RequestTimeout: 10 * time.Second}), cleanup
}

// TestIntegration_APIForecast_CacheRoundTrip verifies a real lookup is served
// from cache the second time.
func TestIntegration_APIForecast_CacheRoundTrip(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	var fromCache []bool
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/forecast?address=London", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i, w.Code, w.Body.String())
		}
		var resp forecastResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.City == "" {
			t.Error("city empty")
		}
		fromCache = append(fromCache, resp.FromCache)
	}
	if fromCache[0] || !fromCache[1] {
		t.Errorf("fromCache = %v, want [false true]", fromCache)
	}
}

func TestIntegration_ForecastPage_UnknownAddress(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/forecast?address=qqqzzzxxyy+nowhere+12345", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	idx := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		idx.AddCookie(c)
	}
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, idx)
	if !strings.Contains(w2.Body.String(), "Could not find location") {
		t.Errorf("index body missing not-found alert")
	}
}

func TestIntegration_Health(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
