package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

// KeyValidator probes upstream credentials. *client.OpenWeatherClient implements it.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// OutcomeTracker feeds and reads the forecast error rate. *traffic.Tracker implements it.
type OutcomeTracker interface {
	RecordSuccess()
	RecordError()
	ErrorRateExceeds(window time.Duration, pct float64, minRequests int) bool
	DenialCount(window time.Duration) int
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow      time.Duration
	DegradedErrorPct    float64
	DegradedMinRequests int
	// Overloaded when rate-limit denials within OverloadWindow exceed OverloadThreshold.
	OverloadWindow    time.Duration
	OverloadThreshold int
	Version           string
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecaster    Forecaster
	keys          KeyValidator
	traffic       OutcomeTracker
	healthConfig  *HealthConfig
	logger        *zap.Logger
	maxAddressLen int

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. keys, traffic and healthConfig may be nil.
// maxAddressLen of 0 disables the length check.
func NewHandler(
	forecaster Forecaster,
	keys KeyValidator,
	traffic OutcomeTracker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	maxAddressLen int,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		forecaster:    forecaster,
		keys:          keys,
		traffic:       traffic,
		healthConfig:  healthConfig,
		logger:        logger,
		maxAddressLen: maxAddressLen,
	}
}

// SetShuttingDown flips /health to shutting-down. Call when SIGTERM/SIGINT is received.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

// Index handles GET /, showing any pending alert.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page := indexPage{Title: "Weather Forecast", Alert: popFlash(w, r)}
	if err := renderPage(w, http.StatusOK, "index.html", page); err != nil {
		h.requestLogger(r).Error("render index", zap.Error(err))
	}
}

// ForecastPage handles POST /forecast (form) and GET /forecast?address=.
func (h *Handler) ForecastPage(w http.ResponseWriter, r *http.Request) {
	switch res := h.Forecast(r.Context(), r.FormValue("address")).(type) {
	case Redirect:
		setFlash(w, res.Alert)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case Render:
		page := forecastPage{Title: "Weather for " + res.Data.City, Render: res}
		if err := renderPage(w, http.StatusOK, "forecast.html", page); err != nil {
			h.requestLogger(r).Error("render forecast", zap.Error(err))
		}
	}
}

type forecastResponse struct {
	Data      models.WeatherRecord `json:"data"`
	FromCache bool                 `json:"fromCache"`
}

// APIForecast handles GET /api/forecast?address=.
func (h *Handler) APIForecast(w http.ResponseWriter, r *http.Request) {
	switch res := h.Forecast(r.Context(), r.URL.Query().Get("address")).(type) {
	case Redirect:
		if res.Kind == "" {
			writeError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", res.Alert)
			return
		}
		writeError(w, r, http.StatusUnprocessableEntity, strings.ToUpper(string(res.Kind)), res.Alert)
	case Render:
		writeJSON(w, http.StatusOK, forecastResponse{Data: res.Data, FromCache: res.FromCache})
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.reason == "api_key_invalid" || result.reason == "error_rate_breach" {
		checks["weatherApi"] = "unhealthy"
	}
	version := "dev"
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			checks["cache"] = "healthy"
			if h.healthConfig.CachePing() != nil {
				checks["cache"] = "unhealthy"
			}
		}
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "forecast-service",
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > API key invalid > overloaded > error rate breach > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if h.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.keys != nil {
		if err := h.keys.ValidateAPIKey(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
		}
	}
	if cfg := h.healthConfig; cfg != nil && h.traffic != nil && cfg.OverloadWindow > 0 && cfg.OverloadThreshold > 0 {
		if h.traffic.DenialCount(cfg.OverloadWindow) > cfg.OverloadThreshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg := h.healthConfig; cfg != nil && h.traffic != nil && cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		if h.traffic.ErrorRateExceeds(cfg.DegradedWindow, cfg.DegradedErrorPct, cfg.DegradedMinRequests) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	return observability.LoggerFromContext(r.Context(), h.logger)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error in the standard {error:{code,message,requestId}} shape.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}
