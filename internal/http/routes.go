package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-service/internal/observability"
)

// RouterOptions configures the forecast routes. Zero RequestTimeout disables the deadline.
type RouterOptions struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter
	Denials        DenialRecorder
}

// NewRouter mounts the HTML, JSON, health and metrics routes. Forecast routes
// are rate limited and carry the request deadline; /health and /metrics are not.
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)

	forecast := router.NewRoute().Subrouter()
	forecast.Use(RateLimitMiddleware(opts.Limiter, opts.Denials))
	if opts.RequestTimeout > 0 {
		forecast.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	forecast.HandleFunc("/forecast", h.ForecastPage).Methods(http.MethodGet, http.MethodPost)
	forecast.HandleFunc("/api/forecast", h.APIForecast).Methods(http.MethodGet)

	return router
}
