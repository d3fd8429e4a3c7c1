package http

import (
	"context"
	"errors"

	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/validation"
)

// View names.
const (
	ViewIndex    = "index"
	ViewForecast = "forecast"
)

// ViewResult is the outcome of a forecast request: Render or Redirect.
type ViewResult interface {
	viewResult()
}

// Render shows a view with a forecast.
type Render struct {
	View      string
	Address   string
	Data      models.WeatherRecord
	FromCache bool
}

// Redirect sends the user to another view with a one-shot alert. Kind is empty
// for input validation failures.
type Redirect struct {
	To    string
	Alert string
	Kind  models.ErrorKind
}

func (Render) viewResult()   {}
func (Redirect) viewResult() {}

// Forecaster is implemented by *service.ForecastService.
type Forecaster interface {
	GetForecast(ctx context.Context, address string) (models.WeatherRecord, bool, error)
}

// Forecast validates address and looks it up. A blank address redirects to the
// index without touching the cache or upstream.
func (h *Handler) Forecast(ctx context.Context, address string) ViewResult {
	if _, err := validation.ValidateAddress(address, h.maxAddressLen); err != nil {
		return Redirect{To: ViewIndex, Alert: validation.Message(err)}
	}

	rec, fromCache, err := h.forecaster.GetForecast(ctx, address)
	if err != nil {
		var res *models.ErrorResult
		if !errors.As(err, &res) {
			res = models.NewErrorResult(models.ErrorKindUpstreamFailure, address, err)
		}
		h.recordOutcome(res.Kind)
		return Redirect{To: ViewIndex, Alert: res.Message, Kind: res.Kind}
	}
	h.recordOutcome("")
	return Render{View: ViewForecast, Address: address, Data: rec, FromCache: fromCache}
}

// recordOutcome feeds the degraded-health error rate. Unknown addresses are the
// caller's fault and count as successes.
func (h *Handler) recordOutcome(kind models.ErrorKind) {
	if h.traffic == nil {
		return
	}
	switch kind {
	case models.ErrorKindUnauthorized, models.ErrorKindUpstreamFailure, models.ErrorKindProcessingFailure:
		h.traffic.RecordError()
	default:
		h.traffic.RecordSuccess()
	}
}
