// Package forecast turns raw OpenWeatherMap payloads into a WeatherRecord.
package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/forecast-service/internal/client"
	"github.com/kjstillabower/forecast-service/internal/models"
)

var ErrProcessing = errors.New("error processing weather data")

const (
	noDescription = "No description available"
	noTime        = "N/A"
	clockLayout   = "15:04"
)

// currentResponse mirrors the fields read from /weather. All are optional.
type currentResponse struct {
	Name *string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *float64 `json:"humidity"`
		Pressure  *float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Sys *struct {
		Country *string `json:"country"`
		Sunrise *int64  `json:"sunrise"`
		Sunset  *int64  `json:"sunset"`
	} `json:"sys"`
}

type forecastResponse struct {
	List *[]forecastEntry `json:"list"`
}

type forecastEntry struct {
	Dt   *int64 `json:"dt"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Normalizer derives the display record. The clock and location decide which
// forecast entries count as "today" and how sunrise/sunset are rendered.
type Normalizer struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewNormalizer returns a Normalizer. A nil clock uses the real clock and a nil
// loc uses time.Local.
func NewNormalizer(clock clockwork.Clock, loc *time.Location) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{clock: clock, loc: loc}
}

// Normalize decodes both payloads and builds the record. address is used as the
// city when the provider omits a name. Malformed input returns ErrProcessing.
func (n *Normalizer) Normalize(p client.Payloads, address string) (models.WeatherRecord, error) {
	var cur currentResponse
	if err := json.Unmarshal(p.Current, &cur); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: decode current weather: %v", ErrProcessing, err)
	}
	var fc forecastResponse
	if err := json.Unmarshal(p.Forecast, &fc); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: decode forecast: %v", ErrProcessing, err)
	}

	lo, hi, found, err := n.todaysRange(fc)
	if err != nil {
		return models.WeatherRecord{}, err
	}

	rec := models.WeatherRecord{
		Description: noDescription,
		City:        address,
		Sunrise:     noTime,
		Sunset:      noTime,
	}

	var curMin, curMax *float64
	if m := cur.Main; m != nil {
		rec.Temperature = deref(m.Temp, 0)
		rec.FeelsLike = deref(m.FeelsLike, rec.Temperature)
		rec.Humidity = deref(m.Humidity, 0)
		rec.Pressure = deref(m.Pressure, 0)
		curMin, curMax = m.TempMin, m.TempMax
	}
	rec.TempMin = deref(curMin, rec.Temperature)
	rec.TempMax = deref(curMax, rec.Temperature)
	if found {
		rec.TempMin, rec.TempMax = lo, hi
	}

	if cur.Wind != nil {
		rec.WindSpeed = deref(cur.Wind.Speed, 0)
	}
	if len(cur.Weather) > 0 && cur.Weather[0].Description != nil {
		rec.Description = *cur.Weather[0].Description
	}
	if cur.Name != nil {
		rec.City = *cur.Name
	}
	if s := cur.Sys; s != nil {
		if s.Country != nil {
			rec.Country = *s.Country
		}
		rec.Sunrise = n.clockTime(s.Sunrise)
		rec.Sunset = n.clockTime(s.Sunset)
	}
	return rec, nil
}

// todaysRange returns min and max main.temp over forecast entries dated today.
// found is false when no entry falls on today.
func (n *Normalizer) todaysRange(fc forecastResponse) (lo, hi float64, found bool, err error) {
	if fc.List == nil {
		return 0, 0, false, fmt.Errorf("%w: forecast has no list", ErrProcessing)
	}
	y, m, d := n.clock.Now().In(n.loc).Date()

	lo, hi = math.Inf(1), math.Inf(-1)
	for i, e := range *fc.List {
		if e.Dt == nil {
			return 0, 0, false, fmt.Errorf("%w: forecast entry %d has no dt", ErrProcessing, i)
		}
		ey, em, ed := time.Unix(*e.Dt, 0).In(n.loc).Date()
		if ey != y || em != m || ed != d {
			continue
		}
		if e.Main == nil || e.Main.Temp == nil {
			return 0, 0, false, fmt.Errorf("%w: forecast entry %d has no temperature", ErrProcessing, i)
		}
		t := *e.Main.Temp
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
		found = true
	}
	if !found {
		return 0, 0, false, nil
	}
	return lo, hi, true, nil
}

func (n *Normalizer) clockTime(epoch *int64) string {
	if epoch == nil {
		return noTime
	}
	return time.Unix(*epoch, 0).In(n.loc).Format(clockLayout)
}

func deref(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
