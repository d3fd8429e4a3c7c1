package models

// Coordinate is a resolved geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherRecord is the normalized view of current conditions plus today's range.
// Sunrise and Sunset are HH:MM in the display timezone, or "N/A".
type WeatherRecord struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
}
