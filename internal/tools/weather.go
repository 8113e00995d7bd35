// ABOUTME: get_weather tool: fetches conditions and streams a dashboard widget
// ABOUTME: Continue tool; generation resumes so the model can summarize it

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/concierge/internal/widgets"
)

// WeatherProvider resolves current conditions and a short forecast for a
// location. Unit is "celsius" or "fahrenheit".
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, location, unit string) (*widgets.WeatherData, error)
}

type getWeatherArgs struct {
	Location string `json:"location" jsonschema:"the city or place to look up"`
	Unit     string `json:"unit,omitempty" jsonschema:"temperature unit, celsius or fahrenheit"`
}

// NormalizeUnit maps a requested temperature unit to its canonical form.
// Empty input defaults to celsius.
func NormalizeUnit(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "c", "celsius", "metric":
		return "celsius", nil
	case "f", "fahrenheit", "imperial":
		return "fahrenheit", nil
	default:
		return "", fmt.Errorf("unit must be celsius or fahrenheit")
	}
}

// GetWeather builds the get_weather tool around the given provider.
func GetWeather(provider WeatherProvider) *Tool {
	return &Tool{
		Name:        "get_weather",
		Description: "Look up the current weather and upcoming forecast for a location and render an interactive weather dashboard.",
		Schema:      schemaFor[getWeatherArgs](),
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[getWeatherArgs](inv.Arguments)
			if err != nil {
				return nil, err
			}
			if args.Location == "" {
				return nil, fmt.Errorf("location is required")
			}
			unit, err := NormalizeUnit(args.Unit)
			if err != nil {
				return nil, err
			}

			data, err := provider.CurrentWeather(ctx, args.Location, unit)
			if err != nil {
				return nil, fmt.Errorf("weather lookup for %q: %w", args.Location, err)
			}

			return &Result{
				Output: map[string]any{
					"location":    data.Location,
					"unit":        unit,
					"observed_at": data.ObservedAt.Format(time.RFC3339),
				},
				Widget: &Widget{
					Root:     widgets.WeatherWidget(*data),
					CopyText: widgets.WeatherCopyText(*data),
				},
			}, nil
		},
	}
}

// OpenMeteo is a WeatherProvider backed by the Open-Meteo public API. It
// geocodes the location first, then fetches current conditions plus a
// three-day forecast. No API key required.
type OpenMeteo struct {
	GeocodeURL  string
	ForecastURL string
	Client      *http.Client
}

// NewOpenMeteo creates a provider against the public Open-Meteo endpoints.
func NewOpenMeteo() *OpenMeteo {
	return &OpenMeteo{
		GeocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
		ForecastURL: "https://api.open-meteo.com/v1/forecast",
		Client:      &http.Client{Timeout: 20 * time.Second},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

func (w *OpenMeteo) CurrentWeather(ctx context.Context, location, unit string) (*widgets.WeatherData, error) {
	place, err := w.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", place.lat))
	params.Set("longitude", fmt.Sprintf("%.4f", place.lon))
	params.Set("current", "temperature_2m,weather_code")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
	params.Set("forecast_days", "4")
	params.Set("timezone", "auto")
	params.Set("temperature_unit", unit)

	var forecast forecastResponse
	if err := w.getJSON(ctx, w.ForecastURL+"?"+params.Encode(), &forecast); err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	observedAt, _ := time.Parse("2006-01-02T15:04", forecast.Current.Time)

	data := &widgets.WeatherData{
		Location:    place.name,
		Temperature: forecast.Current.Temperature2m,
		Unit:        unit,
		Condition:   weatherCondition(forecast.Current.WeatherCode),
		ObservedAt:  observedAt,
	}

	// Skip today; day names come from the daily time axis.
	for i := 1; i < len(forecast.Daily.Time) && i < 4; i++ {
		day, err := time.Parse("2006-01-02", forecast.Daily.Time[i])
		if err != nil {
			continue
		}
		data.Forecast = append(data.Forecast, widgets.ForecastDay{
			Day:       day.Format("Mon"),
			High:      forecast.Daily.Temperature2mMax[i],
			Low:       forecast.Daily.Temperature2mMin[i],
			Condition: weatherCondition(forecast.Daily.WeatherCode[i]),
		})
	}

	return data, nil
}

type geocodedPlace struct {
	name string
	lat  float64
	lon  float64
}

func (w *OpenMeteo) geocode(ctx context.Context, location string) (*geocodedPlace, error) {
	params := url.Values{}
	params.Set("name", location)
	params.Set("count", "1")

	var geo geocodeResponse
	if err := w.getJSON(ctx, w.GeocodeURL+"?"+params.Encode(), &geo); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", location, err)
	}
	if len(geo.Results) == 0 {
		return nil, fmt.Errorf("no location found for %q", location)
	}

	r := geo.Results[0]
	name := r.Name
	if r.Country != "" {
		name = r.Name + ", " + r.Country
	}
	return &geocodedPlace{name: name, lat: r.Latitude, lon: r.Longitude}, nil
}

func (w *OpenMeteo) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// weatherCondition maps WMO weather codes to a short description.
func weatherCondition(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code >= 45 && code <= 48:
		return "Foggy"
	case code >= 51 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code >= 85 && code <= 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
