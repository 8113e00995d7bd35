// ABOUTME: Weather dashboard widget: current conditions plus a short forecast
// ABOUTME: Includes the plain-text fallback shown by clients without widgets

package widgets

import (
	"fmt"
	"strings"
	"time"
)

// WeatherData holds a resolved weather observation for one location.
type WeatherData struct {
	Location    string
	Temperature float64
	Unit        string // "celsius" or "fahrenheit"
	Condition   string
	ObservedAt  time.Time
	Forecast    []ForecastDay
}

// ForecastDay is one upcoming day in the forecast strip.
type ForecastDay struct {
	Day       string
	High      float64
	Low       float64
	Condition string
}

func unitSymbol(unit string) string {
	if unit == "fahrenheit" {
		return "°F"
	}
	return "°C"
}

func conditionIcon(condition string) string {
	switch {
	case strings.Contains(strings.ToLower(condition), "rain"):
		return "cloud-rain"
	case strings.Contains(strings.ToLower(condition), "snow"):
		return "cloud-snow"
	case strings.Contains(strings.ToLower(condition), "cloud"):
		return "cloud"
	case strings.Contains(strings.ToLower(condition), "storm"),
		strings.Contains(strings.ToLower(condition), "thunder"):
		return "cloud-lightning"
	default:
		return "sun"
	}
}

// WeatherWidget builds the weather dashboard card.
func WeatherWidget(data WeatherData) Card {
	symbol := unitSymbol(data.Unit)

	current := Row{
		Gap:   3,
		Align: "center",
		Children: []Component{
			Icon{Name: conditionIcon(data.Condition), Size: "lg"},
			Col{
				Gap: 1,
				Children: []Component{
					Title{Value: fmt.Sprintf("%.0f%s", data.Temperature, symbol), Size: "lg"},
					Caption{Value: data.Condition},
				},
			},
			Spacer{},
			Badge{Label: data.Location, Color: "info"},
		},
	}

	children := []Component{
		Title{Value: "Weather", Size: "sm"},
		current,
	}

	if len(data.Forecast) > 0 {
		days := make([]Component, 0, len(data.Forecast))
		for _, day := range data.Forecast {
			days = append(days, Col{
				Key:  day.Day,
				Flex: 1,
				Gap:  1,
				Children: []Component{
					Caption{Value: day.Day},
					Icon{Name: conditionIcon(day.Condition), Size: "sm", Color: "secondary"},
					Text{
						Value:  fmt.Sprintf("%.0f%s / %.0f%s", day.High, symbol, day.Low, symbol),
						Size:   "sm",
						Weight: "semibold",
					},
				},
			})
		}
		children = append(children, Row{Gap: 2, Align: "stretch", Children: days})
	}

	return Card{
		Key:  "weather-dashboard",
		Size: "md",
		Children: []Component{
			Col{Gap: 3, Children: children},
		},
	}
}

// WeatherCopyText renders the widget's plain-text fallback.
func WeatherCopyText(data WeatherData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s: %.0f%s, %s.",
		data.Location, data.Temperature, unitSymbol(data.Unit), strings.ToLower(data.Condition))
	for _, day := range data.Forecast {
		fmt.Fprintf(&b, " %s: high %.0f, low %.0f, %s.",
			day.Day, day.High, day.Low, strings.ToLower(day.Condition))
	}
	return b.String()
}
