// ABOUTME: compare_venues tool: shows two venue options side by side
// ABOUTME: Falls back to curated venues when no external source is configured

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/concierge/internal/widgets"
)

// VenueSource retrieves candidate venues for a location. Returning fewer
// than two venues makes the tool fall back to the curated pair.
type VenueSource interface {
	FindVenues(ctx context.Context, location string) ([]widgets.Venue, error)
}

type compareVenuesArgs struct {
	Location string `json:"location,omitempty" jsonschema:"optional location to search venues in"`
}

// CompareVenues builds the compare_venues tool. Source may be nil, in which
// case only the fallback venues are used.
func CompareVenues(source VenueSource) *Tool {
	return &Tool{
		Name:        "compare_venues",
		Description: "Compare venue options for an event. When a user asks about venue options or wants to see venue comparisons, this tool retrieves two example venues and displays them side-by-side with images, locations, and cost information.",
		Schema:      schemaFor[compareVenuesArgs](),
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[compareVenuesArgs](inv.Arguments)
			if err != nil {
				return nil, err
			}

			pair, err := resolveVenues(ctx, source, args.Location)
			if err != nil {
				return nil, err
			}

			data := widgets.VenueComparison{Venues: pair}
			return &Result{
				Output: map[string]any{
					"venue1":   pair[0].Name,
					"venue2":   pair[1].Name,
					"location": args.Location,
				},
				Widget: &Widget{
					Root:     widgets.VenueComparisonWidget(data),
					CopyText: widgets.VenueComparisonCopyText(data),
				},
			}, nil
		},
	}
}

func resolveVenues(ctx context.Context, source VenueSource, location string) ([2]widgets.Venue, error) {
	if source != nil {
		found, err := source.FindVenues(ctx, location)
		if err == nil && len(found) >= 2 {
			return [2]widgets.Venue{found[0], found[1]}, nil
		}
	}

	fallback := widgets.FallbackVenues()
	if location == "" {
		return fallback, nil
	}

	// Prefer fallback venues matching the requested location, topped up
	// from the full pool when fewer than two match.
	loc := strings.ToLower(location)
	var matched []widgets.Venue
	for _, v := range fallback {
		if strings.Contains(strings.ToLower(v.Location), loc) ||
			strings.Contains(strings.ToLower(v.Name), loc) {
			matched = append(matched, v)
		}
	}
	if len(matched) >= 2 {
		return [2]widgets.Venue{matched[0], matched[1]}, nil
	}
	if len(matched) == 1 {
		for _, v := range fallback {
			if v.ID != matched[0].ID {
				return [2]widgets.Venue{matched[0], v}, nil
			}
		}
	}
	return fallback, nil
}

// GooglePlaces queries the Google Places text search API for event venues.
type GooglePlaces struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewGooglePlaces creates a venue source using the Places API.
func NewGooglePlaces(apiKey string) *GooglePlaces {
	return &GooglePlaces{
		APIKey:  apiKey,
		BaseURL: "https://places.googleapis.com/v1/places:searchText",
		Client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type placesResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
		PriceLevel       string `json:"priceLevel"`
		Photos           []struct {
			URI string `json:"uri"`
		} `json:"photos"`
	} `json:"places"`
}

func (g *GooglePlaces) FindVenues(ctx context.Context, location string) ([]widgets.Venue, error) {
	query := "event venues"
	if location != "" {
		query = "event venues in " + location
	}

	body, err := json.Marshal(map[string]any{
		"textQuery":      query,
		"maxResultCount": 2,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places search returned status %d", resp.StatusCode)
	}

	var data placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding places response: %w", err)
	}

	venues := make([]widgets.Venue, 0, len(data.Places))
	for _, place := range data.Places {
		id := place.ID
		if id == "" {
			id = uuid.New().String()
		}
		var image string
		if len(place.Photos) > 0 {
			image = place.Photos[0].URI
		}
		venues = append(venues, widgets.Venue{
			ID:       id,
			Name:     place.DisplayName.Text,
			Image:    image,
			Alt:      place.DisplayName.Text,
			Location: place.FormattedAddress,
			Cost:     estimateCost(place.PriceLevel),
		})
	}
	return venues, nil
}

func estimateCost(priceLevel string) string {
	switch strings.ToUpper(priceLevel) {
	case "FREE", "INEXPENSIVE":
		return "$"
	case "EXPENSIVE", "VERY_EXPENSIVE":
		return "$$$"
	default:
		return "$$"
	}
}
