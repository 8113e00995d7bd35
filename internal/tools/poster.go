// ABOUTME: generate_poster tool: renders an event poster via image generation
// ABOUTME: Continue tool; streams the poster widget once the image is ready

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/concierge/internal/speech"
	"github.com/2389/concierge/internal/widgets"
)

// PosterGenerator turns a text prompt into a hosted image URL.
type PosterGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// PosterDetails are the event fields a poster is rendered from. They double
// as the generate_poster tool's arguments and as the input of the summarize
// pipeline's poster step.
type PosterDetails struct {
	EventName       string   `json:"event_name" jsonschema:"name of the event"`
	Tagline         string   `json:"tagline,omitempty" jsonschema:"event tagline"`
	Location        string   `json:"location,omitempty" jsonschema:"venue or city"`
	Date            string   `json:"date,omitempty" jsonschema:"event date"`
	Focus           string   `json:"focus,omitempty" jsonschema:"event focus areas"`
	OrganizerHandle string   `json:"organizer_handle,omitempty" jsonschema:"organizer name or social handle"`
	Sponsors        []string `json:"sponsors,omitempty" jsonschema:"sponsor names"`
}

// PosterPrompt builds the structured poster description handed to the image
// model as plain text.
func PosterPrompt(args PosterDetails) string {
	description := map[string]any{
		"title": args.EventName,
		"overall_style": map[string]any{
			"vibe":          "futuristic, clean, high-contrast, tech event poster",
			"color_palette": []string{"#000000", "#0b1020", "#5b5bff", "#a855f7", "#ffffff"},
			"mood_keywords": []string{"innovative", "energetic", "night-city", "AI-powered", "professional but playful"},
		},
		"composition": map[string]any{
			"background": fmt.Sprintf(
				"Dark night-sky gradient with subtle digital dots, abstract city skyline silhouette in the lower third, faint outline of an iconic landmark of %s center-right, soft glow behind it.",
				args.Location),
			"main_heading": map[string]any{
				"text":  args.EventName,
				"style": "big bold geometric sans-serif, white with a purple glow accent",
			},
			"tagline": map[string]any{
				"text":  args.Tagline,
				"style": "monospace or light sans-serif, medium, light gray",
			},
			"details": map[string]any{
				"location":  args.Location,
				"date":      args.Date,
				"focus":     args.Focus,
				"organizer": args.OrganizerHandle,
				"sponsors":  args.Sponsors,
			},
		},
	}

	encoded, _ := json.MarshalIndent(description, "", "  ")
	return "Design a marketing poster based on this JSON description:\n\n" + string(encoded)
}

// GeneratePoster builds the generate_poster tool around an image generator.
func GeneratePoster(generator PosterGenerator, announcer speech.Announcer) *Tool {
	return &Tool{
		Name:        "generate_poster",
		Description: "Generate an event poster image from event details like name, tagline, location, and date, and display it in the conversation.",
		Schema:      schemaFor[PosterDetails](),
		Timeout:     2 * time.Minute,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[PosterDetails](inv.Arguments)
			if err != nil {
				return nil, err
			}
			if args.EventName == "" {
				return nil, fmt.Errorf("event_name is required")
			}

			imageURL, err := generator.GenerateImage(ctx, PosterPrompt(args))
			if err != nil {
				return nil, fmt.Errorf("generating poster: %w", err)
			}

			if announcer != nil {
				_ = announcer.Announce(ctx, fmt.Sprintf("Successfully generated poster for '%s'", args.EventName))
			}

			data := widgets.PosterData{
				EventName: args.EventName,
				Tagline:   args.Tagline,
				Location:  args.Location,
				Date:      args.Date,
				ImageURL:  imageURL,
			}
			return &Result{
				Output: map[string]string{
					"event_name": args.EventName,
					"image_url":  imageURL,
					"message":    fmt.Sprintf("Successfully generated poster for '%s'", args.EventName),
				},
				Widget: &Widget{
					Root:     widgets.PosterWidget(data),
					CopyText: widgets.PosterCopyText(data),
				},
			}, nil
		},
	}
}

// FalClient generates images through the fal.ai synchronous HTTP API.
type FalClient struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// NewFalClient creates a generator for the given fal.ai model.
func NewFalClient(apiKey, model string) *FalClient {
	if model == "" {
		model = "fal-ai/nano-banana"
	}
	return &FalClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://fal.run",
		Client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type falResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func (f *FalClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.BaseURL+"/"+f.Model, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+f.APIKey)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image request returned status %d", resp.StatusCode)
	}

	var result falResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding image response: %w", err)
	}
	if len(result.Images) == 0 {
		return "", fmt.Errorf("no image in response")
	}
	return result.Images[0].URL, nil
}
