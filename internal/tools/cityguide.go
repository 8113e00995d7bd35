// ABOUTME: city_guide tool: answers questions about a city via a Completer
// ABOUTME: Continue tool; the answer feeds the model's reply to the user

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/speech"
)

type cityGuideArgs struct {
	City     string `json:"city" jsonschema:"the city the question is about"`
	Question string `json:"question" jsonschema:"the question to answer about the city"`
}

// CityGuide builds the city_guide tool on a secondary completion model.
// DefaultCity, when set, answers questions that name no city.
func CityGuide(completer engine.Completer, announcer speech.Announcer, defaultCity string) *Tool {
	return &Tool{
		Name:        "city_guide",
		Description: "Get information about a city, including its history, culture, landmarks, food, or any other topics related to the city.",
		Schema:      schemaFor[cityGuideArgs](),
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[cityGuideArgs](inv.Arguments)
			if err != nil {
				return nil, err
			}
			city := strings.TrimSpace(args.City)
			if city == "" {
				city = defaultCity
			}
			if city == "" {
				return nil, fmt.Errorf("city is required")
			}
			if args.Question == "" {
				return nil, fmt.Errorf("question is required")
			}

			if announcer != nil {
				_ = announcer.Announce(ctx, fmt.Sprintf("Ok, I am checking my %s facts knowledge", city))
			}

			system := fmt.Sprintf("You are a knowledgeable city guide. Answer questions about %s concisely and accurately.", city)
			prompt := fmt.Sprintf("Answer the following question about %s: %s", city, args.Question)

			answer, err := completer.Complete(ctx, system, prompt)
			if err != nil {
				return nil, fmt.Errorf("city guide lookup: %w", err)
			}
			if strings.TrimSpace(answer) == "" {
				return nil, fmt.Errorf("no answer received")
			}

			return &Result{
				Output: map[string]string{"city": city, "answer": answer},
			}, nil
		},
	}
}
