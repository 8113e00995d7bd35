// ABOUTME: Event-details summarization pipeline: summary, extraction, rules, poster
// ABOUTME: Only the summary is required; every later step degrades gracefully

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/tools"
)

const (
	defaultOrganizerHandle = "@EventOrganizers"

	// Model replies shorter than these are treated as failures rather than
	// passed on to the client.
	minSummaryLen = 10
	minRulesLen   = 50

	assistantSystem = "You are an event planning assistant."
)

// EventDetails are the structured fields extracted from event markdown.
// Missing fields stay empty; OrganizerHandle always has a value.
type EventDetails struct {
	EventName       string   `json:"event_name"`
	Tagline         string   `json:"tagline"`
	Location        string   `json:"location"`
	Date            string   `json:"date"`
	Focus           string   `json:"focus"`
	OrganizerHandle string   `json:"organizer_handle"`
	Sponsors        []string `json:"sponsors"`
}

// Result is the outcome of one summarization run. Summary is always set;
// the other fields are filled when their step succeeded.
type Result struct {
	Summary        string `json:"summary"`
	PosterURL      string `json:"poster_url,omitempty"`
	EventName      string `json:"event_name,omitempty"`
	HackathonRules string `json:"hackathon_rules,omitempty"`
}

// Service turns event-details markdown into a summary, hackathon rules, and
// a promotional poster. A nil poster generator skips the poster step.
type Service struct {
	completer engine.Completer
	poster    tools.PosterGenerator
	logger    *slog.Logger
}

// NewService wires a summarization service around a completer.
func NewService(completer engine.Completer, poster tools.PosterGenerator) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return &Service{
		completer: completer,
		poster:    poster,
		logger:    slog.Default().With("component", "summarize"),
	}, nil
}

// Run chains the pipeline. The summary is mandatory; rules and poster are
// best-effort and their failure never fails the run.
func (s *Service) Run(ctx context.Context, markdown string) (*Result, error) {
	summary, err := s.Summarize(ctx, markdown)
	if err != nil {
		return nil, err
	}
	result := &Result{Summary: summary}

	rules, err := s.HackathonRules(ctx, markdown)
	if err != nil {
		s.logger.Warn("rules generation failed", "error", err)
	} else {
		result.HackathonRules = rules
	}

	if s.poster == nil {
		return result, nil
	}

	details := s.ExtractDetails(ctx, markdown)
	poster := posterDetails(details)
	result.EventName = poster.EventName

	url, err := s.poster.GenerateImage(ctx, tools.PosterPrompt(poster))
	if err != nil {
		s.logger.Warn("poster generation failed", "error", err)
		return result, nil
	}
	result.PosterURL = url
	s.logger.Info("summarization run complete",
		"event_name", result.EventName,
		"has_rules", result.HackathonRules != "")
	return result, nil
}

// Summarize produces a prose summary of the event markdown.
func (s *Service) Summarize(ctx context.Context, markdown string) (string, error) {
	prompt := "Summarize the following event details in a clear, concise format. " +
		"Focus on the key information: event type, location, size, budget, marketing plans, " +
		"and any other important details. Make the summary professional and easy to read.\n\n" +
		"Event Details:\n" + markdown

	out, err := s.completer.Complete(ctx, assistantSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("summarizing event details: %w", err)
	}
	out = strings.TrimSpace(out)
	if len(out) < minSummaryLen {
		return "", fmt.Errorf("summary response too short: %q", out)
	}
	return out, nil
}

// jsonObjectRe grabs the outermost JSON object in a model reply, tolerating
// code fences and surrounding prose.
var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractDetails pulls structured event fields out of the markdown. It never
// fails: anything unparseable degrades to defaults.
func (s *Service) ExtractDetails(ctx context.Context, markdown string) *EventDetails {
	defaults := &EventDetails{OrganizerHandle: defaultOrganizerHandle}

	out, err := s.completer.Complete(ctx, assistantSystem, extractPrompt(markdown))
	if err != nil {
		s.logger.Warn("detail extraction failed", "error", err)
		return defaults
	}

	raw := jsonObjectRe.FindString(out)
	if raw == "" {
		s.logger.Warn("no JSON object in extraction response")
		return defaults
	}

	var parsed EventDetails
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil || json.Unmarshal([]byte(fixed), &parsed) != nil {
			s.logger.Warn("unparseable extraction response", "error", err)
			return defaults
		}
	}
	if parsed.OrganizerHandle == "" {
		parsed.OrganizerHandle = defaultOrganizerHandle
	}
	return &parsed
}

// HackathonRules generates Notion-style markdown rules for the event.
func (s *Service) HackathonRules(ctx context.Context, markdown string) (string, error) {
	prompt := `Create comprehensive hackathon rules in Notion-style markdown format based on the following event details.

The output should be well-structured Notion-style markdown with:
- Headings using #, ##, ###
- Bullet points and numbered lists
- Bold text for important terms
- Clear sections for different rule categories

Include sections for:
1. Event Overview
2. Eligibility & Participation Rules
3. Submission Guidelines
4. Judging Criteria
5. Code of Conduct
6. Prizes & Rewards (if applicable)
7. Timeline & Important Dates
8. Team Formation Rules (if applicable)
9. Intellectual Property & Ownership
10. Contact & Support

Make the rules professional, clear, and comprehensive. Base them on the event details provided, but make them general enough for a hackathon if specific details are missing.

Event Details:
` + markdown + `

Return ONLY the Notion-style markdown content, no additional explanation or wrapper text.`

	out, err := s.completer.Complete(ctx, assistantSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("generating hackathon rules: %w", err)
	}
	out = strings.TrimSpace(out)
	if len(out) < minRulesLen {
		return "", fmt.Errorf("rules response too short: %q", out)
	}
	return out, nil
}

func extractPrompt(markdown string) string {
	return `Extract structured event details from the following event information.
Return ONLY a valid JSON object with the following structure:
{
    "event_name": "The name of the event (or null if not specified)",
    "tagline": "A catchy tagline or slogan for the event (or null if not specified)",
    "location": "The venue or location (or null if not specified)",
    "date": "The event date in a readable format (or null if not specified)",
    "focus": "The focus areas or topics (or null if not specified)",
    "organizer_handle": "Organizer name or social media handle. Default to '@EventOrganizers' if not found.",
    "sponsors": ["List of sponsor names if any", "or empty list if none"]
}

Important rules:
- If a field is not specified in the input, use null (for strings) or an empty list (for sponsors)
- For event_name, extract the main event name or create a descriptive one based on the event type
- For tagline, create a catchy one if not provided, based on the event type and location
- For organizer_handle, default to "@EventOrganizers" if not found
- Return ONLY the JSON object, no other text

Event Details:
` + markdown
}

// posterDetails fills the fallbacks a poster needs when extraction came back
// incomplete.
func posterDetails(d *EventDetails) tools.PosterDetails {
	name := d.EventName
	if name == "" {
		name = "Upcoming Event"
	}
	tagline := d.Tagline
	if tagline == "" {
		tagline = "Join us for " + name
	}
	location := d.Location
	if location == "" {
		location = "TBA"
	}
	date := d.Date
	if date == "" {
		date = "Coming Soon"
	}
	focus := d.Focus
	if focus == "" {
		focus = "Innovation & Technology"
	}
	handle := d.OrganizerHandle
	if handle == "" {
		handle = defaultOrganizerHandle
	}
	return tools.PosterDetails{
		EventName:       name,
		Tagline:         tagline,
		Location:        location,
		Date:            date,
		Focus:           focus,
		OrganizerHandle: handle,
		Sponsors:        d.Sponsors,
	}
}
