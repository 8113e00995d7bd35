// ABOUTME: Tests for the summarization pipeline against scripted completions
// ABOUTME: Covers the required summary, best-effort steps, and JSON recovery

package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedCompleter replies in call order: summarize, rules, extraction.
type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	var reply string
	if i < len(c.replies) {
		reply = c.replies[i]
	}
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return reply, err
}

type fakeGenerator struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.url, f.err
}

const (
	goodSummary = "A 200-person AI hackathon at Station F in Paris this November."
	goodRules   = "# Hackathon Rules\n\n## Event Overview\nTeams of up to four build AI agents over one weekend at Station F."
)

func TestNewService_RequiresCompleter(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Error("expected error for nil completer")
	}
}

func TestRun_FullPipeline(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		goodSummary,
		goodRules,
		"```json\n{\"event_name\":\"Paris AI Hackathon\",\"tagline\":\"Build the future\",\"location\":\"Station F, Paris\",\"date\":\"15 November 2025\",\"focus\":\"AI, Agents & Automation\",\"organizer_handle\":\"@parisai\",\"sponsors\":[\"Acme\"]}\n```",
	}}
	generator := &fakeGenerator{url: "https://img.example/poster.png"}

	svc, err := NewService(completer, generator)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	result, err := svc.Run(context.Background(), "# My Event\nHackathon in Paris")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Summary != goodSummary {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.HackathonRules != goodRules {
		t.Errorf("rules = %q", result.HackathonRules)
	}
	if result.EventName != "Paris AI Hackathon" {
		t.Errorf("event name = %q", result.EventName)
	}
	if result.PosterURL != "https://img.example/poster.png" {
		t.Errorf("poster url = %q", result.PosterURL)
	}

	if len(generator.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(generator.prompts))
	}
	if !strings.Contains(generator.prompts[0], "Paris AI Hackathon") {
		t.Errorf("poster prompt missing event name: %q", generator.prompts[0])
	}
}

func TestRun_SummaryFailureFailsTheRun(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("model unavailable")}}
	svc, err := NewService(completer, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if _, err := svc.Run(context.Background(), "# Event"); err == nil {
		t.Error("expected error when summarization fails")
	}
}

func TestRun_LaterStepsAreBestEffort(t *testing.T) {
	// Rules come back too short, extraction is garbage, the poster errors.
	completer := &scriptedCompleter{replies: []string{
		goodSummary,
		"no",
		"I could not find any event details.",
	}}
	generator := &fakeGenerator{err: errors.New("image service down")}

	svc, err := NewService(completer, generator)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	result, err := svc.Run(context.Background(), "# Event")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Summary != goodSummary {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.HackathonRules != "" {
		t.Errorf("rules should be empty, got %q", result.HackathonRules)
	}
	if result.PosterURL != "" {
		t.Errorf("poster url should be empty, got %q", result.PosterURL)
	}
	// Poster fallbacks still produced a name for the attempt.
	if result.EventName != "Upcoming Event" {
		t.Errorf("event name = %q", result.EventName)
	}
}

func TestRun_WithoutGeneratorSkipsExtraction(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{goodSummary, goodRules}}
	svc, err := NewService(completer, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	result, err := svc.Run(context.Background(), "# Event")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.PosterURL != "" || result.EventName != "" {
		t.Errorf("unexpected poster fields: %+v", result)
	}
	if completer.calls != 2 {
		t.Errorf("completer called %d times, want 2", completer.calls)
	}
}

func TestExtractDetails_RepairsMalformedJSON(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"event_name":"Demo Night","location":"Lyon","sponsors":["Acme",],}`,
	}}
	svc, err := NewService(completer, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	details := svc.ExtractDetails(context.Background(), "# Event")
	if details.EventName != "Demo Night" {
		t.Errorf("event name = %q", details.EventName)
	}
	if details.Location != "Lyon" {
		t.Errorf("location = %q", details.Location)
	}
	if details.OrganizerHandle != "@EventOrganizers" {
		t.Errorf("organizer handle = %q", details.OrganizerHandle)
	}
}

func TestExtractDetails_DegradesToDefaults(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("model unavailable")}}
	svc, err := NewService(completer, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	details := svc.ExtractDetails(context.Background(), "# Event")
	if details.EventName != "" {
		t.Errorf("event name should be empty, got %q", details.EventName)
	}
	if details.OrganizerHandle != "@EventOrganizers" {
		t.Errorf("organizer handle = %q", details.OrganizerHandle)
	}
}

func TestPosterDetails_Fallbacks(t *testing.T) {
	poster := posterDetails(&EventDetails{})
	if poster.EventName != "Upcoming Event" {
		t.Errorf("event name = %q", poster.EventName)
	}
	if poster.Tagline != "Join us for Upcoming Event" {
		t.Errorf("tagline = %q", poster.Tagline)
	}
	if poster.Location != "TBA" || poster.Date != "Coming Soon" {
		t.Errorf("location/date = %q/%q", poster.Location, poster.Date)
	}
	if poster.Focus != "Innovation & Technology" {
		t.Errorf("focus = %q", poster.Focus)
	}
}
