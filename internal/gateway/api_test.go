// ABOUTME: Tests for the HTTP API handlers and SSE turn streaming
// ABOUTME: Uses a fake responder and a real SQLite store per test

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/2389/concierge/internal/chat"
	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/summarize"
	"github.com/2389/concierge/internal/tools"
)

// fakeResponder replays a fixed event script for every turn.
type fakeResponder struct {
	events []chat.StreamEvent
	result *chat.TurnResult
	err    error

	gotThreadID string
	gotMessage  string
}

func (f *fakeResponder) Respond(ctx context.Context, threadID, userMessage string, events chan<- chat.StreamEvent) (*chat.TurnResult, error) {
	f.gotThreadID = threadID
	f.gotMessage = userMessage
	for _, ev := range f.events {
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	result := f.result
	if result == nil {
		result = &chat.TurnResult{ThreadID: threadID}
	} else if result.ThreadID == "" {
		result.ThreadID = threadID
	}
	return result, nil
}

func newTestGateway(t *testing.T, responder Responder) (*Gateway, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gw, err := New(Options{
		Store:     st,
		Facts:     st,
		Responder: responder,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw, st
}

// sseEvents parses an SSE body into (event, rawData) pairs.
func sseEvents(t *testing.T, body string) [][2]string {
	t.Helper()
	var events [][2]string
	var current string
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events = append(events, [2]string{current, strings.TrimPrefix(line, "data: ")})
		}
	}
	return events
}

func TestHandleRespond_StreamsTurnEvents(t *testing.T) {
	responder := &fakeResponder{
		events: []chat.StreamEvent{
			chat.MessageDelta{ItemID: "item-1", Text: "Hello "},
			chat.MessageDelta{ItemID: "item-1", Text: "there!"},
			chat.MessageCompleted{Item: &store.Item{
				ID: "item-1", ThreadID: "t", Seq: 2,
				Kind: store.ItemKindAssistantMessage, Content: "Hello there!",
				CreatedAt: time.Now().UTC(),
			}},
		},
		result: &chat.TurnResult{Text: "Hello there!"},
	}
	gw, _ := newTestGateway(t, responder)

	body, _ := json.Marshal(RespondRequest{Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.handleRespond(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := sseEvents(t, rec.Body.String())
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5: %v", len(events), events)
	}
	wantOrder := []string{"started", "message.delta", "message.delta", "message.completed", "done"}
	for i, want := range wantOrder {
		if events[i][0] != want {
			t.Errorf("event[%d] = %q, want %q", i, events[i][0], want)
		}
	}

	var started map[string]string
	if err := json.Unmarshal([]byte(events[0][1]), &started); err != nil {
		t.Fatalf("unmarshaling started event: %v", err)
	}
	if started["thread_id"] == "" {
		t.Error("started event missing thread_id")
	}
	if responder.gotThreadID != started["thread_id"] {
		t.Errorf("responder thread id = %q, want %q", responder.gotThreadID, started["thread_id"])
	}
	if responder.gotMessage != "hi" {
		t.Errorf("responder message = %q, want %q", responder.gotMessage, "hi")
	}

	var done map[string]any
	if err := json.Unmarshal([]byte(events[4][1]), &done); err != nil {
		t.Fatalf("unmarshaling done event: %v", err)
	}
	if done["text"] != "Hello there!" {
		t.Errorf("done text = %v, want %q", done["text"], "Hello there!")
	}
}

func TestHandleRespond_ClientActionEvent(t *testing.T) {
	responder := &fakeResponder{
		events: []chat.StreamEvent{
			chat.ClientActionEvent{Action: tools.ClientAction{
				Name:      "switch_theme",
				Arguments: map[string]any{"theme": "dark"},
			}},
		},
		result: &chat.TurnResult{Stopped: true},
	}
	gw, _ := newTestGateway(t, responder)

	body, _ := json.Marshal(RespondRequest{Message: "dark mode please"})
	req := httptest.NewRequest(http.MethodPost, "/api/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.handleRespond(rec, req)

	events := sseEvents(t, rec.Body.String())
	var action map[string]any
	found := false
	for _, ev := range events {
		if ev[0] == "client_action" {
			found = true
			if err := json.Unmarshal([]byte(ev[1]), &action); err != nil {
				t.Fatalf("unmarshaling client_action: %v", err)
			}
		}
	}
	if !found {
		t.Fatal("no client_action event in stream")
	}
	if action["name"] != "switch_theme" {
		t.Errorf("action name = %v, want switch_theme", action["name"])
	}
}

func TestHandleRespond_UnknownThread(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	body, _ := json.Marshal(RespondRequest{ThreadID: "no-such-thread", Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.handleRespond(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleRespond_MethodNotAllowed(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/api/respond", nil)
	rec := httptest.NewRecorder()
	gw.handleRespond(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleThreadItems(t *testing.T) {
	gw, st := newTestGateway(t, &fakeResponder{})

	thread := &store.Thread{ID: "thread-1", CreatedAt: time.Now().UTC()}
	if err := st.CreateThread(context.Background(), thread); err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	for i, content := range []string{"one", "two", "three"} {
		item := &store.Item{
			ID: "item-" + strconv.Itoa(i), ThreadID: "thread-1",
			Kind: store.ItemKindUserMessage, Content: content,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.AppendItem(context.Background(), "thread-1", item); err != nil {
			t.Fatalf("AppendItem() error = %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/threads/thread-1/items?limit=2", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp ThreadItemsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	if !resp.HasMore {
		t.Error("expected has_more")
	}
	if resp.Items[0].Content != "one" || resp.Items[1].Content != "two" {
		t.Errorf("unexpected page contents: %+v", resp.Items)
	}

	// Second page via the cursor.
	req = httptest.NewRequest(http.MethodGet,
		"/api/threads/thread-1/items?limit=2&after="+strconv.FormatInt(*resp.Cursor, 10), nil)
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	var second ThreadItemsResponse
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("decoding second page: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].Content != "three" {
		t.Errorf("unexpected second page: %+v", second.Items)
	}
	if second.HasMore {
		t.Error("second page should be the last")
	}
}

func TestHandleThreadItems_UnknownThread(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/api/threads/nope/items", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestFactEndpoints(t *testing.T) {
	gw, st := newTestGateway(t, &fakeResponder{})

	fact := &store.Fact{ID: "fact-1", Text: "The venue needs wheelchair access"}
	if err := st.CreateFact(context.Background(), fact); err != nil {
		t.Fatalf("CreateFact() error = %v", err)
	}

	// Save it over the API.
	req := httptest.NewRequest(http.MethodPost, "/api/facts/fact-1/save", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}

	// It shows up in the saved list.
	req = httptest.NewRequest(http.MethodGet, "/api/facts", nil)
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	var list map[string][]FactResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding facts: %v", err)
	}
	if len(list["facts"]) != 1 || list["facts"][0].ID != "fact-1" {
		t.Fatalf("unexpected facts list: %+v", list["facts"])
	}

	// Discard removes it from the saved list.
	req = httptest.NewRequest(http.MethodPost, "/api/facts/fact-1/discard", nil)
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/facts", nil)
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding facts: %v", err)
	}
	if len(list["facts"]) != 0 {
		t.Errorf("expected no saved facts, got %+v", list["facts"])
	}
}

func TestHandleFactRoutes_UnknownFact(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodPost, "/api/facts/missing/save", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

type fakeSummarizer struct {
	result      *summarize.Result
	err         error
	gotMarkdown string
}

func (f *fakeSummarizer) Run(_ context.Context, markdown string) (*summarize.Result, error) {
	f.gotMarkdown = markdown
	return f.result, f.err
}

func newSummarizeGateway(t *testing.T, summarizer Summarizer) *Gateway {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gw, err := New(Options{Store: st, Responder: &fakeResponder{}, Summarizer: summarizer})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw
}

func TestHandleSummarize(t *testing.T) {
	summarizer := &fakeSummarizer{result: &summarize.Result{
		Summary:        "A hackathon at Station F.",
		PosterURL:      "https://img.example/poster.png",
		EventName:      "Paris AI Hackathon",
		HackathonRules: "# Rules\nBe kind.",
	}}
	gw := newSummarizeGateway(t, summarizer)

	body, _ := json.Marshal(SummarizeRequest{Markdown: "# My Event\nHackathon in Paris"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if summarizer.gotMarkdown != "# My Event\nHackathon in Paris" {
		t.Errorf("markdown = %q", summarizer.gotMarkdown)
	}

	var resp SummarizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Summary != "A hackathon at Station F." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if resp.PosterURL != "https://img.example/poster.png" || resp.EventName != "Paris AI Hackathon" {
		t.Errorf("poster fields = %q/%q", resp.PosterURL, resp.EventName)
	}
	if resp.HackathonRules == "" {
		t.Error("missing hackathon rules")
	}
}

func TestHandleSummarize_RequiresMarkdown(t *testing.T) {
	gw := newSummarizeGateway(t, &fakeSummarizer{})

	body, _ := json.Marshal(SummarizeRequest{Markdown: "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSummarize_PipelineFailure(t *testing.T) {
	gw := newSummarizeGateway(t, &fakeSummarizer{err: context.DeadlineExceeded})

	body, _ := json.Marshal(SummarizeRequest{Markdown: "# Event"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHandleSummarize_Disabled(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	body, _ := json.Marshal(SummarizeRequest{Markdown: "# Event"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHealth(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
