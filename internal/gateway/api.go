// ABOUTME: HTTP API handlers for the conversation endpoints
// ABOUTME: POST /api/respond streams turn events to the client over SSE

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/concierge/internal/chat"
	"github.com/2389/concierge/internal/store"
)

// RespondRequest is the JSON request body for POST /api/respond. An empty
// thread_id starts a new thread; an empty message opens the thread without
// speaking.
type RespondRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ThreadResponse is the JSON shape for a thread.
type ThreadResponse struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ItemResponse is the JSON shape for a thread item.
type ItemResponse struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ThreadItemsResponse is the JSON response for GET /api/threads/{id}/items.
type ThreadItemsResponse struct {
	ThreadID string         `json:"thread_id"`
	Items    []ItemResponse `json:"items"`
	HasMore  bool           `json:"has_more"`
	Cursor   *int64         `json:"cursor,omitempty"`
}

// FactResponse is the JSON shape for a recorded fact.
type FactResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// handleRespond handles POST /api/respond. It runs one turn and streams the
// turn's events to the client as SSE.
func (g *Gateway) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseRespondRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fail fast before committing to a streaming response.
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Resolve the thread id up front so the started event can carry it.
	threadID := req.ThreadID
	if threadID == "" {
		thread := &store.Thread{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}
		if err := g.store.CreateThread(r.Context(), thread); err != nil {
			g.logger.Error("failed to create thread", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		threadID = thread.ID
	} else if _, err := g.store.GetThread(r.Context(), threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "thread not found")
			return
		}
		g.logger.Error("failed to load thread", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "started", map[string]string{"thread_id": threadID})
	flusher.Flush()

	events := make(chan chat.StreamEvent, 16)
	type turnOutcome struct {
		result *chat.TurnResult
		err    error
	}
	outcomeCh := make(chan turnOutcome, 1)
	go func() {
		result, err := g.responder.Respond(r.Context(), threadID, req.Message, events)
		close(events)
		outcomeCh <- turnOutcome{result: result, err: err}
	}()

	g.streamTurnEvents(r.Context(), w, flusher, events)

	outcome := <-outcomeCh
	if outcome.err != nil {
		// The turn already emitted its error event; just log and end.
		g.logger.Error("turn failed", "thread_id", threadID, "error", outcome.err)
		return
	}
	g.writeSSEEvent(w, "done", map[string]any{
		"thread_id": outcome.result.ThreadID,
		"text":      outcome.result.Text,
		"stopped":   outcome.result.Stopped,
	})
	flusher.Flush()
}

// streamTurnEvents forwards turn events as SSE until the channel closes.
func (g *Gateway) streamTurnEvents(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, events <-chan chat.StreamEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			name, data := turnEventToSSE(ev)
			g.writeSSEEvent(w, name, data)
			flusher.Flush()
		}
	}
}

// turnEventToSSE maps a turn event to its wire name and payload.
func turnEventToSSE(ev chat.StreamEvent) (string, any) {
	switch ev := ev.(type) {
	case chat.MessageDelta:
		return "message.delta", map[string]string{
			"item_id": ev.ItemID,
			"text":    ev.Text,
		}
	case chat.WidgetStreamed:
		return "widget", map[string]any{
			"widget":         ev.Widget,
			"copy_text":      ev.CopyText,
			"copy_text_html": ev.CopyTextHTML,
		}
	case chat.MessageCompleted:
		return "message.completed", itemToResponse(ev.Item)
	case chat.ClientActionEvent:
		return "client_action", map[string]any{
			"name":      ev.Action.Name,
			"arguments": ev.Action.Arguments,
		}
	case chat.TurnErrorEvent:
		return "error", map[string]any{
			"error":     ev.Message,
			"retryable": ev.Retryable,
		}
	default:
		return "unknown", map[string]string{}
	}
}

// handleListThreads handles GET /api/threads.
func (g *Gateway) handleListThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 50)
	threads, err := g.store.ListThreads(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list threads", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ThreadResponse, 0, len(threads))
	for _, t := range threads {
		resp = append(resp, ThreadResponse{
			ID:        t.ID,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
			Metadata:  t.Metadata,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"threads": resp})
}

// handleThreadRoutes dispatches /api/threads/{id}/items.
func (g *Gateway) handleThreadRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/threads/")
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "items" && parts[0] != "" {
		g.handleThreadItems(w, r, parts[0])
		return
	}
	http.NotFound(w, r)
}

// handleThreadItems handles GET /api/threads/{id}/items with cursor
// pagination: ?after=<seq>&limit=<n>&order=asc|desc.
func (g *Gateway) handleThreadItems(w http.ResponseWriter, r *http.Request, threadID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), 50)

	order := store.OrderAsc
	switch q.Get("order") {
	case "", "asc":
	case "desc":
		order = store.OrderDesc
	default:
		g.sendJSONError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	var after *int64
	if raw := q.Get("after"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
		after = &seq
	}

	if _, err := g.store.GetThread(r.Context(), threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "thread not found")
			return
		}
		g.logger.Error("failed to load thread", "thread_id", threadID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	page, err := g.store.LoadItems(r.Context(), threadID, after, limit, order)
	if err != nil {
		g.logger.Error("failed to load items", "thread_id", threadID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ThreadItemsResponse{
		ThreadID: threadID,
		Items:    make([]ItemResponse, 0, len(page.Data)),
		HasMore:  page.HasMore,
		Cursor:   page.Cursor,
	}
	for _, item := range page.Data {
		resp.Items = append(resp.Items, itemToResponse(item))
	}
	g.sendJSON(w, http.StatusOK, resp)
}

// SummarizeRequest is the JSON request body for POST /api/summarize.
type SummarizeRequest struct {
	Markdown string `json:"markdown"`
}

// SummarizeResponse is the JSON response for POST /api/summarize. Summary is
// always present; poster and rules appear when their step succeeded.
type SummarizeResponse struct {
	Summary        string `json:"summary"`
	PosterURL      string `json:"poster_url,omitempty"`
	EventName      string `json:"event_name,omitempty"`
	HackathonRules string `json:"hackathon_rules,omitempty"`
}

// handleSummarize handles POST /api/summarize, running the summarization
// pipeline over event-details markdown.
func (g *Gateway) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.summarizer == nil {
		g.sendJSONError(w, http.StatusNotFound, "summarization is not enabled")
		return
	}

	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "markdown is required")
		return
	}

	result, err := g.summarizer.Run(r.Context(), req.Markdown)
	if err != nil {
		g.logger.Error("summarization failed", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "failed to generate summary")
		return
	}

	g.sendJSON(w, http.StatusOK, SummarizeResponse{
		Summary:        result.Summary,
		PosterURL:      result.PosterURL,
		EventName:      result.EventName,
		HackathonRules: result.HackathonRules,
	})
}

// handleListFacts handles GET /api/facts, returning saved facts.
func (g *Gateway) handleListFacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.facts == nil {
		g.sendJSON(w, http.StatusOK, map[string]any{"facts": []FactResponse{}})
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 100)
	facts, err := g.facts.ListSavedFacts(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list facts", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]FactResponse, 0, len(facts))
	for _, f := range facts {
		resp = append(resp, factToResponse(f))
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"facts": resp})
}

// handleFactRoutes dispatches POST /api/facts/{id}/save and /discard.
func (g *Gateway) handleFactRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.facts == nil {
		g.sendJSONError(w, http.StatusNotFound, "facts are not enabled")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/facts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	factID := parts[0]

	var fact *store.Fact
	var err error
	switch parts[1] {
	case "save":
		fact, err = g.facts.MarkFactSaved(r.Context(), factID)
	case "discard":
		fact, err = g.facts.DiscardFact(r.Context(), factID)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "fact not found")
			return
		}
		g.logger.Error("failed to update fact", "fact_id", factID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, factToResponse(fact))
}

func itemToResponse(item *store.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		ThreadID:  item.ThreadID,
		Seq:       item.Seq,
		Kind:      string(item.Kind),
		Content:   item.Content,
		CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
	}
}

func factToResponse(f *store.Fact) FactResponse {
	return FactResponse{
		ID:        f.ID,
		Text:      f.Text,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

// parseRespondRequest parses a RespondRequest from the given reader. An
// empty body is treated as "start a new thread".
func parseRespondRequest(r io.Reader) (*RespondRequest, error) {
	var req RespondRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return &RespondRequest{}, nil
		}
		return nil, errors.New("invalid JSON body")
	}
	return &req, nil
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 200 {
		return 200
	}
	return n
}
