// ABOUTME: Gateway wires the store, orchestrator, and tool registry behind HTTP
// ABOUTME: Owns the server lifecycle: listeners, graceful shutdown, health

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/concierge/internal/auth"
	"github.com/2389/concierge/internal/chat"
	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/summarize"
)

// Responder runs one conversational turn. Satisfied by chat.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, threadID, userMessage string, events chan<- chat.StreamEvent) (*chat.TurnResult, error)
}

// Summarizer runs the event-details summarization pipeline. Satisfied by
// summarize.Service.
type Summarizer interface {
	Run(ctx context.Context, markdown string) (*summarize.Result, error)
}

// Options configures a Gateway. Store and Responder are required; a nil Auth
// disables authentication, a nil Summarizer disables POST /api/summarize.
type Options struct {
	Addr       string
	Store      store.Store
	Facts      store.FactStore
	Responder  Responder
	Summarizer Summarizer
	Auth       *auth.Authenticator
	Logger     *slog.Logger
}

// Gateway serves the conversation API over HTTP.
type Gateway struct {
	store      store.Store
	facts      store.FactStore
	responder  Responder
	summarizer Summarizer
	authn      *auth.Authenticator
	logger     *slog.Logger
	httpServer *http.Server
}

// New builds a gateway and its route table.
func New(opts Options) (*Gateway, error) {
	if opts.Store == nil || opts.Responder == nil {
		return nil, fmt.Errorf("store and responder are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		store:      opts.Store,
		facts:      opts.Facts,
		responder:  opts.Responder,
		summarizer: opts.Summarizer,
		authn:      opts.Auth,
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoint stays unauthenticated.
	mux.HandleFunc("/health", g.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("/api/respond", g.handleRespond)
	api.HandleFunc("/api/threads", g.handleListThreads)
	api.HandleFunc("/api/threads/", g.handleThreadRoutes)
	api.HandleFunc("/api/facts", g.handleListFacts)
	api.HandleFunc("/api/facts/", g.handleFactRoutes)
	api.HandleFunc("/api/summarize", g.handleSummarize)

	var apiHandler http.Handler = api
	if g.authn != nil {
		apiHandler = g.authn.Require(api)
	}
	mux.Handle("/api/", apiHandler)

	g.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// Handler exposes the route table for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	// Fresh context: the run context is already canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
