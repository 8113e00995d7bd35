// ABOUTME: Entry point for the concierge conversation server
// ABOUTME: Wires the store, engine, tools, and HTTP gateway together

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/concierge/internal/auth"
	"github.com/2389/concierge/internal/chat"
	"github.com/2389/concierge/internal/config"
	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/gateway"
	"github.com/2389/concierge/internal/speech"
	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/summarize"
	"github.com/2389/concierge/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _
  ___ ___  _ __   ___(_) ___ _ __ __ _  ___
 / __/ _ \| '_ \ / __| |/ _ \ '__/ _' |/ _ \
| (_| (_) | | | | (__| |  __/ | | (_| |  __/
 \___\___/|_| |_|\___|_|\___|_|  \__, |\___|
                                 |___/
`

// getConfigPath returns the path to the concierge config file.
// Priority: CONCIERGE_CONFIG env var > XDG_CONFIG_HOME/concierge/config.yaml > ~/.config/concierge/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CONCIERGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "concierge", "config.yaml")
}

// getDataPath returns the path to the concierge data directory.
// Priority: XDG_DATA_HOME/concierge > ~/.local/share/concierge
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "concierge")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: concierge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the conversation server")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  hash-key  Hash an API key for the auth.api_keys config section")
		fmt.Println("  health    Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "hash-key":
		err = runHashKey()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.Engine.Model)
	fmt.Println()

	logger.Info("starting concierge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.Engine.Model,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	eng, err := engine.NewOpenAIEngine(engine.OpenAIOptions{
		APIKey:      cfg.Engine.APIKey,
		BaseURL:     cfg.Engine.BaseURL,
		Model:       cfg.Engine.Model,
		MaxTokens:   int64(cfg.Engine.MaxTokens),
		Temperature: cfg.Engine.Temperature,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("creating engine: %w", err)
	}

	announcer := buildAnnouncer(cfg.Speech, logger)

	// The fal.ai client serves both the generate_poster tool and the
	// summarization pipeline's poster step.
	var poster tools.PosterGenerator
	if cfg.Tools.Poster.Enabled && cfg.Tools.Poster.APIKey != "" {
		fal := tools.NewFalClient(cfg.Tools.Poster.APIKey, cfg.Tools.Poster.Model)
		if cfg.Tools.Poster.BaseURL != "" {
			fal.BaseURL = cfg.Tools.Poster.BaseURL
		}
		poster = fal
	}

	registry, err := buildRegistry(cfg, st, eng, announcer, poster)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("building tool registry: %w", err)
	}

	summarizer, err := summarize.NewService(eng, poster)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("creating summarizer: %w", err)
	}

	orchestrator := chat.NewOrchestrator(st, eng, registry, chat.Options{
		SystemPrompt:   cfg.Chat.SystemPrompt,
		WelcomeMessage: cfg.Chat.WelcomeMessage,
		PageSize:       cfg.History.PageSize,
		HiddenWindow:   cfg.History.HiddenContextWindow,
		EngineTimeout:  cfg.Engine.Timeout,
		MaxPasses:      cfg.Chat.MaxPasses,
	})

	authn, err := auth.NewAuthenticator(cfg.Auth.APIKeys, []byte(cfg.Auth.TokenSecret))
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("configuring auth: %w", err)
	}
	if !authn.Enabled() {
		logger.Warn("no api keys configured, API is unauthenticated")
	}

	gw, err := gateway.New(gateway.Options{
		Addr:       cfg.Server.HTTPAddr,
		Store:      st,
		Facts:      st,
		Responder:  orchestrator,
		Summarizer: summarizer,
		Auth:       authn,
		Logger:     logger,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// buildRegistry assembles the tool table from config. save_fact and
// switch_theme are always on; the rest follow their config sections.
func buildRegistry(cfg *config.Config, st *store.SQLiteStore, completer engine.Completer, announcer speech.Announcer, poster tools.PosterGenerator) (*tools.Registry, error) {
	toolList := []*tools.Tool{
		tools.SaveFact(st, announcer),
		tools.SwitchTheme(),
	}

	if cfg.Tools.Weather.Enabled {
		toolList = append(toolList, tools.GetWeather(tools.NewOpenMeteo()))
	}

	if cfg.Tools.Venues.Enabled {
		var source tools.VenueSource
		if cfg.Tools.Venues.APIKey != "" {
			places := tools.NewGooglePlaces(cfg.Tools.Venues.APIKey)
			if cfg.Tools.Venues.BaseURL != "" {
				places.BaseURL = cfg.Tools.Venues.BaseURL
			}
			source = places
		}
		toolList = append(toolList, tools.CompareVenues(source))
	}

	city := cfg.Tools.City
	if city == "" {
		city = "Paris"
	}
	toolList = append(toolList, tools.CityGuide(completer, announcer, city))

	if poster != nil {
		toolList = append(toolList, tools.GeneratePoster(poster, announcer))
	}

	return tools.NewRegistry(toolList...)
}

// buildAnnouncer returns an ElevenLabs announcer when an API key is
// configured, writing audio into the data directory, and Noop otherwise.
func buildAnnouncer(cfg config.SpeechConfig, logger *slog.Logger) speech.Announcer {
	if cfg.APIKey == "" {
		return speech.Noop{}
	}

	audioDir := filepath.Join(getDataPath(), "announcements")
	sink := func(audio []byte) error {
		if err := os.MkdirAll(audioDir, 0755); err != nil {
			return err
		}
		name := fmt.Sprintf("announcement-%d.mp3", time.Now().UnixNano())
		return os.WriteFile(filepath.Join(audioDir, name), audio, 0644)
	}

	announcer, err := speech.NewElevenLabs(speech.ElevenLabsOptions{
		APIKey:  cfg.APIKey,
		VoiceID: cfg.VoiceID,
		BaseURL: cfg.BaseURL,
		Sink:    sink,
	})
	if err != nil {
		logger.Warn("speech disabled", "error", err)
		return speech.Noop{}
	}
	return announcer
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runHashKey reads a key and prints its bcrypt hash for auth.api_keys.
func runHashKey() error {
	reader := bufio.NewReader(os.Stdin)
	key := prompt(reader, "API key to hash", "")
	if key == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}

	fmt.Println()
	fmt.Println("Add to your config:")
	fmt.Println()
	fmt.Println("auth:")
	fmt.Println("  api_keys:")
	fmt.Printf("    <subject-name>: \"%s\"\n", string(hash))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("concierge configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "concierge.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Engine Configuration ---")
	model := prompt(reader, "Model", "gpt-4o-mini")
	apiKeyEnv := prompt(reader, "API key env var", "OPENAI_API_KEY")

	fmt.Println("\n--- Tools Configuration ---")
	city := prompt(reader, "Default city for the city guide", "Paris")
	enableWeather := promptYesNo(reader, "Enable the weather tool?", true)
	enableVenues := promptYesNo(reader, "Enable venue comparison?", true)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	tokenSecret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generating token secret: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# concierge configuration\n")
	cfg.WriteString("# Generated by concierge init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("engine:\n")
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString(fmt.Sprintf("  api_key: \"${%s}\"\n", apiKeyEnv))
	cfg.WriteString("  timeout: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("chat:\n")
	cfg.WriteString("  system_prompt: \"You are a helpful event planning concierge.\"\n")
	cfg.WriteString("  welcome_message: \"Welcome! Tell me about the event you are planning.\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("history:\n")
	cfg.WriteString("  page_size: 20\n")
	cfg.WriteString("  hidden_context_window: 0\n")
	cfg.WriteString("\n")

	cfg.WriteString("tools:\n")
	cfg.WriteString(fmt.Sprintf("  city: \"%s\"\n", city))
	cfg.WriteString("  weather:\n")
	cfg.WriteString(fmt.Sprintf("    enabled: %t\n", enableWeather))
	cfg.WriteString("  venues:\n")
	cfg.WriteString(fmt.Sprintf("    enabled: %t\n", enableVenues))
	cfg.WriteString("    api_key: \"${GOOGLE_PLACES_API_KEY}\"\n")
	cfg.WriteString("  poster:\n")
	cfg.WriteString("    enabled: false\n")
	cfg.WriteString("    api_key: \"${FAL_API_KEY}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("speech:\n")
	cfg.WriteString("  api_key: \"${ELEVENLABS_API_KEY}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString("  api_keys: {}\n")
	cfg.WriteString(fmt.Sprintf("  token_secret: \"%s\"\n", tokenSecret))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  concierge serve\n")

	return nil
}

func randomSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptYesNo(reader *bufio.Reader, question string, defaultVal bool) bool {
	def := "no"
	if defaultVal {
		def = "yes"
	}
	answer := strings.ToLower(prompt(reader, question, def))
	return answer == "yes" || answer == "y"
}
