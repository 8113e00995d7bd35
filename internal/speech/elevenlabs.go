// ABOUTME: ElevenLabs text-to-speech Announcer implementation
// ABOUTME: Synthesized audio is handed to a playback sink, not returned

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultVoiceID      = "JBFqnCBsd6RMkjVDRZzb"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
	elevenLabsBaseURL   = "https://api.elevenlabs.io"
)

// AudioSink receives synthesized audio for playback or storage.
type AudioSink func(audio []byte) error

// ElevenLabs synthesizes announcements through the ElevenLabs TTS API.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
	sink    AudioSink
	logger  *slog.Logger
}

// ElevenLabsOptions configures an ElevenLabs announcer. Zero-value fields
// fall back to sensible defaults; only APIKey and Sink are required.
type ElevenLabsOptions struct {
	APIKey  string
	VoiceID string
	ModelID string
	BaseURL string
	Sink    AudioSink
}

// NewElevenLabs creates an announcer backed by the ElevenLabs API.
func NewElevenLabs(opts ElevenLabsOptions) (*ElevenLabs, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("audio sink is required")
	}
	if opts.VoiceID == "" {
		opts.VoiceID = defaultVoiceID
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.BaseURL == "" {
		opts.BaseURL = elevenLabsBaseURL
	}
	return &ElevenLabs{
		apiKey:  opts.APIKey,
		voiceID: opts.VoiceID,
		modelID: opts.ModelID,
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		sink:    opts.Sink,
		logger:  slog.Default().With("component", "speech"),
	}, nil
}

// Announce synthesizes text and passes the audio to the configured sink.
func (e *ElevenLabs) Announce(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": e.modelID,
	})
	if err != nil {
		return fmt.Errorf("encoding tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, e.voiceID, defaultOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts request failed with status %d: %s", resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading tts audio: %w", err)
	}

	e.logger.Debug("synthesized announcement", "bytes", len(audio))
	return e.sink(audio)
}
