// Package tts provides a text-to-speech client for an ElevenLabs-compatible API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"careercoach-go/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// Client converts text into encoded audio.
type Client interface {
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type elevenLabsClient struct {
	cfg       config.TTSConfig
	client    *http.Client
	semaphore *semaphore.Weighted
}

// NewClient builds a client with the voice profile fixed from cfg.
func NewClient(cfg config.TTSConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = 10
	}
	return &elevenLabsClient{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		semaphore: semaphore.NewWeighted(int64(workers)),
	}
}

// GenerateSpeech makes exactly one request; the caller decides what a failure means.
func (c *elevenLabsClient) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	ctx, span := otel.Tracer("tts/GenerateSpeech").Start(ctx, "GenerateSpeech")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(text)))

	if err := c.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer c.semaphore.Release(1)

	jsonData, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
			Style:           c.cfg.Style,
			UseSpeakerBoost: c.cfg.UseSpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to call speech api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("speech api returned non-200 status: %s, body: %s", resp.Status, string(body))
		span.RecordError(err)
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("speech api returned empty audio")
	}

	span.SetAttributes(attribute.Int("audio.size", len(body)))
	return body, nil
}
