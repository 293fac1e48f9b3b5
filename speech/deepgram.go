package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeepgramConfig configures the Deepgram STT client.
type DeepgramConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Deepgram performs speech-to-text via the Deepgram listen API.
type Deepgram struct {
	cfg    DeepgramConfig
	client *http.Client
}

// NewDeepgram creates a Deepgram STT client.
func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Deepgram{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends audio to the listen endpoint and returns the best
// alternative of the first channel.
func (d *Deepgram) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio input is required")
	}

	model := req.Model
	if model == "" {
		model = d.cfg.Model
	}

	params := url.Values{}
	params.Set("model", model)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	if req.Language != "" {
		params.Set("language", req.Language)
	}

	endpoint := fmt.Sprintf("%s/v1/listen?%s", strings.TrimRight(d.cfg.BaseURL, "/"), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("build transcribe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+d.cfg.APIKey)
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", mimeType)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcribe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("STT API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcribe response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return &STTResponse{Duration: parsed.Metadata.Duration}, nil
	}

	alt := parsed.Results.Channels[0].Alternatives[0]
	return &STTResponse{
		Transcript: alt.Transcript,
		Confidence: alt.Confidence,
		Duration:   parsed.Metadata.Duration,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
