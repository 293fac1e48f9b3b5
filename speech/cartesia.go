package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CartesiaConfig configures the Cartesia TTS client.
type CartesiaConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Voice      string        `json:"voice,omitempty" yaml:"voice,omitempty"`
	SampleRate int           `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Cartesia performs text-to-speech via the Cartesia bytes API.
type Cartesia struct {
	cfg    CartesiaConfig
	client *http.Client
}

// NewCartesia creates a Cartesia TTS client.
func NewCartesia(cfg CartesiaConfig) *Cartesia {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cartesia.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "sonic-english"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Cartesia{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Cartesia) Name() string { return "cartesia" }

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

// Synthesize converts text to raw PCM audio bytes.
func (c *Cartesia) Synthesize(ctx context.Context, req *TTSRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	voice := req.Voice
	if voice == "" {
		voice = c.cfg.Voice
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	payload, err := json.Marshal(cartesiaRequest{
		ModelID:    model,
		Transcript: req.Text,
		Voice:      cartesiaVoice{Mode: "id", ID: voice},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.cfg.SampleRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesize request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/tts/bytes"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesize request: %w", err)
	}
	httpReq.Header.Set("X-API-Key", c.cfg.APIKey)
	httpReq.Header.Set("Cartesia-Version", "2024-06-10")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesize request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesize response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}
