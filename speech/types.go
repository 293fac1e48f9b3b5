// Package speech provides thin HTTP clients for the external speech
// services. Recognition and synthesis are opaque hosted operations; these
// clients own only request shaping and response parsing.
package speech

import "context"

// STTRequest is a transcription request.
type STTRequest struct {
	// Audio is the raw audio payload.
	Audio []byte
	// MimeType of the audio payload, e.g. "audio/wav".
	MimeType string
	// Model overrides the configured default when non-empty.
	Model string
	// Language hint, e.g. "en".
	Language string
}

// STTResponse is the transcription result.
type STTResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	// Duration of the audio in seconds, as reported by the service.
	Duration float64 `json:"duration"`
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error)
	Name() string
}

// TTSRequest is a synthesis request.
type TTSRequest struct {
	Text string
	// Voice overrides the configured default when non-empty.
	Voice string
	// Model overrides the configured default when non-empty.
	Model string
}

// Synthesizer converts text to speech, returning raw audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *TTSRequest) ([]byte, error)
	Name() string
}
