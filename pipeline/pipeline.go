package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/llm"
	"github.com/voicekit/gcpassist/speech"
)

// Pipeline chains speech recognition, the LLM service and speech synthesis
// around the event handlers. The transcriber and synthesizer are optional so
// text-only clients can share the same turn logic.
type Pipeline struct {
	handlers    *Handlers
	llm         llm.Service
	transcriber speech.Transcriber // nil for text-only operation
	synthesizer speech.Synthesizer // nil for text-only operation
	logger      *zap.Logger
}

// New assembles a pipeline. transcriber and synthesizer may be nil.
func New(handlers *Handlers, llmSvc llm.Service, transcriber speech.Transcriber, synthesizer speech.Synthesizer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		handlers:    handlers,
		llm:         llmSvc,
		transcriber: transcriber,
		synthesizer: synthesizer,
		logger:      logger.With(zap.String("component", "pipeline")),
	}
}

// Handlers exposes the event handlers for transports that deliver feedback
// or interruption events directly.
func (p *Pipeline) Handlers() *Handlers {
	return p.handlers
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Transcript string
	Reply      string
	Audio      []byte // nil when no synthesizer is configured or synthesis failed
}

// ProcessText runs one turn from a finished user utterance: update the
// prompt, generate the reply, optionally synthesize it. Synthesis failure is
// non-fatal since the text reply can still be delivered.
func (p *Pipeline) ProcessText(ctx context.Context, userText string) (*TurnResult, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, fmt.Errorf("empty user text")
	}

	p.handlers.OnTranscript(ctx, TranscriptEvent{Text: userText, IsFinal: true})

	reply, err := p.llm.Generate(ctx, userText)
	if err != nil {
		p.handlers.OnError(err)
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	p.handlers.OnAgentText(reply)

	result := &TurnResult{Transcript: userText, Reply: reply}
	if p.synthesizer != nil {
		audio, err := p.synthesizer.Synthesize(ctx, &speech.TTSRequest{Text: reply})
		if err != nil {
			p.handlers.OnError(fmt.Errorf("synthesize reply: %w", err))
		} else {
			result.Audio = audio
		}
	}
	return result, nil
}

// ProcessAudio transcribes one utterance and runs the turn on the result.
// Empty transcripts (silence, noise) complete without a turn.
func (p *Pipeline) ProcessAudio(ctx context.Context, audio []byte, mimeType string) (*TurnResult, error) {
	if p.transcriber == nil {
		return nil, fmt.Errorf("no transcriber configured")
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio")
	}

	resp, err := p.transcriber.Transcribe(ctx, &speech.STTRequest{Audio: audio, MimeType: mimeType})
	if err != nil {
		p.handlers.OnError(err)
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(resp.Transcript) == "" {
		p.logger.Debug("empty transcript, skipping turn")
		return &TurnResult{}, nil
	}
	return p.ProcessText(ctx, resp.Transcript)
}
