package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekit/gcpassist/speech"
)

// stubTranscriber returns a fixed transcript.
type stubTranscriber struct {
	transcript string
	err        error
	lastAudio  []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, req *speech.STTRequest) (*speech.STTResponse, error) {
	s.lastAudio = req.Audio
	if s.err != nil {
		return nil, s.err
	}
	return &speech.STTResponse{Transcript: s.transcript, Confidence: 0.95}, nil
}

func (s *stubTranscriber) Name() string { return "stub-stt" }

// stubSynthesizer returns fixed audio bytes.
type stubSynthesizer struct {
	audio    []byte
	err      error
	lastText string
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req *speech.TTSRequest) ([]byte, error) {
	s.lastText = req.Text
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func (s *stubSynthesizer) Name() string { return "stub-tts" }

func newTestPipeline(t *testing.T, llmSvc *stubLLM, stt *stubTranscriber, tts *stubSynthesizer) *Pipeline {
	t.Helper()
	h, _, _, _ := newTestHandlers(t, nil, llmSvc)
	var transcriber speech.Transcriber
	if stt != nil {
		transcriber = stt
	}
	var synthesizer speech.Synthesizer
	if tts != nil {
		synthesizer = tts
	}
	return New(h, llmSvc, transcriber, synthesizer, nil)
}

func TestPipeline_ProcessText(t *testing.T) {
	llmSvc := &stubLLM{reply: "an IAM role is a collection of permissions"}
	p := newTestPipeline(t, llmSvc, nil, nil)

	result, err := p.ProcessText(context.Background(), "what is an IAM role?")
	require.NoError(t, err)
	assert.Equal(t, "what is an IAM role?", result.Transcript)
	assert.Equal(t, llmSvc.reply, result.Reply)
	assert.Nil(t, result.Audio)

	// The system prompt must be in place before generation.
	require.Len(t, llmSvc.prompts, 1)
	assert.NotEmpty(t, llmSvc.prompts[0])
}

func TestPipeline_ProcessTextEmptyInput(t *testing.T) {
	p := newTestPipeline(t, &stubLLM{reply: "x"}, nil, nil)

	_, err := p.ProcessText(context.Background(), "   ")
	assert.Error(t, err)
}

func TestPipeline_ProcessTextGenerateError(t *testing.T) {
	llmSvc := &stubLLM{err: errors.New("rate limited")}
	p := newTestPipeline(t, llmSvc, nil, nil)

	_, err := p.ProcessText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate reply")
}

func TestPipeline_ProcessTextWithSynthesis(t *testing.T) {
	llmSvc := &stubLLM{reply: "hello there"}
	tts := &stubSynthesizer{audio: []byte{0x01, 0x02, 0x03}}
	p := newTestPipeline(t, llmSvc, nil, tts)

	result, err := p.ProcessText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, result.Audio)
	assert.Equal(t, "hello there", tts.lastText)
}

func TestPipeline_SynthesisFailureIsNonFatal(t *testing.T) {
	llmSvc := &stubLLM{reply: "hello there"}
	tts := &stubSynthesizer{err: errors.New("voice not found")}
	p := newTestPipeline(t, llmSvc, nil, tts)

	result, err := p.ProcessText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Reply)
	assert.Nil(t, result.Audio)
}

func TestPipeline_ProcessAudio(t *testing.T) {
	llmSvc := &stubLLM{reply: "sure"}
	stt := &stubTranscriber{transcript: "can you help me"}
	p := newTestPipeline(t, llmSvc, stt, nil)

	result, err := p.ProcessAudio(context.Background(), []byte("pcm data"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "can you help me", result.Transcript)
	assert.Equal(t, "sure", result.Reply)
	assert.Equal(t, []byte("pcm data"), stt.lastAudio)
}

func TestPipeline_ProcessAudioEmptyTranscriptSkipsTurn(t *testing.T) {
	llmSvc := &stubLLM{reply: "should not be called"}
	stt := &stubTranscriber{transcript: "  "}
	p := newTestPipeline(t, llmSvc, stt, nil)

	result, err := p.ProcessAudio(context.Background(), []byte("silence"), "audio/wav")
	require.NoError(t, err)
	assert.Empty(t, result.Reply)
	assert.Empty(t, llmSvc.prompts)
}

func TestPipeline_ProcessAudioErrors(t *testing.T) {
	t.Run("no transcriber", func(t *testing.T) {
		p := newTestPipeline(t, &stubLLM{}, nil, nil)
		_, err := p.ProcessAudio(context.Background(), []byte("x"), "audio/wav")
		assert.Error(t, err)
	})

	t.Run("empty audio", func(t *testing.T) {
		p := newTestPipeline(t, &stubLLM{}, &stubTranscriber{}, nil)
		_, err := p.ProcessAudio(context.Background(), nil, "audio/wav")
		assert.Error(t, err)
	})

	t.Run("transcription failure", func(t *testing.T) {
		stt := &stubTranscriber{err: errors.New("bad audio")}
		p := newTestPipeline(t, &stubLLM{}, stt, nil)
		_, err := p.ProcessAudio(context.Background(), []byte("x"), "audio/wav")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transcribe")
	})
}
