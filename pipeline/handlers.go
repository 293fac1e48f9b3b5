package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/convlog"
	"github.com/voicekit/gcpassist/internal/metrics"
	"github.com/voicekit/gcpassist/llm"
	"github.com/voicekit/gcpassist/rag"
	"github.com/voicekit/gcpassist/reward"
)

// Retriever is the knowledge lookup surface the handlers depend on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]rag.RetrievedChunk, error)
}

// HandlersConfig configures event handling.
type HandlersConfig struct {
	// PromptTemplate is rendered with the current context before every turn.
	PromptTemplate string

	// RetrievalTopK is the number of knowledge chunks fetched per transcript.
	RetrievalTopK int

	// RetrievalTimeout bounds the knowledge lookup; on expiry the turn
	// proceeds with the most recently set context instead of blocking.
	RetrievalTimeout time.Duration

	// ContextPreviewLen is the number of context bytes kept in turn logs.
	ContextPreviewLen int
}

// DefaultHandlersConfig returns the default handler configuration.
func DefaultHandlersConfig() HandlersConfig {
	return HandlersConfig{
		RetrievalTopK:     2,
		RetrievalTimeout:  3 * time.Second,
		ContextPreviewLen: 100,
	}
}

// Handlers reacts to pipeline events. It owns no business logic: transcripts
// flow to the context store and LLM service, feedback to the reward
// aggregator, everything to the conversation logger.
type Handlers struct {
	cfg       HandlersConfig
	contexts  *rag.ContextStore
	retriever Retriever // nil disables query-time retrieval
	rewards   *reward.Aggregator
	llm       llm.Service
	conv      *convlog.Logger
	metrics   *metrics.Collector
	state     *ConversationState
	logger    *zap.Logger
}

// NewHandlers wires the event handlers. retriever may be nil, in which case
// the context store is fed only by external updates.
func NewHandlers(
	cfg HandlersConfig,
	contexts *rag.ContextStore,
	retriever Retriever,
	rewards *reward.Aggregator,
	llmSvc llm.Service,
	conv *convlog.Logger,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("gcpassist", logger)
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 2
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 3 * time.Second
	}
	if cfg.ContextPreviewLen <= 0 {
		cfg.ContextPreviewLen = 100
	}
	return &Handlers{
		cfg:       cfg,
		contexts:  contexts,
		retriever: retriever,
		rewards:   rewards,
		llm:       llmSvc,
		conv:      conv,
		metrics:   collector,
		state:     NewConversationState(),
		logger:    logger.With(zap.String("component", "handlers")),
	}
}

// OnTranscript handles one finished user utterance: refresh the context
// from the knowledge index when a retriever is configured, rebuild the
// prompt and push it to the LLM service. The prompt update completes before
// this returns, so the caller's generation for this turn sees it. Retrieval
// failure or timeout is non-fatal: the turn proceeds with the most recently
// built context.
func (h *Handlers) OnTranscript(ctx context.Context, ev TranscriptEvent) {
	if !ev.IsFinal || strings.TrimSpace(ev.Text) == "" {
		return
	}

	h.logger.Info("transcript received",
		zap.String("text", ev.Text),
		zap.Float64("confidence", ev.Confidence))
	h.state.SetUserText(ev.Text)

	if h.retriever != nil {
		rctx, cancel := context.WithTimeout(ctx, h.cfg.RetrievalTimeout)
		chunks, err := h.retriever.Retrieve(rctx, ev.Text, h.cfg.RetrievalTopK)
		cancel()
		if err != nil {
			h.metrics.RecordRetrieval("error", 0)
			h.logger.Warn("knowledge retrieval failed, keeping current context", zap.Error(err))
		} else {
			h.metrics.RecordRetrieval("ok", len(chunks))
			if len(chunks) > 0 {
				h.contexts.Set(rag.FormatContext(chunks))
			}
		}
	}

	prompt := rag.BuildPrompt(h.cfg.PromptTemplate, h.contexts)
	h.llm.SetSystemPrompt(prompt)
}

// OnAgentText handles the agent's reply for the current turn, logging the
// completed exchange.
func (h *Handlers) OnAgentText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	h.logger.Info("agent reply", zap.String("text", text))
	h.state.SetAgentText(text)

	if user, agent, elapsed, ok := h.state.CompleteTurn(); ok {
		h.conv.LogTurn(user, agent, h.contexts.Len(), h.contexts.Preview(h.cfg.ContextPreviewLen), nil)
		h.metrics.RecordTurn(elapsed)
	}
}

// OnFeedback records the reward for one action synchronously, then forwards
// the event to the conversation logger fire-and-forget. Only caller misuse
// (empty action id) surfaces as an error; store outages degrade inside the
// aggregator.
func (h *Handlers) OnFeedback(ctx context.Context, ev FeedbackEvent) error {
	value := RewardValue(ev)

	if err := h.rewards.Record(ctx, ev.ActionID, value); err != nil {
		return err
	}

	h.conv.LogEvent("reward_update", map[string]any{
		"action_id": ev.ActionID,
		"reward":    value,
		"delta":     ev.UserDelta,
		"success":   ev.Success,
	})
	return nil
}

// OnInterruption passes a user interruption through to the logger.
func (h *Handlers) OnInterruption() {
	h.logger.Warn("user interrupted, canceling current output")
	h.conv.LogEvent("interruption", map[string]any{
		"interrupted_text": h.state.CurrentAgentText(),
	})
	h.metrics.RecordInterruption()
}

// OnError passes a pipeline error through to the logger.
func (h *Handlers) OnError(err error) {
	if err == nil {
		return
	}
	h.logger.Error("pipeline error", zap.Error(err))
	h.conv.LogEvent("error", map[string]any{
		"error": err.Error(),
	})
	h.metrics.RecordPipelineError()
}
