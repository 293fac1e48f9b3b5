// Package convlog appends structured conversation records to line-delimited
// JSON files. It is a pure side-effect sink: write failures are logged and
// swallowed, never propagated to the caller.
package convlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Turn is one completed user/agent exchange.
type Turn struct {
	SessionID      string         `json:"session_id"`
	Timestamp      time.Time      `json:"timestamp"`
	User           string         `json:"user"`
	Agent          string         `json:"agent"`
	ContextLength  int            `json:"rag_context_length"`
	ContextPreview string         `json:"rag_context_preview"`
	Metadata       map[string]any `json:"metadata"`
}

// Event is a system event record (error, interruption, feedback, ...).
type Event struct {
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Logger appends turns and events to daily JSONL files in a directory.
// Safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	dir       string
	sessionID string
	now       func() time.Time
	logger    *zap.Logger
}

// Option customizes a Logger.
type Option func(*Logger)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New creates a conversation logger writing under dir, creating it if
// needed. Each Logger instance gets a fresh session id.
func New(dir string, logger *zap.Logger, opts ...Option) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	l := &Logger{
		dir:       dir,
		sessionID: uuid.New().String(),
		now:       time.Now,
		logger:    logger.With(zap.String("component", "conversation_logger")),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.logger.Info("conversation logger initialized", zap.String("session_id", l.sessionID))
	return l, nil
}

// SessionID returns the id stamped on every record from this logger.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogTurn appends one conversation turn. Failures are swallowed.
func (l *Logger) LogTurn(userText, agentText string, contextLen int, contextPreview string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	turn := Turn{
		SessionID:      l.sessionID,
		Timestamp:      l.now().UTC(),
		User:           userText,
		Agent:          agentText,
		ContextLength:  contextLen,
		ContextPreview: contextPreview,
		Metadata:       metadata,
	}
	l.append("conversation", turn)
}

// LogEvent appends one system event. Failures are swallowed.
func (l *Logger) LogEvent(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	event := Event{
		SessionID: l.sessionID,
		Timestamp: l.now().UTC(),
		EventType: eventType,
		Data:      data,
	}
	l.append("events", event)
}

// append serializes a record and writes it to the daily file for kind.
func (l *Logger) append(kind string, record any) {
	data, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("failed to marshal log record", zap.String("kind", kind), zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, kind+"_"+l.now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Warn("failed to open log file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Warn("failed to append log record", zap.String("path", path), zap.Error(err))
	}
}
