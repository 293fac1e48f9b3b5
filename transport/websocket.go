// Package transport exposes the voice pipeline over a WebSocket endpoint
// speaking line-oriented JSON frames. Clients send "text" and
// "action_feedback" frames; the server answers with "agent_text" frames and,
// when synthesis is configured, a binary audio message per reply.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/pipeline"
)

// Frame types exchanged with clients.
const (
	FrameText     = "text"
	FrameFeedback = "action_feedback"

	FrameAgentText = "agent_text"
	FrameError     = "error"
)

// ClientFrame is an inbound message. Type selects which fields are read.
type ClientFrame struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	ActionID  string         `json:"action_id,omitempty"`
	Success   bool           `json:"success,omitempty"`
	UserDelta float64        `json:"user_delta,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ServerFrame is an outbound message.
type ServerFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Server serves the WebSocket endpoint.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewServer creates a WebSocket server around an assembled pipeline.
func NewServer(p *pipeline.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline: p,
		logger:   logger.With(zap.String("component", "ws_server")),
	}
}

// ServeHTTP upgrades the request and runs the session loop until the client
// disconnects or the request context ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	sess := newSession(conn, s.pipeline, s.logger)
	sess.run(r.Context())
}

// session is one client connection. Writes go through a mutex because the
// WebSocket protocol does not allow concurrent writers.
type session struct {
	conn     *websocket.Conn
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	mu       sync.Mutex
}

func newSession(conn *websocket.Conn, p *pipeline.Pipeline, logger *zap.Logger) *session {
	return &session{
		conn:     conn,
		pipeline: p,
		logger:   logger,
	}
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close(websocket.StatusNormalClosure, "session closed")

	s.logger.Info("client connected")
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("client disconnected")
			} else if ctx.Err() == nil {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.writeError(ctx, fmt.Sprintf("malformed frame: %v", err))
			continue
		}

		if err := s.dispatch(ctx, frame); err != nil {
			s.writeError(ctx, err.Error())
		}
	}
}

func (s *session) dispatch(ctx context.Context, frame ClientFrame) error {
	switch frame.Type {
	case FrameText:
		return s.handleText(ctx, frame)
	case FrameFeedback:
		return s.handleFeedback(ctx, frame)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func (s *session) handleText(ctx context.Context, frame ClientFrame) error {
	result, err := s.pipeline.ProcessText(ctx, frame.Text)
	if err != nil {
		return fmt.Errorf("process text: %w", err)
	}

	if err := s.write(ctx, ServerFrame{
		Type:      FrameAgentText,
		Text:      result.Reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	if len(result.Audio) > 0 {
		return s.writeBinary(ctx, result.Audio)
	}
	return nil
}

func (s *session) handleFeedback(ctx context.Context, frame ClientFrame) error {
	ev := pipeline.FeedbackEvent{
		ActionID:  frame.ActionID,
		Success:   frame.Success,
		UserDelta: frame.UserDelta,
		Metadata:  frame.Metadata,
	}
	if err := s.pipeline.Handlers().OnFeedback(ctx, ev); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	s.logger.Info("feedback recorded",
		zap.String("action_id", frame.ActionID),
		zap.Bool("success", frame.Success),
		zap.Float64("user_delta", frame.UserDelta))
	return nil
}

func (s *session) write(ctx context.Context, frame ServerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (s *session) writeBinary(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (s *session) writeError(ctx context.Context, msg string) {
	err := s.write(ctx, ServerFrame{
		Type:      FrameError,
		Error:     msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("failed to send error frame", zap.Error(err))
	}
}
