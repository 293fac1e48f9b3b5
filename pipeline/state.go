package pipeline

import (
	"sync"
	"time"
)

// ConversationState tracks the current turn for logging purposes. The LLM
// conversation history itself is managed by the hosted service; this only
// pairs user and agent text so complete turns can be logged.
type ConversationState struct {
	mu        sync.Mutex
	userText  string
	agentText string
	startedAt time.Time
}

// NewConversationState creates an empty turn tracker.
func NewConversationState() *ConversationState {
	return &ConversationState{}
}

// SetUserText records the user's utterance and marks the turn start.
func (s *ConversationState) SetUserText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userText = text
	s.startedAt = time.Now()
}

// SetAgentText records the agent's reply.
func (s *ConversationState) SetAgentText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentText = text
}

// CompleteTurn returns the paired texts and turn duration if both sides are
// present, clearing the state for the next turn. ok is false when the turn
// is incomplete, in which case nothing is cleared.
func (s *ConversationState) CompleteTurn() (user, agent string, elapsed time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userText == "" || s.agentText == "" {
		return "", "", 0, false
	}

	user, agent = s.userText, s.agentText
	elapsed = time.Since(s.startedAt)
	s.userText, s.agentText = "", ""
	return user, agent, elapsed, true
}

// CurrentAgentText returns the in-flight agent text, for interruption logs.
func (s *ConversationState) CurrentAgentText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentText
}
