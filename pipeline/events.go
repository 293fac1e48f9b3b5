// Package pipeline wires transcript and feedback events to the context
// store, reward aggregator, LLM service and conversation logger. Handlers
// contain dispatch only; the state logic lives in the rag and reward
// packages.
package pipeline

import "time"

// TranscriptEvent is a finished speech-to-text result for one utterance.
type TranscriptEvent struct {
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// FeedbackEvent reports the outcome of an agent action, scored by how close
// the user's actual interaction was to the suggested one.
type FeedbackEvent struct {
	ActionID string `json:"action_id"`
	Success  bool   `json:"success"`
	// UserDelta is the distance in pixels between the suggested and the
	// actual interaction point.
	UserDelta float64        `json:"user_delta"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MaxUserDelta is the distance threshold below which a successful action
// earns a positive reward.
const MaxUserDelta = 50.0

// RewardValue maps a feedback event to a scalar reward: +1 for a success
// close to the target, -1 otherwise.
func RewardValue(ev FeedbackEvent) float64 {
	if ev.Success && ev.UserDelta < MaxUserDelta {
		return 1.0
	}
	return -1.0
}
