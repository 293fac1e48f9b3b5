// Package reward tracks scalar feedback per action id for behavioral
// learning. Each action accumulates a running sum and observation count;
// the mean ranks candidate actions.
//
// Supported backends:
// - Memory: process-lifetime only, used standalone and as the fallback
// - Redis: survives restarts and is shared across processes
package reward

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrNoObservations is returned by BestAction when no candidate has
	// any recorded feedback.
	ErrNoObservations = errors.New("no candidate has recorded observations")

	// ErrInvalidActionID is returned when an action id is empty.
	ErrInvalidActionID = errors.New("action id is empty")

	// ErrInvalidValue is returned when a reward value is NaN or infinite.
	ErrInvalidValue = errors.New("reward value must be finite")
)

// Stats is the accumulated feedback for one action.
type Stats struct {
	ActionID string  `json:"action_id"`
	Sum      float64 `json:"sum"`
	Count    int64   `json:"count"`
}

// Mean returns sum/count, or 0 when there are no observations. Callers
// ranking actions must check Count before trusting the zero value.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Add merges another accumulation into this one.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		ActionID: s.ActionID,
		Sum:      s.Sum + other.Sum,
		Count:    s.Count + other.Count,
	}
}

// Store persists reward accumulations. Implementations must apply Record
// atomically so concurrent updates do not lose writes.
type Store interface {
	// Record adds value to the action's sum and increments its count.
	Record(ctx context.Context, actionID string, value float64) error

	// Stats returns the accumulation for an action. An action with no
	// feedback yields zero-valued Stats, not an error.
	Stats(ctx context.Context, actionID string) (Stats, error)
}
