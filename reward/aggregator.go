package reward

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// DefaultStoreTimeout bounds each call to the persistent store. On expiry
// the operation degrades to in-memory recording instead of blocking the
// caller's turn.
const DefaultStoreTimeout = 2 * time.Second

// Aggregator accumulates feedback, preferring a persistent store and
// degrading to an in-memory fallback when it is unavailable. Store
// unavailability is non-fatal: operations log a warning and continue.
//
// Rewards that land in the fallback during an outage stay local for the
// process lifetime and are merged into reads, so fallback and persistent
// counters may transiently diverge across processes. That is the intended
// guarantee: eventual consistency, not strict consistency.
type Aggregator struct {
	persistent Store // nil when running memory-only
	fallback   *MemoryStore
	timeout    time.Duration
	logger     *zap.Logger

	// onRecord, when set, observes each successful write with the backend
	// that served it: "persistent" or "memory".
	onRecord func(backend string)
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRecordHook registers an observer called after each successful write
// with the backend that served it.
func WithRecordHook(hook func(backend string)) AggregatorOption {
	return func(a *Aggregator) {
		a.onRecord = hook
	}
}

// NewAggregator creates an aggregator. persistent may be nil, in which case
// all feedback is held in memory for the process lifetime.
func NewAggregator(persistent Store, logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		persistent: persistent,
		fallback:   NewMemoryStore(logger),
		timeout:    DefaultStoreTimeout,
		logger:     logger.With(zap.String("component", "reward_aggregator")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record adds value to the running total for actionID and increments its
// count. Caller misuse (empty id, NaN/Inf value) fails fast; persistent
// store failures degrade to the in-memory fallback and never surface.
func (a *Aggregator) Record(ctx context.Context, actionID string, value float64) error {
	if actionID == "" {
		return ErrInvalidActionID
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrInvalidValue
	}

	if a.persistent != nil {
		opCtx, cancel := context.WithTimeout(ctx, a.timeout)
		err := a.persistent.Record(opCtx, actionID, value)
		cancel()
		if err == nil {
			a.notify("persistent")
			return nil
		}
		a.logger.Warn("persistent reward store unavailable, falling back to memory",
			zap.String("action_id", actionID),
			zap.Error(err))
	}

	if err := a.fallback.Record(ctx, actionID, value); err != nil {
		return err
	}
	a.notify("memory")
	return nil
}

func (a *Aggregator) notify(backend string) {
	if a.onRecord != nil {
		a.onRecord(backend)
	}
}

// Stats returns the merged accumulation for an action: persistent counters
// plus anything recorded locally during outages.
func (a *Aggregator) Stats(ctx context.Context, actionID string) (Stats, error) {
	if actionID == "" {
		return Stats{}, ErrInvalidActionID
	}

	local, err := a.fallback.Stats(ctx, actionID)
	if err != nil {
		return Stats{}, err
	}

	if a.persistent == nil {
		return local, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	remote, err := a.persistent.Stats(opCtx, actionID)
	cancel()
	if err != nil {
		a.logger.Warn("persistent reward store unavailable, serving memory-only stats",
			zap.String("action_id", actionID),
			zap.Error(err))
		return local, nil
	}

	return remote.Add(local), nil
}

// BestAction returns the candidate with the highest mean reward. Ties break
// to the lexicographically smallest action id, so the result is
// deterministic for a fixed store state. ErrNoObservations is returned when
// no candidate has recorded feedback.
func (a *Aggregator) BestAction(ctx context.Context, candidates []string) (string, error) {
	sorted := make([]string, 0, len(candidates))
	sorted = append(sorted, candidates...)
	sort.Strings(sorted)

	best := ""
	bestMean := math.Inf(-1)
	for _, id := range sorted {
		if id == "" {
			continue
		}
		stats, err := a.Stats(ctx, id)
		if err != nil {
			return "", err
		}
		if stats.Count == 0 {
			continue
		}
		if mean := stats.Mean(); mean > bestMean {
			best = id
			bestMean = mean
		}
	}

	if best == "" {
		return "", ErrNoObservations
	}
	return best, nil
}
