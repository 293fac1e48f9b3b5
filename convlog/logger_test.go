package convlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func readLines(t *testing.T, path string) []map[string]any {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestLogger_LogTurn(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	l.LogTurn("what is GKE?", "GKE is managed Kubernetes.", 42, "GKE info...", map[string]any{
		"model": "gpt-4o-mini",
	})

	records := readLines(t, filepath.Join(dir, "conversation_2026-03-14.jsonl"))
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, l.SessionID(), rec["session_id"])
	assert.Equal(t, "what is GKE?", rec["user"])
	assert.Equal(t, "GKE is managed Kubernetes.", rec["agent"])
	assert.Equal(t, float64(42), rec["rag_context_length"])
	assert.Equal(t, "GKE info...", rec["rag_context_preview"])
	assert.Equal(t, "gpt-4o-mini", rec["metadata"].(map[string]any)["model"])
}

func TestLogger_LogEvent(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	l.LogEvent("interruption", map[string]any{"interrupted_text": "as I was say"})
	l.LogEvent("error", map[string]any{"error": "pipeline stalled"})

	records := readLines(t, filepath.Join(dir, "events_2026-03-14.jsonl"))
	require.Len(t, records, 2)
	assert.Equal(t, "interruption", records[0]["event_type"])
	assert.Equal(t, "error", records[1]["event_type"])
}

func TestLogger_NilMetadata(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	l.LogTurn("u", "a", 0, "", nil)
	l.LogEvent("participant_joined", nil)

	turns := readLines(t, filepath.Join(dir, "conversation_2026-03-14.jsonl"))
	require.Len(t, turns, 1)
	assert.NotNil(t, turns[0]["metadata"])
}

func TestLogger_AppendOnly(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.LogTurn("user", "agent", 0, "", nil)
	}

	records := readLines(t, filepath.Join(dir, "conversation_2026-03-14.jsonl"))
	assert.Len(t, records, 5)
}

func TestLogger_WriteFailureDoesNotPropagate(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	// Remove the directory so every append fails.
	require.NoError(t, os.RemoveAll(dir))

	assert.NotPanics(t, func() {
		l.LogTurn("u", "a", 0, "", nil)
		l.LogEvent("error", nil)
	})
}

func TestLogger_ConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil, WithClock(fixedClock()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.LogEvent("tick", nil)
			}
		}()
	}
	wg.Wait()

	records := readLines(t, filepath.Join(dir, "events_2026-03-14.jsonl"))
	assert.Len(t, records, 200)
}

func TestLogger_DistinctSessions(t *testing.T) {
	dir := t.TempDir()

	a, err := New(dir, nil)
	require.NoError(t, err)
	b, err := New(dir, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID(), b.SessionID())
}
