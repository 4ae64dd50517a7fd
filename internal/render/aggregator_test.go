// ABOUTME: Tests for the stream aggregator state machine.
// ABOUTME: Covers throttling, tool/content mode switches, final flush, and error reporting.

package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-telegram/internal/orchestrator"
)

// recordingEditor captures every edit issued by the aggregator.
type recordingEditor struct {
	edits []string
	fail  error
}

func (e *recordingEditor) Edit(_ context.Context, text string) error {
	if e.fail != nil {
		return e.fail
	}
	e.edits = append(e.edits, text)
	return nil
}

// fakeClock provides a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAggregator(editor Editor) (*Aggregator, *fakeClock) {
	agg := NewAggregator(editor, nil)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	agg.now = clock.now
	return agg, clock
}

func runEvents(t *testing.T, agg *Aggregator, events ...*orchestrator.ResponseEvent) error {
	t.Helper()
	ch := make(chan *orchestrator.ResponseEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return agg.Run(context.Background(), ch)
}

func TestAggregator_EndToEndScenario(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventToolCallStarted, ToolName: "search"},
		&orchestrator.ResponseEvent{Event: orchestrator.EventToolCallCompleted, ToolName: "search"},
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "Paris is "},
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "the capital."},
	)
	require.NoError(t, err)

	// Tool edits render immediately; the mode switch resets the throttle so
	// the first content fragment also renders; the final flush completes it.
	require.Equal(t, []string{
		"🛠 Tool search started.",
		"🛠 Tool search started.\n🛠 Tool search completed.",
		"Paris is",
		"Paris is the capital.",
	}, editor.edits)
	assert.Equal(t, "Paris is the capital.", agg.FinalText())
}

func TestAggregator_ToolTransitionDiscardsContent(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "old answer"},
		&orchestrator.ResponseEvent{Event: orchestrator.EventToolCallStarted, ToolName: "lookup"},
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "new answer"},
	)
	require.NoError(t, err)

	// The buffer must equal exactly the new content, not old+new.
	assert.Equal(t, "new answer", agg.FinalText())
	assert.Equal(t, "new answer", editor.edits[len(editor.edits)-1])
	assert.NotContains(t, editor.edits[len(editor.edits)-1], "old answer")
}

func TestAggregator_Throttling(t *testing.T) {
	editor := &recordingEditor{}
	agg, clock := newTestAggregator(editor)
	agg.lastEdit = clock.now()
	ctx := context.Background()

	// 10 fragments within 100ms of simulated time.
	for i := 0; i < 10; i++ {
		require.NoError(t, agg.handle(ctx, &orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "tok"}))
		clock.advance(10 * time.Millisecond)
	}
	preFlush := len(editor.edits)
	require.NoError(t, agg.finish(ctx))

	// At most the initial forced edit plus one throttled edit before
	// exhaustion, then exactly one final flush because the buffer grew.
	assert.LessOrEqual(t, preFlush, 2)
	assert.Len(t, editor.edits, preFlush+1)
	assert.Equal(t, agg.FinalText(), editor.edits[len(editor.edits)-1])
}

func TestAggregator_ThrottleAllowsPeriodicEdits(t *testing.T) {
	editor := &recordingEditor{}
	agg, clock := newTestAggregator(editor)
	agg.lastEdit = clock.now()
	ctx := context.Background()

	require.NoError(t, agg.handle(ctx, &orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "first"}))
	clock.advance(700 * time.Millisecond)
	require.NoError(t, agg.handle(ctx, &orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "second"}))
	require.NoError(t, agg.finish(ctx))

	assert.Equal(t, []string{"first", "first second"}, editor.edits)
}

func TestAggregator_EmptyStreamFallback(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	require.NoError(t, runEvents(t, agg))

	require.Equal(t, []string{"⚠️ No content received, please try again later."}, editor.edits)
	assert.Empty(t, agg.FinalText())
}

func TestAggregator_ToolOnlyStreamSkipsFallback(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventToolCallStarted, ToolName: "fetch"},
	)
	require.NoError(t, err)

	// Tool status stays on screen; no fallback edit replaces it.
	require.Equal(t, []string{"🛠 Tool fetch started."}, editor.edits)
}

func TestAggregator_NoRedundantFinalEdit(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "complete answer."},
	)
	require.NoError(t, err)

	// The forced edit already sent the full buffer; no duplicate final edit.
	assert.Equal(t, []string{"complete answer."}, editor.edits)
}

func TestAggregator_StreamErrorReported(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "partial"},
		&orchestrator.ResponseEvent{Event: orchestrator.EventError, Error: "backend unavailable"},
	)
	require.NoError(t, err)

	last := editor.edits[len(editor.edits)-1]
	assert.Equal(t, "❌ Failed to process the request: backend unavailable", last)
}

func TestAggregator_EditFailurePropagates(t *testing.T) {
	boom := errors.New("edit rejected")
	editor := &recordingEditor{fail: boom}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage, Text: "text"},
	)
	assert.ErrorIs(t, err, boom)
}

func TestAggregator_CancellationStopsPromptly(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan *orchestrator.ResponseEvent)
	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx, ch) }()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregator_IgnoredEventsProduceNoEdits(t *testing.T) {
	editor := &recordingEditor{}
	agg, _ := newTestAggregator(editor)

	err := runEvents(t, agg,
		&orchestrator.ResponseEvent{Event: orchestrator.EventMessage},
		&orchestrator.ResponseEvent{Event: orchestrator.Event(99), Text: "unknown"},
	)
	require.NoError(t, err)

	// Nothing renderable arrived, so only the fallback fires.
	assert.Equal(t, []string{"⚠️ No content received, please try again later."}, editor.edits)
}
