// ABOUTME: Stateful per-request driver turning response events into message edits.
// ABOUTME: Throttles content edits, renders tool status urgently, guarantees a final flush.

package render

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/coven-telegram/internal/orchestrator"
)

const (
	// editThrottle is the minimum interval between throttled content edits.
	editThrottle = 600 * time.Millisecond

	// maxToolMessages bounds the tool status block; oldest lines drop first.
	maxToolMessages = 64

	// fallbackText is sent when a stream ends with no content and no tool activity.
	fallbackText = "⚠️ No content received, please try again later."

	// errorPrefix opens the single user-visible edit for a failed stream.
	errorPrefix = "❌ Failed to process the request: "
)

// Editor applies an outbound edit to the placeholder message.
// Implementations own formatting fallback and payload truncation.
type Editor interface {
	Edit(ctx context.Context, text string) error
}

// mode tracks which rendering channel currently owns the outbound message.
type mode int

const (
	modeStreaming mode = iota
	modeToolActive
	modeContentActive
	modeDone
)

// Aggregator consumes one response event stream and drives an Editor.
// It is single-use: create one per query.
type Aggregator struct {
	editor Editor
	logger *slog.Logger
	now    func() time.Time

	mode         mode
	buffer       string
	toolMessages []string
	lastEdit     time.Time
	lastSent     string
}

// NewAggregator creates an aggregator for one stream.
func NewAggregator(editor Editor, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		editor: editor,
		logger: logger.With("component", "aggregator"),
		now:    time.Now,
		mode:   modeStreaming,
	}
}

// Run consumes events until the channel closes, a terminal error event
// arrives, or ctx is cancelled. A failed stream is reported to the user as a
// single error edit; edits already issued are left as-is on cancellation.
func (a *Aggregator) Run(ctx context.Context, events <-chan *orchestrator.ResponseEvent) error {
	a.lastEdit = a.now()

	for {
		select {
		case <-ctx.Done():
			a.mode = modeDone
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return a.finish(ctx)
			}
			if ev.Event == orchestrator.EventError {
				a.mode = modeDone
				a.logger.Error("response stream failed", "error", ev.Error)
				if err := a.send(ctx, errorPrefix+ev.Error); err != nil {
					a.logger.Error("failed to report stream error", "error", err)
				}
				return nil
			}
			if err := a.handle(ctx, ev); err != nil {
				a.mode = modeDone
				return err
			}
		}
	}
}

// FinalText returns the accumulated answer after the stream ended.
// Empty when the stream produced no content.
func (a *Aggregator) FinalText() string {
	return strings.TrimSpace(a.buffer)
}

func (a *Aggregator) handle(ctx context.Context, ev *orchestrator.ResponseEvent) error {
	frag := Classify(ev)

	switch frag.Kind {
	case KindNone:
		return nil

	case KindTool:
		if len(a.toolMessages) >= maxToolMessages {
			a.toolMessages = a.toolMessages[1:]
		}
		a.toolMessages = append(a.toolMessages, strings.TrimSpace(frag.Text))
		a.mode = modeToolActive
		// Tool status is urgent: render immediately, bypassing the throttle.
		return a.send(ctx, strings.Join(a.toolMessages, "\n"))

	case KindContent:
		if a.mode == modeToolActive {
			// Mode switch: content fully replaces the tool status block.
			a.toolMessages = a.toolMessages[:0]
			a.buffer = ""
			a.lastSent = ""
			a.lastEdit = time.Time{}
		}
		a.mode = modeContentActive

		normalized := Normalize(frag.Text)
		if normalized == "" {
			return nil
		}
		a.buffer = Merge(a.buffer, normalized)

		now := a.now()
		if now.Sub(a.lastEdit) >= editThrottle || a.lastSent == "" {
			if a.buffer != a.lastSent {
				if err := a.send(ctx, a.buffer); err != nil {
					return err
				}
			}
			a.lastEdit = now
		}
	}
	return nil
}

// finish issues the guaranteed final flush.
func (a *Aggregator) finish(ctx context.Context) error {
	a.mode = modeDone

	final := strings.TrimSpace(a.buffer)
	if final != "" {
		if final != a.lastSent {
			return a.send(ctx, final)
		}
		return nil
	}
	if len(a.toolMessages) == 0 && a.lastSent != fallbackText {
		return a.send(ctx, fallbackText)
	}
	return nil
}

func (a *Aggregator) send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := a.editor.Edit(ctx, text); err != nil {
		return err
	}
	a.lastSent = text
	return nil
}
