// ABOUTME: Classifies backend response events into renderable fragments.
// ABOUTME: Tool status lines get their own channel; unknown events are dropped.

package render

import (
	"github.com/2389/coven-telegram/internal/orchestrator"
)

// Kind categorizes a classified fragment.
type Kind int

const (
	// KindNone means the event produced nothing renderable.
	KindNone Kind = iota
	// KindContent is ordinary answer text appended to the growing buffer.
	KindContent
	// KindTool is a tool status line rendered as a replaceable block.
	KindTool
)

// Fragment is the renderable result of classifying one response event.
type Fragment struct {
	Kind Kind
	Text string
}

// ToolLinePrefix marks tool status lines. Normalize strips lines carrying it
// from content fragments so tool status never leaks into the answer text.
const ToolLinePrefix = "🛠 Tool"

// Classify maps a response event to a renderable fragment.
// Events without a usable payload, and unrecognized event types, yield
// KindNone so a single unmapped event can never fail the stream.
func Classify(ev *orchestrator.ResponseEvent) Fragment {
	switch ev.Event {
	case orchestrator.EventMessage:
		if ev.Text == "" {
			return Fragment{Kind: KindNone}
		}
		return Fragment{Kind: KindContent, Text: ev.Text}

	case orchestrator.EventReasoning:
		if ev.Text == "" {
			return Fragment{Kind: KindNone}
		}
		return Fragment{Kind: KindContent, Text: "💡 Reasoning: " + ev.Text}

	case orchestrator.EventPlanRequireInput:
		if ev.Text != "" {
			return Fragment{Kind: KindContent, Text: "📝 The agent needs more info:\n" + ev.Text}
		}
		return Fragment{Kind: KindContent, Text: "📝 The agent needs more information."}

	case orchestrator.EventPlanFailed:
		if ev.Text != "" {
			return Fragment{Kind: KindContent, Text: "⚠️ Plan failed:\n" + ev.Text}
		}
		return Fragment{Kind: KindContent, Text: "⚠️ Plan failed."}

	case orchestrator.EventDone:
		return Fragment{Kind: KindContent, Text: "✅ Done."}

	case orchestrator.EventToolCallStarted:
		return Fragment{Kind: KindTool, Text: toolStatus(ev.ToolName, "started")}

	case orchestrator.EventToolCallCompleted:
		return Fragment{Kind: KindTool, Text: toolStatus(ev.ToolName, "completed")}

	case orchestrator.EventComponentGenerated:
		kind := ev.ComponentType
		if kind == "" {
			kind = "unknown"
		}
		if ev.Text != "" {
			return Fragment{Kind: KindContent, Text: "📦 Component (" + kind + "):\n" + ev.Text}
		}
		return Fragment{Kind: KindContent, Text: "📦 Component generated (" + kind + ")."}
	}

	return Fragment{Kind: KindNone}
}

func toolStatus(name, phase string) string {
	if name != "" {
		return ToolLinePrefix + " " + name + " " + phase + "."
	}
	return ToolLinePrefix + " call " + phase + "."
}
