// ABOUTME: Response event union produced by the orchestration backend.
// ABOUTME: Events are resolved into this tagged struct once at the wire boundary.

package orchestrator

import "context"

// Event indicates the type of a response event.
type Event int

const (
	// EventMessage carries a fragment of the agent's answer text.
	EventMessage Event = iota
	// EventReasoning carries a fragment of the agent's visible reasoning.
	EventReasoning
	// EventToolCallStarted signals a tool invocation has begun.
	EventToolCallStarted
	// EventToolCallCompleted signals a tool invocation has finished.
	EventToolCallCompleted
	// EventPlanRequireInput signals the agent needs more information.
	EventPlanRequireInput
	// EventPlanFailed signals the agent's plan could not be executed.
	EventPlanFailed
	// EventComponentGenerated carries a structured UI component payload.
	EventComponentGenerated
	// EventDone signals natural end of the stream.
	EventDone
	// EventError signals the stream failed; no further events follow.
	EventError
)

// ResponseEvent is a single element of the response stream for one query.
// Only the fields relevant to the Event type are populated.
type ResponseEvent struct {
	Event         Event
	Text          string // payload text for message/reasoning/plan/component events
	ToolName      string // for tool call events
	ComponentType string // for component events
	Error         string // for EventError
}

// Terminal reports whether no further events will follow this one.
func (e *ResponseEvent) Terminal() bool {
	return e.Event == EventDone || e.Event == EventError
}

// QueryRequest describes one user query routed to the backend.
type QueryRequest struct {
	Query          string
	AgentName      string // optional explicit target agent
	UserID         string
	ConversationID string
}

// Orchestrator produces a finite, ordered stream of response events for a query.
// The returned channel is closed after the terminal event. Implementations must
// stop producing promptly when ctx is cancelled.
type Orchestrator interface {
	StreamQuery(ctx context.Context, req *QueryRequest) (<-chan *ResponseEvent, error)
}
