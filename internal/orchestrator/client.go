// ABOUTME: HTTP client for the orchestration backend's streaming query API.
// ABOUTME: Sends queries and decodes SSE frames into ResponseEvent values.

package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// wireEvent names the SSE event types emitted by the backend.
type wireEvent string

const (
	wireMessage            wireEvent = "message"
	wireReasoning          wireEvent = "reasoning"
	wireToolCallStarted    wireEvent = "tool_call_started"
	wireToolCallCompleted  wireEvent = "tool_call_completed"
	wirePlanRequireInput   wireEvent = "plan_require_user_input"
	wirePlanFailed         wireEvent = "plan_failed"
	wireComponentGenerated wireEvent = "component_generated"
	wireDone               wireEvent = "done"
	wireError              wireEvent = "error"
)

// eventData is the JSON payload carried in SSE data lines.
type eventData struct {
	Text          string `json:"text,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
	ComponentType string `json:"component_type,omitempty"`
	Error         string `json:"error,omitempty"`
}

// queryBody is the request body for POST /api/query.
type queryBody struct {
	Query          string `json:"query"`
	AgentName      string `json:"agent_name,omitempty"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// Client communicates with the orchestration backend over HTTP+SSE.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With("component", "orchestrator"),
	}
}

// StreamQuery sends the query and returns a channel of decoded response events.
// The channel is closed after the terminal event, on stream end, or when ctx is
// cancelled. Transport and decode failures surface as an EventError element.
func (c *Client) StreamQuery(ctx context.Context, req *QueryRequest) (<-chan *ResponseEvent, error) {
	body, err := json.Marshal(queryBody{
		Query:          req.Query,
		AgentName:      req.AgentName,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending query: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}

	out := make(chan *ResponseEvent, 16)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// errorFromResponse extracts an error from a non-200 response.
func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var data eventData
	if json.Unmarshal(body, &data) == nil && data.Error != "" {
		return fmt.Errorf("backend error (%d): %s", resp.StatusCode, data.Error)
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
}

// readStream decodes SSE frames from body until EOF, a terminal event, or
// cancellation, then closes out.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, out chan<- *ResponseEvent) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType wireEvent
	var dataLines []string

	emit := func(ev *ResponseEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()

		// Blank line terminates a frame.
		if line == "" {
			if eventType != "" {
				ev := decodeEvent(eventType, strings.Join(dataLines, "\n"))
				if ev != nil {
					if !emit(ev) || ev.Terminal() {
						return
					}
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if after, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = wireEvent(strings.TrimSpace(after))
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(after, " "))
			continue
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Error("response stream read failed", "error", err)
		emit(&ResponseEvent{Event: EventError, Error: err.Error()})
	}
}

// decodeEvent maps one SSE frame onto the ResponseEvent union.
// Unknown wire event types yield nil and are dropped by the caller.
func decodeEvent(eventType wireEvent, data string) *ResponseEvent {
	var payload eventData
	if data != "" {
		// Malformed data is tolerated; the event keeps empty fields.
		_ = json.Unmarshal([]byte(data), &payload)
	}

	ev := &ResponseEvent{
		Text:          payload.Text,
		ToolName:      payload.ToolName,
		ComponentType: payload.ComponentType,
		Error:         payload.Error,
	}

	switch eventType {
	case wireMessage:
		ev.Event = EventMessage
	case wireReasoning:
		ev.Event = EventReasoning
	case wireToolCallStarted:
		ev.Event = EventToolCallStarted
	case wireToolCallCompleted:
		ev.Event = EventToolCallCompleted
	case wirePlanRequireInput:
		ev.Event = EventPlanRequireInput
	case wirePlanFailed:
		ev.Event = EventPlanFailed
	case wireComponentGenerated:
		ev.Event = EventComponentGenerated
	case wireDone:
		ev.Event = EventDone
	case wireError:
		ev.Event = EventError
	default:
		return nil
	}
	return ev
}
