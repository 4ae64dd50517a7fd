// ABOUTME: Minimal fake orchestrator for E2E testing — serves scripted SSE streams.
// ABOUTME: Usage: fake-orchestrator [-addr localhost:8089] [-delay 200ms]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

type queryRequest struct {
	Query          string `json:"query"`
	AgentName      string `json:"agent_name"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type eventData struct {
	Text          string `json:"text,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
	ComponentType string `json:"component_type,omitempty"`
	Error         string `json:"error,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8089", "listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "delay between streamed events")
	flag.Parse()

	http.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(w, r, *delay)
	})

	log.Printf("fake orchestrator listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleQuery(w http.ResponseWriter, r *http.Request, delay time.Duration) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	log.Printf("query from %s (agent=%s, conversation=%s): %s",
		req.UserID, req.AgentName, req.ConversationID, req.Query)

	send := func(event string, data eventData) {
		payload, _ := json.Marshal(data)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(delay):
		}
	}

	// A scripted exchange: reasoning, a tool call, then the answer streamed
	// word by word with a markdown flourish to exercise formatting.
	send("reasoning", eventData{Text: "thinking about the question"})
	send("tool_call_started", eventData{ToolName: "echo"})
	send("tool_call_completed", eventData{ToolName: "echo"})

	answer := fmt.Sprintf("You said: **%s**. ", req.Query)
	for _, word := range strings.SplitAfter(answer, " ") {
		if word == "" {
			continue
		}
		send("message", eventData{Text: word})
	}
	send("message", eventData{Text: "Here is a list:\n\n- first\n- second"})
	send("done", eventData{})
}
