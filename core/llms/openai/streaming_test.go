package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-tutor/core/llms"
)

func writeEvent(w http.ResponseWriter, event string, data any) {
	payload, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func collect(t *testing.T, stream llms.Stream) (string, []llms.ToolCall) {
	t.Helper()

	var text strings.Builder
	var toolCalls []llms.ToolCall
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("expected clean stream, got error: %v", err)
		}
		switch typed := chunk.(type) {
		case llms.StreamContentChunk:
			text.WriteString(typed.Content())
		case llms.StreamToolCallChunk:
			toolCalls = append(toolCalls, typed.ToolCall())
		}
	}
	return text.String(), toolCalls
}

func TestChunksYieldsTextDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(w, "response.created", map[string]any{})
		writeEvent(w, "response.output_text.delta", map[string]string{"delta": "Hello. "})
		writeEvent(w, "response.output_text.delta", map[string]string{"delta": "How are you?"})
		writeEvent(w, "response.completed", map[string]any{"response": map[string]any{"usage": map[string]int{"total_tokens": 7}}})
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}

	text, toolCalls := collect(t, client.PromptWithStream(context.Background(), "hi"))
	if text != "Hello. How are you?" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(toolCalls) != 0 {
		t.Fatalf("expected no tool calls, got %+v", toolCalls)
	}
}

func TestChunksRunsLocalToolsAndFollowsUp(t *testing.T) {
	requests := atomic.Int32{}
	var followUp requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			writeEvent(w, "response.output_item.done", map[string]any{"item": map[string]string{
				"type": "function_call", "call_id": "call_1", "name": "getInformation", "arguments": `{"query":"fractions"}`,
			}})
			writeEvent(w, "response.completed", map[string]any{})
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&followUp)
		writeEvent(w, "response.output_text.delta", map[string]string{"delta": "Here is what I found."})
		writeEvent(w, "response.completed", map[string]any{})
	}))
	defer server.Close()

	type lookup struct {
		Query string `json:"query"`
	}
	tool := llms.NewTool("getInformation", "", func(_ context.Context, parameters lookup) (string, error) {
		return "notes about " + parameters.Query, nil
	})

	client, _ := NewClient(WithAPIKey("test"), WithBaseURL(server.URL))
	text, toolCalls := collect(t, client.PromptWithStream(context.Background(), "what is a fraction?", llms.WithTools(tool)))

	if len(toolCalls) != 1 || toolCalls[0].Name != "getInformation" {
		t.Fatalf("expected the tool call to be reported, got %+v", toolCalls)
	}
	if text != "Here is what I found." {
		t.Fatalf("expected follow-up text, got %q", text)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}

	last := followUp.Input[len(followUp.Input)-1]
	if last.Type != messageTypeFunctionCallOutput || last.ToolCallOutput != "notes about fractions" {
		t.Fatalf("expected tool output in follow-up request, got %+v", last)
	}
}

func TestChunksStopsAfterDeclarationOnlyTool(t *testing.T) {
	requests := atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeEvent(w, "response.output_item.done", map[string]any{"item": map[string]string{
			"type": "function_call", "call_id": "call_1", "name": "getInformation",
		}})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test"), WithBaseURL(server.URL))
	text, toolCalls := collect(t, client.PromptWithStream(context.Background(), "hi", llms.WithTools(llms.Tool{Name: "getInformation"})))

	if text != "" || len(toolCalls) != 1 {
		t.Fatalf("expected a single tool call and no text, got %q %+v", text, toolCalls)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected no follow-up request, got %d requests", got)
	}
}

func TestChunksReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test"), WithBaseURL(server.URL))
	var gotErr error
	for _, err := range client.PromptWithStream(context.Background(), "hi").Chunks(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil {
		t.Fatalf("expected error for failed request")
	}
}
