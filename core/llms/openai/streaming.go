package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koscakluka/ema-tutor/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	responsesURL = "https://api.openai.com/v1/responses"

	eventPrefix = "event:"
	chunkPrefix = "data:"

	defaultModel = "gpt-4.1-mini"
)

var ErrNoAPIKey = errors.New("openai api key not found")

type Client struct {
	apiKey        string
	model         string
	baseURL       string
	maxToolRounds int

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithMaxToolRounds bounds how many times a reply may go back to the model
// with local tool results before the stream ends.
func WithMaxToolRounds(rounds int) ClientOption {
	return func(c *Client) { c.maxToolRounds = rounds }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:         defaultModel,
		baseURL:       responsesURL,
		maxToolRounds: 3,
		httpClient:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return client, nil
}

func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	instructions := options.Instructions
	if language := languageInstruction(options.Language); language != "" {
		instructions = strings.TrimSpace(instructions + "\n\n" + language)
	}

	messages := toOpenAIMessages(instructions, options.Turns)
	messages = append(messages, userPrompt(prompt, options.ImageURL))

	return &Stream{
		client:   c,
		tools:    options.Tools,
		messages: messages,
	}
}

type Stream struct {
	client *Client

	tools    []llms.Tool
	messages []openAIMessage
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream response")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		messages := s.messages
		for round := 0; ; round++ {
			toolCalls, ok := s.streamRound(ctx, messages, yield)
			if !ok || len(toolCalls) == 0 || round >= s.client.maxToolRounds {
				return
			}

			followUp := false
			for _, toolCall := range toolCalls {
				tool, found := s.findTool(toolCall.Name)
				if !found || !tool.CanExecute() {
					continue
				}

				response, err := tool.Execute(ctx, toolCall.Arguments)
				if err != nil {
					span.RecordError(err)
					response = "Error: " + err.Error()
				}
				toolCall.Response = response
				messages = append(messages, toolCallMessages([]llms.ToolCall{toolCall})...)
				followUp = true
			}
			if !followUp {
				return
			}
		}
	}
}

func (s *Stream) findTool(name string) (llms.Tool, bool) {
	for _, tool := range s.tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return llms.Tool{}, false
}

// streamRound performs one Responses request and yields its chunks. It
// returns the function calls the model made and false if the stream must
// stop (consumer quit or the request failed).
func (s *Stream) streamRound(ctx context.Context, messages []openAIMessage, yield func(llms.StreamChunk, error) bool) ([]llms.ToolCall, bool) {
	reqBody := requestBody{
		Model:  s.client.model,
		Input:  messages,
		Stream: true,
	}
	if len(s.tools) > 0 {
		reqBody.Tools = toOpenAITools(s.tools)
		reqBody.ToolChoice = "auto"
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		yield(nil, fmt.Errorf("error marshalling JSON: %w", err))
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		yield(nil, fmt.Errorf("error creating HTTP request: %w", err))
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		yield(nil, fmt.Errorf("error sending request: %w", err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		logger.WarnContext(ctx, "responses request failed", "status", resp.StatusCode)
		yield(nil, err)
		return nil, false
	}

	var toolCalls []llms.ToolCall
	usage := llms.Usage{}
	lapTime := time.Now()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, eventPrefix) {
			continue
		}

		event := strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))
		if !scanner.Scan() {
			break
		}
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

		switch streamingEventType(event) {
		case streamingEventResponseCreated, streamingEventResponseQueued:
			lapTime = time.Now()

		case streamingEventResponseInProgress:
			usage.QueueTime = time.Since(lapTime).Seconds()
			lapTime = time.Now()

		case streamingEventResponseOutputTextDelta:
			var responseBody streamingBodyResponseTextDelta
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
					return nil, false
				}
				continue
			}
			if !yield(StreamContentChunk{content: responseBody.Delta}, nil) {
				return nil, false
			}

		case streamingEventResponseOutputItemDone:
			var item streamingBodyOutputItemDone[streamingBodyOutputItemDoneItemFunctionCall]
			if err := json.Unmarshal([]byte(chunk), &item); err != nil {
				if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
					return nil, false
				}
				continue
			}
			if item.Item.Type != "function_call" {
				continue
			}

			toolCall := llms.ToolCall{
				ID:        item.Item.CallID,
				Name:      item.Item.Name,
				Arguments: item.Item.Arguments,
			}
			toolCalls = append(toolCalls, toolCall)
			if !yield(StreamToolCallChunk{toolCall: toolCall}, nil) {
				return nil, false
			}

		case streamingEventResponseCompleted:
			usage.TotalTime = time.Since(lapTime).Seconds()

			var responseBody streamingBodyResponseCompleted
			if err := json.Unmarshal([]byte(chunk), &responseBody); err == nil && responseBody.Response.Usage != nil {
				usage.InputTokens = responseBody.Response.Usage.InputTokens
				usage.OutputTokens = responseBody.Response.Usage.OutputTokens
				usage.TotalTokens = responseBody.Response.Usage.TotalTokens
			}
			if !yield(StreamUsageChunk{usage: usage}, nil) {
				return nil, false
			}

		case streamingEventResponseFailed, streamingEventError:
			err := fmt.Errorf("response stream failed: %s", chunk)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return nil, false
		}
	}

	if err := scanner.Err(); err != nil {
		err = fmt.Errorf("error reading streamed response: %w", err)
		if ctx.Err() == nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		yield(nil, err)
		return nil, false
	}

	return toolCalls, true
}

type requestBody struct {
	Model      string          `json:"model"`
	Input      []openAIMessage `json:"input"`
	Stream     bool            `json:"stream"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	Tools      []openAITool    `json:"tools,omitempty"`
}

type streamingEventType string

const (
	streamingEventResponseOutputTextDelta streamingEventType = "response.output_text.delta"
	streamingEventResponseOutputItemDone  streamingEventType = "response.output_item.done"
	streamingEventResponseCreated         streamingEventType = "response.created"
	streamingEventResponseQueued          streamingEventType = "response.queued"
	streamingEventResponseInProgress      streamingEventType = "response.in_progress"
	streamingEventResponseCompleted       streamingEventType = "response.completed"
	streamingEventResponseFailed          streamingEventType = "response.failed"
	streamingEventError                   streamingEventType = "error"
)

type streamingBodyResponseTextDelta struct {
	Delta string `json:"delta"`
}

type streamingBodyOutputItemDone[T any] struct {
	Item T `json:"item"`
}

type streamingBodyOutputItemDoneItemFunctionCall struct {
	Type      string `json:"type"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
}

// streamingBodyResponseCompleted is emitted when the model response is complete
type streamingBodyResponseCompleted struct {
	Response struct {
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	} `json:"response"`
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string { return s.finishReason }
func (s StreamContentChunk) Content() string       { return s.content }

type StreamToolCallChunk struct {
	finishReason *string
	toolCall     llms.ToolCall
}

func (s StreamToolCallChunk) FinishReason() *string   { return s.finishReason }
func (s StreamToolCallChunk) ToolCall() llms.ToolCall { return s.toolCall }

type StreamUsageChunk struct {
	finishReason *string
	usage        llms.Usage
}

func (s StreamUsageChunk) FinishReason() *string { return s.finishReason }
func (s StreamUsageChunk) Usage() llms.Usage     { return s.usage }
