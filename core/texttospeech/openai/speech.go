package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	speechURL = "https://api.openai.com/v1/audio/speech"

	ModelMiniTTS = "gpt-4o-mini-tts"
	ModelTTS1    = "tts-1"

	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
	VoiceEcho    = "echo"

	// pcm responses are always 24kHz mono signed 16-bit little-endian.
	pcmSampleRate = 24000
	readChunkSize = 4096
)

var ErrNoAPIKey = errors.New("openai api key not found")

// APIError is a non-2xx answer from the speech endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai speech: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openai speech: API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type TextToSpeechClient struct {
	apiKey     string
	model      string
	voice      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration

	client *http.Client
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) { c.model = model }
}

func WithDefaultVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.baseURL = baseURL }
}

func WithRetries(maxRetries int, delay time.Duration) ClientOption {
	return func(c *TextToSpeechClient) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) { c.client = client }
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		model:      ModelMiniTTS,
		voice:      VoiceNova,
		baseURL:    speechURL,
		maxRetries: 2,
		retryDelay: 250 * time.Millisecond,
		client:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
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

type requestBody struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
	Instructions   string `json:"instructions,omitempty"`
}

// Synthesize requests raw PCM for text and returns as soon as the response
// headers arrive; the body is then read progressively through the stream.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (texttospeech.AudioStream, error) {
	ctx, span := tracer.Start(ctx, "openai synthesize")
	defer span.End()

	options := texttospeech.NewSynthesisOptions(texttospeech.SynthesisOptions{Voice: c.voice}, opts...)
	if !isOpenAIVoice(options.Voice) {
		options.Voice = c.voice
	}
	span.SetAttributes(
		attribute.String("tts.voice", options.Voice),
		attribute.Int("tts.characters", len(text)),
	)

	body, err := json.Marshal(requestBody{
		Model:          c.model,
		Voice:          options.Voice,
		Input:          text,
		ResponseFormat: "pcm",
		Instructions:   languageInstructions(options.Language),
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	resp, err := c.doWithRetry(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &speechStream{
		body:         resp.Body,
		encodingInfo: audio.EncodingInfo{SampleRate: pcmSampleRate, Format: audio.EncodingLinear16},
	}, nil
}

func (c *TextToSpeechClient) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("error creating HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("error sending request: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := parseError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		logger.WarnContext(ctx, "retrying speech request", "attempt", attempt+1, "status", resp.StatusCode)
		lastErr = apiErr
	}

	return nil, lastErr
}

func parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Code = errResp.Error.Code
	}
	return apiErr
}

func isOpenAIVoice(voice string) bool {
	switch voice {
	case VoiceAlloy, VoiceNova, VoiceShimmer, VoiceEcho, "ash", "ballad", "coral", "fable", "onyx", "sage", "verse":
		return true
	}
	return false
}

func languageInstructions(language string) string {
	switch language {
	case "", "en-US":
		return ""
	case "id-ID":
		return "Speak in Indonesian with natural Indonesian pronunciation."
	}
	return "Speak in the language with BCP-47 code " + language + "."
}

type speechStream struct {
	mu     sync.Mutex
	body   io.ReadCloser
	closed bool
	done   bool

	encodingInfo audio.EncodingInfo
}

func (s *speechStream) EncodingInfo() audio.EncodingInfo { return s.encodingInfo }

func (s *speechStream) Read() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, texttospeech.ErrStreamClosed
	}
	if s.done {
		s.mu.Unlock()
		return nil, io.EOF
	}
	body := s.body
	s.mu.Unlock()

	buf := make([]byte, readChunkSize)
	n, err := body.Read(buf)
	if n > 0 {
		if errors.Is(err, io.EOF) {
			s.markDone()
		}
		return buf[:n], nil
	}
	if errors.Is(err, io.EOF) {
		s.markDone()
		return nil, io.EOF
	}
	if err != nil {
		if s.isClosed() {
			return nil, texttospeech.ErrStreamClosed
		}
		return nil, fmt.Errorf("error reading speech response: %w", err)
	}
	return nil, nil
}

func (s *speechStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *speechStream) markDone() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

func (s *speechStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
