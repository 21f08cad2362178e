package deepgram

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TranscriptionClient streams microphone audio to Deepgram live
// transcription and reports cumulative transcript deltas.
type TranscriptionClient struct {
	apiKey string
	scheme string
	host   string
	dialer *websocket.Dialer

	conn      *websocket.Conn
	connMu    sync.Mutex
	lastMsgTs time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	transcriptMu   sync.Mutex
	finalized      []string
	interim        string
	sequence       int64
	unendedSegment bool
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		scheme: "wss",
		host:   "api.deepgram.com",
		dialer: websocket.DefaultDialer,
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	return client, nil
}

// ResetTranscript forgets everything heard so far. The next delta only
// contains speech recognized after the reset.
func (s *TranscriptionClient) ResetTranscript() {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	s.finalized = nil
	s.interim = ""
}

// cumulativeText must be called with transcriptMu held.
func (s *TranscriptionClient) cumulativeText() string {
	parts := s.finalized
	if s.interim != "" {
		parts = append(parts[:len(parts):len(parts)], s.interim)
	}
	return strings.Join(parts, " ")
}
