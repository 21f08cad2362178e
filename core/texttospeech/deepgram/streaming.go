package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

func (c *TextToSpeechClient) connect(ctx context.Context, voice deepgramVoice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	scheme := c.scheme
	if scheme == "" {
		scheme = "wss"
	}

	conn, _, err := c.dialer.DialContext(ctx,
		(&url.URL{
			Scheme: scheme,
			Host:   c.host, Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// speechStream buffers binary frames from a single speak session until the
// consumer reads them.
type speechStream struct {
	ws   *websocket.Conn
	wsMu sync.Mutex

	mu           sync.Mutex
	chunks       [][]byte
	err          error
	complete     bool
	closed       bool
	updateSignal chan struct{}

	closeOnce    sync.Once
	encodingInfo audio.EncodingInfo
}

func newSpeechStream(conn *websocket.Conn, encodingInfo audio.EncodingInfo) *speechStream {
	return &speechStream{
		ws:           conn,
		encodingInfo: encodingInfo,
		updateSignal: make(chan struct{}, 1),
	}
}

func (s *speechStream) EncodingInfo() audio.EncodingInfo { return s.encodingInfo }

func (s *speechStream) Read() ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, texttospeech.ErrStreamClosed
		}
		if len(s.chunks) > 0 {
			chunk := s.chunks[0]
			s.chunks = s.chunks[1:]
			s.mu.Unlock()
			return chunk, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		if s.complete {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()
		<-s.updateSignal
	}
}

func (s *speechStream) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasComplete := s.complete
		s.closed = true
		s.chunks = nil
		s.mu.Unlock()
		s.signalUpdate()

		if !wasComplete {
			_ = s.send(clearMsg)
		}
		if err := s.send(closeMsg); err != nil {
			if aggressiveCloseErr := s.ws.Close(); aggressiveCloseErr != nil {
				closeErr = fmt.Errorf("failed to close websocket: %w", errors.Join(err, aggressiveCloseErr))
			}
			return
		}
		_ = s.ws.Close()
	})
	return closeErr
}

func (s *speechStream) speak(text string) error {
	if err := s.send(speakMsg{Type: "Speak", Text: text}); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := s.send(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

func (s *speechStream) processIncomingMessages(ctx context.Context) {
	for {
		msgType, msg, err := s.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.isClosed() {
				logger.WarnContext(ctx, "deepgram speak websocket read failed", "error", err)
				s.finish(fmt.Errorf("deepgram speak stream interrupted: %w", err))
				return
			}
			s.finish(nil)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			s.mu.Lock()
			if !s.closed {
				s.chunks = append(s.chunks, msg)
			}
			s.mu.Unlock()
			s.signalUpdate()

		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.DebugContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				// One Speak per session, so the first flush ends the sentence.
				s.finish(nil)
				_ = s.send(closeMsg)
			case "Warning", "Error":
				logger.WarnContext(ctx, "deepgram speak reported a problem", "type", parsedMsg.Type, "description", parsedMsg.Description)
				if parsedMsg.Type == "Error" {
					s.finish(fmt.Errorf("deepgram error: %s", parsedMsg.Description))
				}
			}
		}
	}
}

func (s *speechStream) finish(err error) {
	s.mu.Lock()
	if !s.complete {
		s.complete = true
		s.err = err
	}
	s.mu.Unlock()
	s.signalUpdate()
}

func (s *speechStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *speechStream) signalUpdate() {
	select {
	case s.updateSignal <- struct{}{}:
	default:
	}
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func (s *speechStream) send(msg any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	if err := s.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
