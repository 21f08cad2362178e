package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"golang.org/x/sync/errgroup"
)

var errNotConnected = errors.New("deepgram transcription not connected")

// Transcribe opens a live transcription session. It returns once the
// websocket is established; results arrive through the option callbacks.
// Calling Transcribe on an open session replaces it.
func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.NewTranscriptionOptions(opts...)

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	_ = s.Close()

	conn, err := s.connect(ctx, encoding, options.Language)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.cancel = cancel
	s.done = done
	s.connMu.Unlock()

	s.ResetTranscript()

	go func() {
		defer close(done)

		group, groupCtx := errgroup.WithContext(sessionCtx)
		group.Go(func() error {
			defer cancel()
			return s.readAndProcessMessages(groupCtx, conn, options)
		})
		group.Go(func() error {
			s.generateSilence(groupCtx, options.EncodingInfo)
			return nil
		})

		if err := group.Wait(); err != nil && sessionCtx.Err() == nil {
			logger.WarnContext(ctx, "deepgram transcription session lost", "error", err)
			options.ErrorCallback(err)
		} else if err != nil && !errors.Is(err, context.Canceled) {
			logger.DebugContext(ctx, "deepgram transcription session ended", "error", err)
		}
	}()

	return nil
}

func (s *TranscriptionClient) connect(ctx context.Context, encoding *listenEncoding, language string) (*websocket.Conn, error) {
	model, languageParam := listenModel(language)

	listenUrl := url.URL{Scheme: s.scheme, Host: s.host, Path: "/v1/listen"}
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", encoding.Format)
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", model)
	queryParams.Set("language", languageParam)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := s.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errNotConnected
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Close ends the current session, if any, and waits for its workers.
func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	conn, cancel, done := s.conn, s.cancel, s.done
	s.conn, s.cancel, s.done = nil, nil, nil
	s.connMu.Unlock()

	if conn == nil {
		return nil
	}

	cancel()
	var errs error
	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to send close stream message: %w", err))
	}
	if err := conn.Close(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to close websocket: %w", err))
	}
	<-done

	return errs
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) error {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(ctx, msg, options)
		}
	}
}

// processMessage runs on the read loop so deltas keep the order in which
// Deepgram sent them.
func (s *TranscriptionClient) processMessage(ctx context.Context, msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.DebugContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.DebugContext(ctx, "failed to unmarshal deepgram results", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		if delta, ok := s.applyResult(transcript, msgResp.IsFinal); ok {
			options.TranscriptDeltaCallback(delta)
		}
		if msgResp.SpeechFinal {
			s.onSpeechEnded(options)
		}

	case api.TypeUtteranceEndResponse:
		s.transcriptMu.Lock()
		unended := s.unendedSegment
		s.transcriptMu.Unlock()
		if unended {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.transcriptMu.Lock()
		s.unendedSegment = true
		s.transcriptMu.Unlock()
		options.SpeechStartedCallback()
	}
}

// applyResult folds a Deepgram result into the cumulative transcript. It
// reports false when the visible text did not change.
func (s *TranscriptionClient) applyResult(transcript string, isFinal bool) (speechtotext.TranscriptDelta, bool) {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	previous := s.cumulativeText()
	if isFinal {
		if transcript != "" {
			s.finalized = append(s.finalized, transcript)
		}
		s.interim = ""
	} else {
		s.interim = transcript
	}

	text := s.cumulativeText()
	if text == previous && !isFinal {
		return speechtotext.TranscriptDelta{}, false
	}

	s.sequence++
	return speechtotext.TranscriptDelta{Text: text, IsFinal: isFinal, Sequence: s.sequence}, true
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.transcriptMu.Lock()
	s.unendedSegment = false
	s.transcriptMu.Unlock()

	options.SpeechEndedCallback()
}

func (s *TranscriptionClient) sendKeepAlive() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errNotConnected
	}
	return s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"})
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errNotConnected
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

// generateSilence pads gaps in the microphone stream (muted input, stalled
// device) so Deepgram keeps endpointing, then falls back to KeepAlive
// messages after a second of padding.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.BytesPerSecond()*int(chunkDuration/time.Millisecond)/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.sinceLastAudio() > chunkDuration
			switch state {
			case silenceGeneratorStateWaiting:
				if idle {
					state = silenceGeneratorStateSilence
					firstSilenceTime = time.Now()
				}

			case silenceGeneratorStateSilence:
				if !idle {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = time.Now()
					continue
				}
				if err := s.sendSilence(chunk); err != nil {
					logger.DebugContext(ctx, "sending silence failed", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if !idle {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = time.Now()
					if err := s.sendKeepAlive(); err != nil {
						logger.DebugContext(ctx, "sending keep alive failed", "error", err)
					}
				}
			}
		}
	}
}
