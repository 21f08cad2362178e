package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

// speechToText wraps the configured recognizer with start/stop controls and
// optional capabilities.
type speechToText struct {
	client SpeechToText

	running atomic.Bool
}

type speechToTextCallbacks struct {
	onDelta         func(TranscriptDelta)
	onSpeechStarted func()
	onSpeechEnded   func()
	onLost          func(error)
}

func newSpeechToText(client SpeechToText) *speechToText {
	return &speechToText{client: client}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechToText) IsRunning() bool { return s != nil && s.running.Load() }

// Start opens a recognition session. It fails with ErrRecognitionUnavailable
// when no recognizer is configured or the recognizer refuses to start.
func (s *speechToText) Start(ctx context.Context, language string, encodingInfo audio.EncodingInfo, callbacks speechToTextCallbacks) error {
	if !s.isConfigured() {
		return ErrRecognitionUnavailable
	}

	opts := []speechtotext.TranscriptionOption{
		speechtotext.WithTranscriptDeltaCallback(callbacks.onDelta),
		speechtotext.WithSpeechStartedCallback(callbacks.onSpeechStarted),
		speechtotext.WithSpeechEndedCallback(callbacks.onSpeechEnded),
		speechtotext.WithErrorCallback(func(err error) {
			s.running.Store(false)
			if callbacks.onLost != nil {
				callbacks.onLost(err)
			}
		}),
		speechtotext.WithLanguage(language),
		speechtotext.WithEncodingInfo(encodingInfo),
	}

	if err := s.client.Transcribe(ctx, opts...); err != nil {
		return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}
	s.running.Store(true)
	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.IsRunning() {
		return nil
	}
	return s.client.SendAudio(audio)
}

// ResetTranscript makes the recognizer forget what it heard, for
// recognizers that support it. Recognizers that reset on their own at the
// end of an utterance do not need to.
func (s *speechToText) ResetTranscript() {
	if !s.isConfigured() {
		return
	}
	if resetter, ok := s.client.(interface{ ResetTranscript() }); ok {
		resetter.ResetTranscript()
	}
}

// Stop ends the recognition session, if one is running.
func (s *speechToText) Stop(ctx context.Context) error {
	if !s.isConfigured() || !s.running.CompareAndSwap(true, false) {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
