package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMinBargeInChars = 2

var ErrSessionStarted = errors.New("session already started")

// Session is one spoken tutoring dialogue. It owns the microphone, the
// speaker and the turn state; all state changes happen on a single event
// loop fed by the session mailbox.
type Session struct {
	speechToText *speechToText
	generator    TextGenerator
	synthesizer  Synthesizer
	canvas       CanvasCapturer
	inputClient  AudioInput
	output       *audioOutput

	debounce          time.Duration
	bargeIn           bool
	minBargeInChars   int
	amplitudeInterval time.Duration
	languages         []Language
	initialLanguage   string
	instructions      string
	tools             []llms.Tool
	aiEnabled         bool

	onEvent     func(events.Event)
	onStatus    func(Status)
	onAmplitude func(AmplitudeSample)

	emitter     *eventEmitter
	input       *audioInput
	micFrames   *microphoneFrameSource
	accumulator *UtteranceAccumulator
	segmenter   SentenceSegmenter
	player      *StreamingAudioPlayer
	queue       *TTSRequestQueue
	mailbox     *mailbox
	history     conversation

	// aiGate mirrors loop.aiEnabled for the accumulator's finalize check.
	aiGate atomic.Bool
	// state mirrors loop.state for readers outside the loop.
	state        atomic.Int32
	speakerOwned atomic.Bool

	// loop is only touched by the event loop goroutine.
	loop loopState

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

type loopState struct {
	state         TurnState
	statusEmitted bool
	turn          uint64

	reply           *ReplyBuffer
	replyDone       bool
	replyCancel     context.CancelFunc
	replyToolCalls  []llms.ToolCall
	retrievalCalled bool
	// replyTurnID is the history entry of the reply once it is recorded.
	replyTurnID string
	// replyQueued and replySettled count the turn's sentences handed to the
	// queue and those the loop has seen finish or fail.
	replyQueued  int
	replySettled int

	aiEnabled bool
	muted     bool
	visible   bool
	language  Language
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		speechToText:      newSpeechToText(nil),
		output:            newAudioOutput(nil),
		debounce:          DefaultDebounce,
		bargeIn:           true,
		minBargeInChars:   DefaultMinBargeInChars,
		amplitudeInterval: DefaultAmplitudeInterval,
		languages:         DefaultLanguages(),
		aiEnabled:         true,
		mailbox:           newMailbox(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.emitter = newEventEmitter(s.onEvent, s.onStatus, s.onAmplitude)

	s.loop.aiEnabled = s.aiEnabled
	s.loop.visible = true
	s.loop.language = s.languages[0]
	if language, ok := findLanguage(s.languages, s.initialLanguage); ok {
		s.loop.language = language
	}
	s.aiGate.Store(s.aiEnabled)

	s.input = newAudioInput(s.inputClient, s.onMicrophoneAudio, func(err error) {
		s.mailbox.Post(recognitionLostMessage{err: fmt.Errorf("audio input stopped: %w", err)})
	})
	s.micFrames = newMicrophoneFrameSource(s.input.EncodingInfo())

	s.accumulator = NewUtteranceAccumulator(s.debounce,
		WithFinalizeGate(s.aiGate.Load),
		WithUtteranceFinalizedCallback(func(utterance Utterance) {
			s.mailbox.Post(utteranceMessage{utterance: utterance})
		}),
		WithUtteranceSuppressedCallback(func() {
			s.mailbox.Post(suppressedMessage{})
		}),
	)

	s.player = newStreamingAudioPlayer(s.output, s.amplitudeInterval)
	s.queue = newTTSRequestQueue(context.Background(), s.synthesizer, s.player,
		WithSynthesisOptions(s.synthesisOptions),
		WithPlaybackStartedCallback(func(chunk SentenceChunk) {
			s.mailbox.Post(playbackStartedMessage{chunk: chunk})
		}),
		WithPlaybackFinishedCallback(func(chunk SentenceChunk, stopped bool) {
			s.mailbox.Post(playbackFinishedMessage{chunk: chunk, stopped: stopped})
		}),
		WithSkippedCallback(func(chunk SentenceChunk) {
			s.mailbox.Post(playbackSkippedMessage{chunk: chunk})
		}),
		WithDrainedCallback(func() { s.mailbox.Post(queueDrainedMessage{}) }),
		WithPlaybackAmplitudeCallback(s.emitter.Amplitude),
	)

	return s
}

// Start runs the session until ctx is done or Close is called. A session
// can only be started once.
func (s *Session) Start(ctx context.Context) error {
	err := ErrSessionStarted
	s.startOnce.Do(func() {
		err = nil
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})

		go func() {
			defer close(s.done)

			run := panicSafeNamedWorker("session event loop", s.run)
			if err := run(s.ctx); err != nil {
				span := trace.SpanFromContext(s.ctx)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.ErrorContext(s.ctx, "session stopped", "error", err)
			}
		}()
		go sampleAmplitude(s.ctx, s.micFrames, s.amplitudeInterval, s.onMicrophoneSample)
	})
	return err
}

// Close stops the event loop and releases the microphone, recognizer and
// speaker. It is safe to call more than once.
func (s *Session) Close() error {
	var errs error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.mailbox.Close()

		s.accumulator.Reset()
		s.queue.Close()
		s.player.Stop()

		if err := s.speechToText.Stop(context.Background()); err != nil {
			errs = errors.Join(errs, err)
		}
		if err := s.input.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close audio input: %w", err))
		}
	})
	return errs
}

// SetAIEnabled opens or closes the workflow gate. A closed gate holds the
// session idle with the microphone released.
func (s *Session) SetAIEnabled(enabled bool) { s.mailbox.Post(aiEnabledMessage{enabled: enabled}) }

func (s *Session) SetMuted(muted bool) { s.mailbox.Post(mutedMessage{muted: muted}) }

// SetVisible pauses recognition while the host UI is in the background.
func (s *Session) SetVisible(visible bool) { s.mailbox.Post(visibleMessage{visible: visible}) }

// SetLanguage switches recognition, replies and synthesis to the language
// with the given code. Unknown codes are ignored.
func (s *Session) SetLanguage(code string) { s.mailbox.Post(languageMessage{code: code}) }

func (s *Session) State() TurnState { return TurnState(s.state.Load()) }

func (s *Session) Languages() []Language { return append([]Language(nil), s.languages...) }

// History returns the dialogue so far.
func (s *Session) History() []llms.Turn { return s.history.History() }

func (s *Session) run(ctx context.Context) error {
	s.syncGates(ctx)
	for message := range s.mailbox.Messages(ctx) {
		s.handle(ctx, message)
	}
	return nil
}

func (s *Session) onMicrophoneAudio(chunk []byte) {
	s.micFrames.Write(chunk)
	if err := s.speechToText.SendAudio(chunk); err != nil {
		logger.Debug("failed to send audio to recognizer", "error", err)
	}
}

// onMicrophoneSample drops microphone samples while the assistant owns the
// visualization.
func (s *Session) onMicrophoneSample(sample AmplitudeSample) {
	if s.speakerOwned.Load() {
		return
	}
	s.emitter.Amplitude(sample)
}

// synthesisOptions runs inside Enqueue, which is only called from the event
// loop.
func (s *Session) synthesisOptions() []texttospeech.SynthesisOption {
	return []texttospeech.SynthesisOption{
		texttospeech.WithVoice(s.loop.language.Voice),
		texttospeech.WithLanguage(s.loop.language.Code),
		texttospeech.WithEncodingInfo(s.output.EncodingInfo()),
	}
}
