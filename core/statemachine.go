package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	noticeAIDisabled             = "AI is disabled for this assessment."
	noticeDispatchFailed         = "There was an error processing your request. Please try again."
	noticeRecognitionUnavailable = "Speech recognition is unavailable. Please allow microphone access and try again."
	noticeMuted                  = "Microphone is now muted."
	noticeUnmuted                = "Microphone is now unmuted."
	noticeListeningPaused        = "Listening paused."
	noticeListeningResumed       = "Listening resumed."
	noticeLanguageChanged        = "Language changed to %s."
)

const (
	cancelReasonPreempted = "preempted"
	cancelReasonDisabled  = "ai_disabled"
	cancelReasonFailed    = "failed"
	cancelReasonLost      = "recognition_unavailable"
)

type (
	deltaMessage           struct{ delta TranscriptDelta }
	speechStartedMessage   struct{}
	speechEndedMessage     struct{}
	utteranceMessage       struct{ utterance Utterance }
	suppressedMessage      struct{}
	recognitionLostMessage struct{ err error }

	replyTextMessage struct {
		turn uint64
		text string
	}
	replyToolCallMessage struct {
		turn     uint64
		toolCall llms.ToolCall
	}
	replyEndedMessage struct {
		turn uint64
		err  error
	}

	playbackStartedMessage  struct{ chunk SentenceChunk }
	playbackFinishedMessage struct {
		chunk   SentenceChunk
		stopped bool
	}
	playbackSkippedMessage struct{ chunk SentenceChunk }
	queueDrainedMessage    struct{}

	aiEnabledMessage struct{ enabled bool }
	mutedMessage     struct{ muted bool }
	visibleMessage   struct{ visible bool }
	languageMessage  struct{ code string }
)

func (s *Session) handle(ctx context.Context, message any) {
	switch message := message.(type) {
	case deltaMessage:
		s.onDelta(ctx, message.delta)
	case speechStartedMessage:
		s.emitter.Emit(events.NewUserSpeechStarted())
	case speechEndedMessage:
		s.emitter.Emit(events.NewUserSpeechEnded())
	case utteranceMessage:
		s.onUtterance(ctx, message.utterance)
	case suppressedMessage:
		s.emitter.Emit(events.NewUserUtteranceSuppressed())
		s.emitter.Notice(events.NoticeLevelInfo, noticeAIDisabled, false)
	case recognitionLostMessage:
		s.recognitionUnavailable(ctx, message.err)

	case replyTextMessage:
		s.onReplyText(message.turn, message.text)
	case replyToolCallMessage:
		s.onReplyToolCall(message.turn, message.toolCall)
	case replyEndedMessage:
		s.onReplyEnded(ctx, message.turn, message.err)

	case playbackStartedMessage:
		s.onPlaybackStarted(message.chunk)
	case playbackFinishedMessage:
		s.emitter.Emit(events.NewAssistantPlaybackEnded(message.chunk.Ordinal, message.chunk.Text, message.stopped))
		s.onSentenceSettled(message.chunk)
	case playbackSkippedMessage:
		s.onSentenceSettled(message.chunk)
	case queueDrainedMessage:
		s.maybeCompleteTurn()

	case aiEnabledMessage:
		if s.loop.aiEnabled == message.enabled {
			return
		}
		s.loop.aiEnabled = message.enabled
		s.aiGate.Store(message.enabled)
		s.syncGates(ctx)
	case mutedMessage:
		if s.loop.muted == message.muted {
			return
		}
		s.loop.muted = message.muted
		if message.muted {
			s.emitter.Notice(events.NoticeLevelInfo, noticeMuted, false)
		} else {
			s.emitter.Notice(events.NoticeLevelInfo, noticeUnmuted, false)
		}
		s.syncGates(ctx)
	case visibleMessage:
		if s.loop.visible == message.visible {
			return
		}
		s.loop.visible = message.visible
		if message.visible {
			s.emitter.Notice(events.NoticeLevelInfo, noticeListeningResumed, false)
		} else {
			s.emitter.Notice(events.NoticeLevelInfo, noticeListeningPaused, false)
		}
		s.syncGates(ctx)
	case languageMessage:
		s.onLanguage(ctx, message.code)

	default:
		logger.WarnContext(ctx, "unknown session message", "type", fmt.Sprintf("%T", message))
	}
}

// syncGates brings recognition and the turn state in line with the AI
// gate, mute and visibility flags.
func (s *Session) syncGates(ctx context.Context) {
	l := &s.loop
	if !l.aiEnabled {
		s.stopRecognition(ctx)
		s.cancelTurn(cancelReasonDisabled)
		s.setState(TurnStateIdle)
		return
	}

	if l.muted || !l.visible {
		s.stopRecognition(ctx)
	} else if err := s.startRecognition(ctx); err != nil {
		s.recognitionUnavailable(ctx, err)
		return
	}

	if l.state == TurnStateIdle || !l.statusEmitted {
		s.setState(TurnStateListeningForUser)
	}
}

func (s *Session) startRecognition(ctx context.Context) error {
	if !s.speechToText.IsRunning() {
		err := s.speechToText.Start(ctx, s.loop.language.Code, s.input.EncodingInfo(), speechToTextCallbacks{
			onDelta:         func(delta TranscriptDelta) { s.mailbox.Post(deltaMessage{delta: delta}) },
			onSpeechStarted: func() { s.mailbox.Post(speechStartedMessage{}) },
			onSpeechEnded:   func() { s.mailbox.Post(speechEndedMessage{}) },
			onLost:          func(err error) { s.mailbox.Post(recognitionLostMessage{err: err}) },
		})
		if err != nil {
			return err
		}
	}

	if err := s.input.SetLive(ctx, true); err != nil {
		return errors.Join(ErrRecognitionUnavailable, fmt.Errorf("failed to start audio input: %w", err))
	}
	return nil
}

func (s *Session) stopRecognition(ctx context.Context) {
	if err := s.input.SetLive(ctx, false); err != nil {
		logger.WarnContext(ctx, "failed to pause audio input", "error", err)
	}
	if err := s.speechToText.Stop(ctx); err != nil {
		logger.WarnContext(ctx, "failed to stop recognition", "error", err)
	}
	s.accumulator.Reset()
	s.micFrames.Silence()
}

// recognitionUnavailable parks the session until a gate change retries.
func (s *Session) recognitionUnavailable(ctx context.Context, err error) {
	logger.WarnContext(ctx, "speech recognition unavailable", "error", err)

	s.stopRecognition(ctx)
	s.cancelTurn(cancelReasonLost)
	s.setState(TurnStateIdle)
	s.emitter.Notice(events.NoticeLevelError, noticeRecognitionUnavailable, true)
}

func (s *Session) onDelta(ctx context.Context, delta TranscriptDelta) {
	switch s.loop.state {
	case TurnStateIdle:
		return

	case TurnStateSpeaking:
		if !s.bargeIn {
			// Whatever is heard now is most likely the assistant itself.
			s.accumulator.Reset()
			s.speechToText.ResetTranscript()
			return
		}
		s.emitter.Emit(events.NewUserTranscriptUpdated(delta.Text, delta.IsFinal))
		s.accumulator.OnDelta(delta)
		if utf8.RuneCountInString(strings.TrimSpace(delta.Text)) >= s.minBargeInChars {
			s.interrupt(ctx)
		}

	default:
		s.emitter.Emit(events.NewUserTranscriptUpdated(delta.Text, delta.IsFinal))
		s.accumulator.OnDelta(delta)
	}
}

func (s *Session) onUtterance(ctx context.Context, utterance Utterance) {
	if !s.loop.aiEnabled {
		s.emitter.Emit(events.NewUserUtteranceSuppressed())
		s.emitter.Notice(events.NoticeLevelInfo, noticeAIDisabled, false)
		return
	}
	s.speechToText.ResetTranscript()

	switch s.loop.state {
	case TurnStateIdle:
		return
	case TurnStateSpeaking:
		s.interrupt(ctx)
	case TurnStateAwaitingAssistantReply:
		s.cancelTurn(cancelReasonPreempted)
	}

	s.dispatch(ctx, utterance)
}

// interrupt stops the assistant mid-reply and hands the floor back.
func (s *Session) interrupt(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "barge in")
	defer span.End()

	turn := s.loop.turn
	span.SetAttributes(attribute.Int64("turn", int64(turn)))

	s.abandonReply()
	s.queue.Clear()
	s.loop.turn++
	bargeIns.Add(ctx, 1)

	s.setState(TurnStateInterrupted)
	s.emitter.Emit(events.NewTurnInterrupted(turn))
	s.setState(TurnStateListeningForUser)
}

// cancelTurn drops the reply in progress, if there is one, without
// changing state.
func (s *Session) cancelTurn(reason string) {
	if s.loop.reply == nil {
		return
	}

	turn := s.loop.turn
	s.abandonReply()
	s.queue.Clear()
	s.loop.turn++
	s.emitter.Emit(events.NewTurnCancelled(turn, reason))
}

// abandonReply cancels the reply stream and records what was said of the
// reply as interrupted.
func (s *Session) abandonReply() {
	l := &s.loop
	if l.replyCancel != nil {
		l.replyCancel()
		l.replyCancel = nil
	}
	if l.reply == nil {
		return
	}

	if l.replyDone {
		s.history.markInterrupted(l.replyTurnID)
	} else {
		s.history.addAssistantTurn(l.reply.Text(), l.replyToolCalls, true)
	}
	l.reply = nil
}

func (s *Session) dispatch(ctx context.Context, utterance Utterance) {
	ctx, span := tracer.Start(ctx, "dispatch utterance")
	defer span.End()

	l := &s.loop
	l.turn++
	turn := l.turn
	span.SetAttributes(attribute.Int64("turn", int64(turn)))

	history := s.history.History()
	s.history.addUserTurn(utterance)

	l.reply = NewReplyBuffer(turn)
	l.replyDone = false
	l.replyToolCalls = nil
	l.retrievalCalled = false
	l.replyTurnID = ""
	l.replyQueued, l.replySettled = 0, 0

	utterancesFinalized.Add(ctx, 1)
	s.emitter.Emit(events.NewUserUtteranceFinalized(utterance.ID, utterance.Text))
	s.emitter.Emit(events.NewTurnStarted(turn, utterance.ID))
	s.emitter.Emit(events.NewAssistantResponseStarted(turn))
	s.setState(TurnStateAwaitingAssistantReply)

	if s.generator == nil {
		err := errors.Join(ErrDispatchFailed, errors.New("no text generator configured"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.mailbox.Post(replyEndedMessage{turn: turn, err: err})
		return
	}

	replyCtx, cancel := context.WithCancel(ctx)
	l.replyCancel = cancel
	go s.streamReply(replyCtx, turn, utterance.Text, history, l.language.Code)
}

// streamReply relays the generator's reply to the event loop. It runs on
// its own goroutine; everything it reports is tagged with its turn.
func (s *Session) streamReply(ctx context.Context, turn uint64, prompt string, history []llms.Turn, language string) {
	run := panicSafeNamedWorker("reply stream", func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "stream reply")
		defer span.End()

		opts := []llms.StreamingPromptOption{
			llms.WithTurns(history...),
			llms.WithLanguage(language),
			llms.WithSystemPrompt(s.instructions),
			llms.WithTools(s.tools...),
		}
		if s.canvas != nil {
			if image, err := s.canvas.CaptureCanvas(ctx); err != nil {
				logger.WarnContext(ctx, "failed to capture canvas", "error", err)
			} else if image != "" {
				opts = append(opts, llms.WithImageURL(image))
			}
		}

		stream := s.generator.PromptWithStream(ctx, prompt, opts...)
		for chunk, err := range stream.Chunks(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}

			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				s.mailbox.Post(replyTextMessage{turn: turn, text: chunk.Content()})
			case llms.StreamToolCallChunk:
				s.mailbox.Post(replyToolCallMessage{turn: turn, toolCall: chunk.ToolCall()})
			}
		}
		return nil
	})

	err := run(ctx)
	if err != nil {
		err = errors.Join(ErrDispatchFailed, err)
	}
	s.mailbox.Post(replyEndedMessage{turn: turn, err: err})
}

func (s *Session) isCurrentReply(turn uint64) bool {
	return s.loop.reply != nil && turn == s.loop.turn
}

func (s *Session) onReplyText(turn uint64, text string) {
	if !s.isCurrentReply(turn) || text == "" {
		return
	}
	s.loop.reply.Append(text)
	s.emitter.Emit(events.NewAssistantResponseSegment(text))
	s.enqueue(s.segmenter.Segment(s.loop.reply))
}

func (s *Session) onReplyToolCall(turn uint64, toolCall llms.ToolCall) {
	if !s.isCurrentReply(turn) {
		return
	}
	s.loop.replyToolCalls = append(s.loop.replyToolCalls, toolCall)
	if toolCall.Name == retrievalToolName {
		s.loop.retrievalCalled = true
	}

	s.emitter.Emit(events.NewToolCallStarted(toolCall.ID, toolCall.Name, toolCall.Arguments))
	if s.loop.state == TurnStateAwaitingAssistantReply {
		s.emitter.Status(Status{State: TurnStateAwaitingAssistantReply, Label: toolStatusLabel(toolCall.Name)})
	}
}

func (s *Session) onReplyEnded(ctx context.Context, turn uint64, err error) {
	if !s.isCurrentReply(turn) {
		return
	}
	l := &s.loop
	if l.replyCancel != nil {
		l.replyCancel()
		l.replyCancel = nil
	}

	if err != nil {
		if l.reply.Text() == "" {
			logger.WarnContext(ctx, "reply failed", "turn", turn, "error", err)
			s.emitter.Emit(events.NewAssistantResponseFailed(err.Error()))
			s.emitter.Notice(events.NoticeLevelError, noticeDispatchFailed, false)
			s.cancelTurn(cancelReasonFailed)
			s.setState(TurnStateListeningForUser)
			return
		}
		logger.WarnContext(ctx, "reply stream ended early", "turn", turn, "error", err)
	}

	s.enqueue(s.segmenter.Flush(l.reply))
	text := l.reply.Text()
	if strings.TrimSpace(text) == "" && l.retrievalCalled && l.language.RetrievalNotice != "" {
		s.enqueue([]SentenceChunk{l.reply.newChunk(l.language.RetrievalNotice)})
	}

	l.replyDone = true
	l.replyTurnID = s.history.addAssistantTurn(text, l.replyToolCalls, false)
	s.emitter.Emit(events.NewAssistantResponseFinal(text))
	s.maybeCompleteTurn()
}

func (s *Session) enqueue(chunks []SentenceChunk) {
	for _, chunk := range chunks {
		s.emitter.Emit(events.NewAssistantResponseSentence(chunk.Ordinal, chunk.Text))
		s.loop.replyQueued++
		s.queue.Enqueue(chunk)
	}
}

func (s *Session) onPlaybackStarted(chunk SentenceChunk) {
	if chunk.Turn != s.loop.turn {
		return
	}
	s.emitter.Emit(events.NewAssistantPlaybackStarted(chunk.Ordinal, chunk.Text))
	if s.loop.state == TurnStateAwaitingAssistantReply {
		s.setState(TurnStateSpeaking)
	}
}

func (s *Session) onSentenceSettled(chunk SentenceChunk) {
	if chunk.Turn != s.loop.turn {
		return
	}
	s.loop.replySettled++
	s.maybeCompleteTurn()
}

// maybeCompleteTurn ends the turn once the reply stream is over and the loop
// has seen every queued sentence finish or fail. The queue itself may be
// ahead of the mailbox, so its live size is not consulted.
func (s *Session) maybeCompleteTurn() {
	l := &s.loop
	if l.reply == nil || !l.replyDone || l.replySettled < l.replyQueued {
		return
	}
	if l.state != TurnStateAwaitingAssistantReply && l.state != TurnStateSpeaking {
		return
	}

	l.reply = nil
	s.emitter.Emit(events.NewTurnCompleted(l.turn))
	s.setState(TurnStateListeningForUser)
}

func (s *Session) onLanguage(ctx context.Context, code string) {
	language, ok := findLanguage(s.languages, code)
	if !ok {
		logger.WarnContext(ctx, "unsupported language", "language", code)
		return
	}
	if language.Code == s.loop.language.Code {
		return
	}

	s.loop.language = language
	s.emitter.Notice(events.NoticeLevelInfo, fmt.Sprintf(noticeLanguageChanged, language.Name), false)
	if s.speechToText.IsRunning() {
		s.stopRecognition(ctx)
		s.syncGates(ctx)
	}
}

func (s *Session) setState(state TurnState) {
	l := &s.loop
	if l.state == state && l.statusEmitted {
		return
	}
	l.state = state
	l.statusEmitted = true
	s.state.Store(int32(state))
	s.speakerOwned.Store(state == TurnStateSpeaking)
	s.emitter.Status(statusFor(state, s.bargeIn))
}
