package orchestration

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

// fakeAudioStream yields its chunks and then io.EOF. A stream created with
// hold waits on release before reporting EOF.
type fakeAudioStream struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
	hold   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newFakeAudioStream(chunks ...[]byte) *fakeAudioStream {
	return &fakeAudioStream{chunks: chunks, done: make(chan struct{})}
}

func (s *fakeAudioStream) Read() ([]byte, error) {
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
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-s.done:
			return nil, texttospeech.ErrStreamClosed
		}
	}
	return nil, io.EOF
}

func (s *fakeAudioStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeAudioStream) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (s *fakeAudioStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeSynthesizer returns one short stream per sentence. Sentences listed
// in delays are held back for the given time and those in failures fail.
type fakeSynthesizer struct {
	mu       sync.Mutex
	delays   map[string]time.Duration
	failures map[string]bool
	texts    []string
	options  []texttospeech.SynthesisOptions
	streams  []*fakeAudioStream
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (texttospeech.AudioStream, error) {
	s.mu.Lock()
	delay := s.delays[text]
	fail := s.failures[text]
	s.texts = append(s.texts, text)
	s.options = append(s.options, texttospeech.NewSynthesisOptions(texttospeech.SynthesisOptions{}, opts...))
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("synthesis refused")
	}

	stream := newFakeAudioStream([]byte(text[:min(len(text), 2)] + "  "))
	s.mu.Lock()
	s.streams = append(s.streams, stream)
	s.mu.Unlock()
	return stream, nil
}

func (s *fakeSynthesizer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeSynthesizer) lastOptions() texttospeech.SynthesisOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.options) == 0 {
		return texttospeech.SynthesisOptions{}
	}
	return s.options[len(s.options)-1]
}

// recordingPlayer records what the queue hands it. Playback finishes only
// when the test calls finish.
type recordingPlayer struct {
	mu        sync.Mutex
	played    []texttospeech.AudioStream
	finishers []func(bool)
	stops     int
}

func (p *recordingPlayer) Play(_ context.Context, stream texttospeech.AudioStream, _ func(AmplitudeSample), onFinished func(stopped bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, stream)
	p.finishers = append(p.finishers, onFinished)
}

func (p *recordingPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *recordingPlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func (p *recordingPlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *recordingPlayer) finish(index int, stopped bool) {
	p.mu.Lock()
	finish := p.finishers[index]
	p.mu.Unlock()
	finish(stopped)
}

// recordingOutput is a mark-capable output. Marks are confirmed right away
// unless holdMarks is set, in which case releaseMarks confirms them.
type recordingOutput struct {
	mu        sync.Mutex
	encoding  audio.EncodingInfo
	sent      [][]byte
	clears    int
	holdMarks bool
	marks     []func()
}

func (o *recordingOutput) EncodingInfo() audio.EncodingInfo { return o.encoding }

func (o *recordingOutput) SendAudio(audio []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, append([]byte(nil), audio...))
	return nil
}

func (o *recordingOutput) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
}

func (o *recordingOutput) Mark(mark string, callback func(string)) error {
	o.mu.Lock()
	if o.holdMarks {
		o.marks = append(o.marks, func() { callback(mark) })
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	callback(mark)
	return nil
}

func (o *recordingOutput) releaseMarks() {
	o.mu.Lock()
	marks := o.marks
	o.marks = nil
	o.mu.Unlock()
	for _, confirm := range marks {
		confirm()
	}
}

func (o *recordingOutput) sendCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *recordingOutput) clearCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clears
}

func (o *recordingOutput) pendingMarks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.marks)
}

// blockingOutputV0 only knows how to block until everything sent is played.
type blockingOutputV0 struct {
	mu      sync.Mutex
	release chan struct{}
	awaits  int
	sends   int
}

func (o *blockingOutputV0) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (o *blockingOutputV0) SendAudio([]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sends++
	return nil
}

func (o *blockingOutputV0) ClearBuffer() {}

func (o *blockingOutputV0) AwaitMark() error {
	o.mu.Lock()
	o.awaits++
	release := o.release
	o.mu.Unlock()
	if release != nil {
		<-release
	}
	return nil
}

func (o *blockingOutputV0) awaitCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awaits
}

// fakeRecognizer captures the transcription callbacks so tests can speak.
type fakeRecognizer struct {
	mu         sync.Mutex
	options    speechtotext.TranscriptionOptions
	sessions   int
	closes     int
	resets     int
	sequence   int64
	startError error
}

func (r *fakeRecognizer) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startError != nil {
		return r.startError
	}
	r.options = speechtotext.NewTranscriptionOptions(opts...)
	r.sessions++
	return nil
}

func (r *fakeRecognizer) SendAudio([]byte) error { return nil }

func (r *fakeRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

func (r *fakeRecognizer) ResetTranscript() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *fakeRecognizer) say(text string) {
	r.mu.Lock()
	r.sequence++
	delta := TranscriptDelta{Text: text, Sequence: r.sequence}
	callback := r.options.TranscriptDeltaCallback
	r.mu.Unlock()
	callback(delta)
}

func (r *fakeRecognizer) lose(err error) {
	r.mu.Lock()
	callback := r.options.ErrorCallback
	r.mu.Unlock()
	callback(err)
}

func (r *fakeRecognizer) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions
}

func (r *fakeRecognizer) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *fakeRecognizer) language() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.options.Language
}

// scriptedGenerator replies with a fixed list of chunks per prompt. With
// hold set, the stream waits on release before ending.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string][]llms.StreamChunk
	failure error
	hold    chan struct{}
	prompts []string
	options []llms.StreamingPromptOptions
}

func (g *scriptedGenerator) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.options = append(g.options, options)
	return scriptedStream{chunks: g.replies[prompt], failure: g.failure, hold: g.hold}
}

func (g *scriptedGenerator) promptCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) lastOptions() llms.StreamingPromptOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.options[len(g.options)-1]
}

type scriptedStream struct {
	chunks  []llms.StreamChunk
	failure error
	hold    chan struct{}
}

func (s scriptedStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.hold != nil {
			select {
			case <-s.hold:
			case <-ctx.Done():
				return
			}
		}
		if s.failure != nil {
			yield(nil, s.failure)
		}
	}
}

type textChunk string

func (textChunk) FinishReason() *string { return nil }
func (c textChunk) Content() string     { return string(c) }

type toolCallChunk llms.ToolCall

func (toolCallChunk) FinishReason() *string     { return nil }
func (c toolCallChunk) ToolCall() llms.ToolCall { return llms.ToolCall(c) }

func textChunks(parts ...string) []llms.StreamChunk {
	chunks := make([]llms.StreamChunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, textChunk(part))
	}
	return chunks
}

func (r *fakeRecognizer) setStartError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startError = err
}

func (r *fakeRecognizer) resetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}
