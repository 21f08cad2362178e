package orchestration

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/koscakluka/ema-tutor/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speechPlayer interface {
	Play(ctx context.Context, stream texttospeech.AudioStream, onAmplitude func(AmplitudeSample), onFinished func(stopped bool))
	Stop()
}

type jobStatus int

const (
	jobPending jobStatus = iota
	jobSynthesizing
	jobReady
	jobFailed
)

type ttsJob struct {
	chunk  SentenceChunk
	status jobStatus
	stream texttospeech.AudioStream
	// started is set once the stream has been handed to the player.
	started bool
}

// TTSRequestQueue synthesizes sentences concurrently and hands them to the
// player strictly in ordinal order, one at a time.
type TTSRequestQueue struct {
	synthesizer      Synthesizer
	player           speechPlayer
	synthesisOptions func() []texttospeech.SynthesisOption

	onPlaybackStarted  func(SentenceChunk)
	onPlaybackFinished func(chunk SentenceChunk, stopped bool)
	onSkipped          func(SentenceChunk)
	onDrained          func()
	onAmplitude        func(AmplitudeSample)

	// handoffMu serializes starting playback against Clear so a cleared job
	// never reaches the player.
	handoffMu sync.Mutex

	mu         sync.Mutex
	baseCtx    context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	jobs       []*ttsJob
	playing    *ttsJob
}

type QueueOption func(*TTSRequestQueue)

// WithSynthesisOptions sets a provider of per-request synthesis options. It
// is called at enqueue time, so voice and language changes apply to the
// next sentence.
func WithSynthesisOptions(options func() []texttospeech.SynthesisOption) QueueOption {
	return func(q *TTSRequestQueue) { q.synthesisOptions = options }
}

func WithPlaybackStartedCallback(callback func(SentenceChunk)) QueueOption {
	return func(q *TTSRequestQueue) { q.onPlaybackStarted = callback }
}

func WithPlaybackFinishedCallback(callback func(chunk SentenceChunk, stopped bool)) QueueOption {
	return func(q *TTSRequestQueue) { q.onPlaybackFinished = callback }
}

// WithSkippedCallback is called for every sentence dropped because its
// synthesis failed. Sentences removed by Clear are not reported.
func WithSkippedCallback(callback func(SentenceChunk)) QueueOption {
	return func(q *TTSRequestQueue) { q.onSkipped = callback }
}

// WithDrainedCallback is called whenever the queue runs out of work, after
// a sentence finished playing or failed to synthesize.
func WithDrainedCallback(callback func()) QueueOption {
	return func(q *TTSRequestQueue) { q.onDrained = callback }
}

func WithPlaybackAmplitudeCallback(callback func(AmplitudeSample)) QueueOption {
	return func(q *TTSRequestQueue) { q.onAmplitude = callback }
}

func newTTSRequestQueue(ctx context.Context, synthesizer Synthesizer, player speechPlayer, opts ...QueueOption) *TTSRequestQueue {
	q := &TTSRequestQueue{
		synthesizer:        synthesizer,
		player:             player,
		synthesisOptions:   func() []texttospeech.SynthesisOption { return nil },
		onPlaybackStarted:  func(SentenceChunk) {},
		onPlaybackFinished: func(SentenceChunk, bool) {},
		onSkipped:          func(SentenceChunk) {},
		onDrained:          func() {},
		onAmplitude:        func(AmplitudeSample) {},
		baseCtx:            ctx,
	}
	q.ctx, q.cancel = context.WithCancel(ctx)

	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue starts synthesizing chunk right away. It plays after every
// lower-ordinal chunk already in the queue.
func (q *TTSRequestQueue) Enqueue(chunk SentenceChunk) {
	q.mu.Lock()
	job := &ttsJob{chunk: chunk, status: jobPending}
	position := sort.Search(len(q.jobs), func(i int) bool { return q.jobs[i].chunk.Ordinal > chunk.Ordinal })
	q.jobs = append(q.jobs, nil)
	copy(q.jobs[position+1:], q.jobs[position:])
	q.jobs[position] = job

	job.status = jobSynthesizing
	ctx, generation := q.ctx, q.generation
	opts := q.synthesisOptions()
	q.mu.Unlock()

	go func() {
		var stream texttospeech.AudioStream
		err := panicSafeNamedWorker("sentence synthesis", func(ctx context.Context) error {
			var err error
			stream, err = q.synthesize(ctx, chunk, opts)
			return err
		})(ctx)
		q.resolve(ctx, generation, job, stream, err)
	}()
}

func (q *TTSRequestQueue) synthesize(ctx context.Context, chunk SentenceChunk, opts []texttospeech.SynthesisOption) (texttospeech.AudioStream, error) {
	ctx, span := tracer.Start(ctx, "synthesize sentence")
	defer span.End()
	span.SetAttributes(
		attribute.Int("sentence.ordinal", chunk.Ordinal),
		attribute.Int64("sentence.turn", int64(chunk.Turn)),
		attribute.Int("sentence.length", len(chunk.Text)),
	)

	if q.synthesizer == nil {
		return nil, errors.New("no synthesizer configured")
	}

	stream, err := q.synthesizer.Synthesize(ctx, chunk.Text, opts...)
	if err != nil {
		if ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	return stream, nil
}

func (q *TTSRequestQueue) resolve(ctx context.Context, generation uint64, job *ttsJob, stream texttospeech.AudioStream, err error) {
	q.mu.Lock()
	if generation != q.generation {
		q.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}

	if err != nil {
		job.status = jobFailed
		synthesisFailures.Add(ctx, 1)
		logger.WarnContext(ctx, "skipping sentence",
			"ordinal", job.chunk.Ordinal,
			"error", errors.Join(ErrSynthesisFailed, err))
	} else {
		job.status = jobReady
		job.stream = stream
	}

	next, drained := q.advanceLocked()
	q.mu.Unlock()

	if err != nil {
		q.onSkipped(job.chunk)
	}
	if next != nil {
		q.start(next)
	} else if drained && err != nil {
		q.onDrained()
	}
}

// advanceLocked drops failed jobs from the head and picks the next job to
// play. drained reports that there is nothing left at all.
func (q *TTSRequestQueue) advanceLocked() (next *ttsJob, drained bool) {
	if q.playing != nil {
		return nil, false
	}

	for len(q.jobs) > 0 && q.jobs[0].status == jobFailed {
		q.jobs = q.jobs[1:]
	}
	if len(q.jobs) == 0 {
		return nil, true
	}
	if q.jobs[0].status != jobReady {
		return nil, false
	}

	next = q.jobs[0]
	q.jobs = q.jobs[1:]
	q.playing = next
	return next, false
}

func (q *TTSRequestQueue) start(job *ttsJob) {
	q.handoffMu.Lock()
	defer q.handoffMu.Unlock()

	q.mu.Lock()
	if q.playing != job {
		q.mu.Unlock()
		return
	}
	job.started = true
	ctx := q.ctx
	q.mu.Unlock()

	q.onPlaybackStarted(job.chunk)
	q.player.Play(ctx, job.stream, q.onAmplitude, func(stopped bool) { q.finished(job, stopped) })
}

// finished ignores anything but the job currently playing, so a repeated or
// late callback cannot advance the queue twice.
func (q *TTSRequestQueue) finished(job *ttsJob, stopped bool) {
	q.mu.Lock()
	if q.playing != job {
		q.mu.Unlock()
		return
	}
	q.playing = nil
	next, drained := q.advanceLocked()
	q.mu.Unlock()

	q.onPlaybackFinished(job.chunk, stopped)
	if next != nil {
		// The player may report completion from inside Play, while start
		// still holds handoffMu.
		go q.start(next)
	} else if drained {
		q.onDrained()
	}
}

// Clear discards every job and stops the one playing. Synthesis results
// that arrive afterwards are closed and dropped.
func (q *TTSRequestQueue) Clear() {
	q.handoffMu.Lock()
	defer q.handoffMu.Unlock()

	q.mu.Lock()
	q.generation++
	q.cancel()
	q.ctx, q.cancel = context.WithCancel(q.baseCtx)

	var unplayed []texttospeech.AudioStream
	for _, job := range q.jobs {
		if job.stream != nil {
			unplayed = append(unplayed, job.stream)
		}
	}
	playing := q.playing
	if playing != nil && !playing.started && playing.stream != nil {
		unplayed = append(unplayed, playing.stream)
	}
	q.jobs = nil
	q.playing = nil
	q.mu.Unlock()

	for _, stream := range unplayed {
		_ = stream.Close()
	}
	if playing != nil && playing.started {
		q.player.Stop()
	}
}

// Size counts the sentences that have not finished playing, including the
// one playing now.
func (q *TTSRequestQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := len(q.jobs)
	if q.playing != nil {
		size++
	}
	return size
}

// Close clears the queue and cancels all synthesis for good.
func (q *TTSRequestQueue) Close() {
	q.Clear()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancel()
}
