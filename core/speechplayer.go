package orchestration

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StreamingAudioPlayer plays one synthesis stream at a time, forwarding
// audio to the output as soon as it is decoded.
type StreamingAudioPlayer struct {
	output            *audioOutput
	amplitudeInterval time.Duration

	mu      sync.Mutex
	current *playback
}

func newStreamingAudioPlayer(output *audioOutput, amplitudeInterval time.Duration) *StreamingAudioPlayer {
	if output == nil {
		output = newAudioOutput(nil)
	}
	if amplitudeInterval <= 0 {
		amplitudeInterval = DefaultAmplitudeInterval
	}
	return &StreamingAudioPlayer{output: output, amplitudeInterval: amplitudeInterval}
}

// Play starts playing stream and returns immediately. A playback already in
// progress is stopped first. onFinished is called exactly once, with
// stopped reporting whether playback was cut short. The player owns stream
// from here on and closes it.
//
// Cancelling ctx stops the playback.
func (p *StreamingAudioPlayer) Play(ctx context.Context, stream texttospeech.AudioStream, onAmplitude func(AmplitudeSample), onFinished func(stopped bool)) {
	if onAmplitude == nil {
		onAmplitude = func(AmplitudeSample) {}
	}
	if onFinished == nil {
		onFinished = func(bool) {}
	}

	pb := &playback{
		id:         uuid.NewString(),
		stream:     stream,
		output:     p.output,
		stopped:    make(chan struct{}),
		finished:   make(chan struct{}),
		onFinished: onFinished,
	}

	p.mu.Lock()
	previous := p.current
	p.current = pb
	p.mu.Unlock()

	if previous != nil {
		previous.stop()
	}

	if stream == nil {
		pb.finish(false)
		p.release(pb)
		return
	}

	go func() {
		defer p.release(pb)

		run := panicSafeNamedWorker("speech playback", func(ctx context.Context) error {
			return pb.run(ctx, p.amplitudeInterval, onAmplitude)
		})
		if err := run(ctx); err != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			pb.stop()
		}
	}()
}

// Stop stops the current playback, if any. It is safe to call at any time
// and any number of times. The playback's onFinished runs before Stop
// returns.
func (p *StreamingAudioPlayer) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb != nil {
		pb.stop()
	}
}

// IsPlaying reports whether a playback is in progress.
func (p *StreamingAudioPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *StreamingAudioPlayer) release(pb *playback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == pb {
		p.current = nil
	}
}

type playback struct {
	id     string
	stream texttospeech.AudioStream
	output *audioOutput

	// sendMu orders audio writes against stop clearing the output.
	sendMu   sync.Mutex
	stopOnce sync.Once
	stopped  chan struct{}

	finishOnce sync.Once
	finished   chan struct{}
	onFinished func(stopped bool)
}

func (pb *playback) run(ctx context.Context, amplitudeInterval time.Duration, onAmplitude func(AmplitudeSample)) error {
	ctx, span := tracer.Start(ctx, "play sentence")
	defer span.End()
	defer pb.stream.Close()

	done := withContextCancelHook(ctx, pb.stop)
	defer close(done)

	requestedAt := time.Now()
	encoding := pb.stream.EncodingInfo()
	outputEncoding := pb.output.EncodingInfo()
	span.SetAttributes(
		attribute.Int("playback.source_sample_rate", encoding.SampleRate),
		attribute.Int("playback.output_sample_rate", outputEncoding.SampleRate),
	)

	decoder := audio.NewDecoder(encoding)
	resampler := audio.NewResampler(encoding.SampleRate, outputEncoding.SampleRate)
	frames := newPlaybackFrameSource(outputEncoding.SampleRate)

	samplerCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()
	go sampleAmplitude(samplerCtx, frames, amplitudeInterval, onAmplitude)

	sentAudio := false
	for {
		chunk, err := pb.stream.Read()
		if pb.isStopped() {
			return nil
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				span.RecordError(err)
				logger.WarnContext(ctx, "speech stream ended with an error", "error", err)
			}
			break
		}

		samples := decoder.Decode(chunk)
		if !resampler.Passthrough() {
			samples = resampler.Process(samples)
		}
		if len(samples) == 0 {
			continue
		}

		if !pb.send(ctx, audio.Encode(samples, outputEncoding.Format)) {
			return nil
		}
		frames.Write(samples)

		if !sentAudio {
			sentAudio = true
			firstAudioLatency.Record(ctx, time.Since(requestedAt).Seconds())
		}
	}

	if err := pb.output.Mark(pb.id, func(string) { pb.finish(false) }); err != nil {
		logger.WarnContext(ctx, "failed to mark end of speech", "error", err)
		pb.finish(false)
	}

	select {
	case <-pb.finished:
	case <-pb.stopped:
	}
	return nil
}

func (pb *playback) send(ctx context.Context, chunk []byte) bool {
	pb.sendMu.Lock()
	defer pb.sendMu.Unlock()

	if pb.isStopped() {
		return false
	}
	if err := pb.output.SendAudio(chunk); err != nil {
		logger.DebugContext(ctx, "failed to send audio to output", "error", err)
	}
	return true
}

func (pb *playback) isStopped() bool {
	select {
	case <-pb.stopped:
		return true
	default:
		return false
	}
}

func (pb *playback) isFinished() bool {
	select {
	case <-pb.finished:
		return true
	default:
		return false
	}
}

// stop clears the output only when the playback has not finished already,
// since by then the output may be playing the next sentence.
func (pb *playback) stop() {
	pb.stopOnce.Do(func() {
		pb.sendMu.Lock()
		close(pb.stopped)
		if !pb.isFinished() {
			pb.output.Clear()
		}
		pb.sendMu.Unlock()

		if pb.stream != nil {
			if err := pb.stream.Close(); err != nil {
				logger.Debug("failed to close speech stream", "error", err)
			}
		}
		pb.finish(true)
	})
}

func (pb *playback) finish(stopped bool) {
	pb.finishOnce.Do(func() {
		close(pb.finished)
		pb.onFinished(stopped)
	})
}
