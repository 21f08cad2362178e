package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/ema-tutor/core/audio"
)

const (
	DefaultAmplitudeInterval = 50 * time.Millisecond

	amplitudeBands = 4
	// amplitudeWindow is the number of samples analysed per amplitude sample.
	amplitudeWindow = 512
)

type AmplitudeSource string

const (
	AmplitudeSourceMicrophone AmplitudeSource = "microphone"
	AmplitudeSourcePlayback   AmplitudeSource = "playback"
)

// AmplitudeSample is one visualization frame. Level and Bands are in [0, 1];
// Bands go from low to high frequencies.
type AmplitudeSample struct {
	Source AmplitudeSource
	Level  float64
	Bands  []float64
}

// AudioFrameSource exposes the most recent audio of a live stream for
// visualization.
type AudioFrameSource interface {
	Sample() AmplitudeSample
}

func analyse(source AmplitudeSource, window []int16) AmplitudeSample {
	return AmplitudeSample{
		Source: source,
		Level:  audio.Level(window),
		Bands:  audio.Bands(window, amplitudeBands),
	}
}

// microphoneFrameSource keeps the latest captured samples.
type microphoneFrameSource struct {
	mu      sync.Mutex
	decoder *audio.Decoder
	recent  []int16
}

func newMicrophoneFrameSource(encoding audio.EncodingInfo) *microphoneFrameSource {
	return &microphoneFrameSource{decoder: audio.NewDecoder(encoding)}
}

func (s *microphoneFrameSource) Write(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, s.decoder.Decode(chunk)...)
	if excess := len(s.recent) - amplitudeWindow; excess > 0 {
		s.recent = append(s.recent[:0], s.recent[excess:]...)
	}
}

// Silence drops what was captured so far, so a muted microphone reads as
// flat.
func (s *microphoneFrameSource) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = s.recent[:0]
	s.decoder.Reset()
}

func (s *microphoneFrameSource) Sample() AmplitudeSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return analyse(AmplitudeSourceMicrophone, s.recent)
}

// playbackFrameSource follows the playhead of audio handed to the output.
// The playhead is estimated from wall time since the first samples were
// sent, so samples reflect what is audible rather than what was decoded.
type playbackFrameSource struct {
	mu         sync.Mutex
	sampleRate int
	samples    []int16
	startedAt  time.Time

	now func() time.Time
}

func newPlaybackFrameSource(sampleRate int) *playbackFrameSource {
	return &playbackFrameSource{sampleRate: sampleRate, now: time.Now}
}

func (s *playbackFrameSource) Write(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startedAt.IsZero() {
		s.startedAt = s.now()
	}
	s.samples = append(s.samples, samples...)
}

func (s *playbackFrameSource) Sample() AmplitudeSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startedAt.IsZero() || s.sampleRate <= 0 {
		return analyse(AmplitudeSourcePlayback, nil)
	}

	playhead := int(s.now().Sub(s.startedAt).Seconds() * float64(s.sampleRate))
	playhead = min(playhead, len(s.samples))
	start := max(playhead-amplitudeWindow, 0)
	return analyse(AmplitudeSourcePlayback, s.samples[start:playhead])
}

// sampleAmplitude calls onSample with a fresh sample from source every
// interval until ctx is done.
func sampleAmplitude(ctx context.Context, source AudioFrameSource, interval time.Duration, onSample func(AmplitudeSample)) {
	if interval <= 0 {
		interval = DefaultAmplitudeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onSample(source.Sample())
		}
	}
}
