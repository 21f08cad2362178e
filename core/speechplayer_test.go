package orchestration

import (
	"context"
	"sync"
	"testing"
	"time"
)

type finishRecorder struct {
	mu      sync.Mutex
	results []bool
}

func (r *finishRecorder) onFinished(stopped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, stopped)
}

func (r *finishRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.results...)
}

func TestPlayerSendsAudioProgressivelyAndFinishesOnMark(t *testing.T) {
	output := &recordingOutput{holdMarks: true}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	recorder := &finishRecorder{}

	stream := newFakeAudioStream([]byte{1, 0, 2, 0}, []byte{3, 0, 4, 0}, []byte{5, 0, 6, 0})
	player.Play(context.Background(), stream, nil, recorder.onFinished)

	waitForCondition(t, time.Second, "end of speech mark", func() bool { return output.pendingMarks() == 1 })
	if got := output.sendCount(); got != 3 {
		t.Fatalf("expected every chunk to be sent on its own, got %d sends", got)
	}
	if got := recorder.snapshot(); len(got) != 0 {
		t.Fatalf("expected playback to wait for the mark, got %v", got)
	}
	if !player.IsPlaying() {
		t.Fatalf("expected player to report playback in progress")
	}

	output.releaseMarks()
	waitForCondition(t, time.Second, "finish", func() bool { return len(recorder.snapshot()) == 1 })
	if got := recorder.snapshot(); got[0] {
		t.Fatalf("expected natural finish, got stopped")
	}
	waitForCondition(t, time.Second, "release", func() bool { return !player.IsPlaying() })
	if !stream.isClosed() {
		t.Fatalf("expected player to close the stream")
	}
	if got := output.clearCount(); got != 0 {
		t.Fatalf("expected no output clear after a natural finish, got %d", got)
	}
}

func TestPlayerStopFinishesOnceAndClearsOutput(t *testing.T) {
	output := &recordingOutput{holdMarks: true}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	recorder := &finishRecorder{}

	player.Play(context.Background(), newFakeAudioStream([]byte{1, 0}), nil, recorder.onFinished)
	waitForCondition(t, time.Second, "end of speech mark", func() bool { return output.pendingMarks() == 1 })

	player.Stop()
	player.Stop()
	output.releaseMarks()

	got := recorder.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected onFinished exactly once, got %d calls", len(got))
	}
	if !got[0] {
		t.Fatalf("expected stopped playback to report stopped")
	}
	if got := output.clearCount(); got != 1 {
		t.Fatalf("expected output to be cleared once, got %d", got)
	}
}

func TestPlayerStopInterruptsBlockedStream(t *testing.T) {
	output := &recordingOutput{}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	recorder := &finishRecorder{}

	stream := newFakeAudioStream([]byte{1, 0})
	stream.hold = make(chan struct{})
	player.Play(context.Background(), stream, nil, recorder.onFinished)
	waitForCondition(t, time.Second, "first chunk", func() bool { return output.sendCount() == 1 })

	player.Stop()

	if got := recorder.snapshot(); len(got) != 1 || !got[0] {
		t.Fatalf("expected a single stopped finish, got %v", got)
	}
	if !stream.isClosed() {
		t.Fatalf("expected stop to close the stream")
	}
}

func TestPlayerPlayStopsPreviousPlayback(t *testing.T) {
	output := &recordingOutput{holdMarks: true}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	first, second := &finishRecorder{}, &finishRecorder{}

	player.Play(context.Background(), newFakeAudioStream([]byte{1, 0}), nil, first.onFinished)
	waitForCondition(t, time.Second, "first mark", func() bool { return output.pendingMarks() == 1 })

	player.Play(context.Background(), newFakeAudioStream([]byte{2, 0}), nil, second.onFinished)

	if got := first.snapshot(); len(got) != 1 || !got[0] {
		t.Fatalf("expected first playback to be stopped, got %v", got)
	}
	waitForCondition(t, time.Second, "second mark", func() bool { return output.pendingMarks() == 2 })
	output.releaseMarks()
	waitForCondition(t, time.Second, "second finish", func() bool { return len(second.snapshot()) == 1 })
	if got := first.snapshot(); len(got) != 1 {
		t.Fatalf("expected late mark of the first playback to be ignored, got %v", got)
	}
}

func TestPlayerContextCancelStopsPlayback(t *testing.T) {
	output := &recordingOutput{holdMarks: true}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	recorder := &finishRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	player.Play(ctx, newFakeAudioStream([]byte{1, 0}), nil, recorder.onFinished)
	waitForCondition(t, time.Second, "mark", func() bool { return output.pendingMarks() == 1 })

	cancel()
	waitForCondition(t, time.Second, "stopped finish", func() bool { return len(recorder.snapshot()) == 1 })
	if !recorder.snapshot()[0] {
		t.Fatalf("expected cancelled playback to report stopped")
	}
}

func TestPlayerWithBlockingMarkOutput(t *testing.T) {
	output := &blockingOutputV0{release: make(chan struct{})}
	player := newStreamingAudioPlayer(newAudioOutput(output), 10*time.Millisecond)
	recorder := &finishRecorder{}

	player.Play(context.Background(), newFakeAudioStream([]byte{1, 0}, []byte{2, 0}), nil, recorder.onFinished)
	waitForCondition(t, time.Second, "await mark", func() bool { return output.awaitCount() == 1 })
	if got := recorder.snapshot(); len(got) != 0 {
		t.Fatalf("expected playback to wait for the output, got %v", got)
	}

	close(output.release)
	waitForCondition(t, time.Second, "finish", func() bool { return len(recorder.snapshot()) == 1 })
	if recorder.snapshot()[0] {
		t.Fatalf("expected natural finish")
	}
}

func TestPlayerNilStreamFinishesImmediately(t *testing.T) {
	player := newStreamingAudioPlayer(newAudioOutput(nil), 10*time.Millisecond)
	recorder := &finishRecorder{}

	player.Play(context.Background(), nil, nil, recorder.onFinished)

	if got := recorder.snapshot(); len(got) != 1 || got[0] {
		t.Fatalf("expected one natural finish, got %v", got)
	}
	if player.IsPlaying() {
		t.Fatalf("expected nothing to be playing")
	}
}

func TestPlayerReportsPlaybackAmplitude(t *testing.T) {
	output := &recordingOutput{holdMarks: true}
	player := newStreamingAudioPlayer(newAudioOutput(output), 5*time.Millisecond)

	var mu sync.Mutex
	var samples []AmplitudeSample
	onAmplitude := func(sample AmplitudeSample) {
		mu.Lock()
		defer mu.Unlock()
		samples = append(samples, sample)
	}

	chunk := make([]byte, 2*2048)
	for i := 0; i < len(chunk); i += 2 {
		chunk[i+1] = 0x40
	}
	player.Play(context.Background(), newFakeAudioStream(chunk), onAmplitude, nil)

	waitForCondition(t, time.Second, "amplitude sample", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(samples) > 0
	})
	player.Stop()

	mu.Lock()
	defer mu.Unlock()
	if samples[0].Source != AmplitudeSourcePlayback {
		t.Fatalf("expected playback samples, got %q", samples[0].Source)
	}
}
