package orchestration

import (
	"testing"
	"time"

	"github.com/koscakluka/ema-tutor/core/audio"
)

func loudChunk(samples int) []byte {
	chunk := make([]byte, 2*samples)
	for i := 0; i < len(chunk); i += 4 {
		chunk[i+1] = 0x40
		if i+3 < len(chunk) {
			chunk[i+3] = 0xC0
		}
	}
	return chunk
}

func TestMicrophoneFrameSourceSilenceFlattensLevel(t *testing.T) {
	source := newMicrophoneFrameSource(audio.GetDefaultEncodingInfo())
	source.Write(loudChunk(1024))

	sample := source.Sample()
	if sample.Source != AmplitudeSourceMicrophone {
		t.Fatalf("expected microphone source, got %q", sample.Source)
	}
	if sample.Level <= 0 {
		t.Fatalf("expected a positive level for loud audio, got %v", sample.Level)
	}
	if len(sample.Bands) != amplitudeBands {
		t.Fatalf("expected %d bands, got %d", amplitudeBands, len(sample.Bands))
	}

	source.Silence()
	if got := source.Sample().Level; got != 0 {
		t.Fatalf("expected silenced source to read flat, got %v", got)
	}
}

func TestPlaybackFrameSourceFollowsWallClockPlayhead(t *testing.T) {
	now := time.Unix(0, 0)
	source := newPlaybackFrameSource(16000)
	source.now = func() time.Time { return now }

	if got := source.Sample().Level; got != 0 {
		t.Fatalf("expected flat level before playback, got %v", got)
	}

	silence := make([]int16, 16000)
	loud := make([]int16, 16000)
	for i := range loud {
		loud[i] = 16000
		if i%2 == 1 {
			loud[i] = -16000
		}
	}
	source.Write(silence)
	source.Write(loud)

	now = now.Add(500 * time.Millisecond)
	if got := source.Sample().Level; got != 0 {
		t.Fatalf("expected silent first half second, got %v", got)
	}

	now = now.Add(time.Second)
	if got := source.Sample().Level; got <= 0 {
		t.Fatalf("expected audible level once the playhead reaches loud audio, got %v", got)
	}
}
