package deepgram

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

func resultMessage(transcript string, isFinal, speechFinal bool) []byte {
	final := "false"
	if isFinal {
		final = "true"
	}
	speech := "false"
	if speechFinal {
		speech = "true"
	}
	return []byte(`{"type":"Results","is_final":` + final + `,"speech_final":` + speech +
		`,"channel":{"alternatives":[{"transcript":"` + transcript + `"}]}}`)
}

func TestProcessMessageEmitsCumulativeDeltas(t *testing.T) {
	client := &TranscriptionClient{}
	var deltas []speechtotext.TranscriptDelta
	options := speechtotext.NewTranscriptionOptions(
		speechtotext.WithTranscriptDeltaCallback(func(delta speechtotext.TranscriptDelta) {
			deltas = append(deltas, delta)
		}),
	)

	ctx := context.Background()
	client.processMessage(ctx, resultMessage("what is", false, false), options)
	client.processMessage(ctx, resultMessage("what is a", true, false), options)
	client.processMessage(ctx, resultMessage("fraction", false, false), options)
	client.processMessage(ctx, resultMessage("fraction", false, false), options)

	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas (duplicate interim skipped), got %d: %+v", len(deltas), deltas)
	}
	if deltas[0].Text != "what is" || deltas[0].IsFinal {
		t.Fatalf("unexpected first delta: %+v", deltas[0])
	}
	if deltas[1].Text != "what is a" || !deltas[1].IsFinal {
		t.Fatalf("unexpected second delta: %+v", deltas[1])
	}
	if deltas[2].Text != "what is a fraction" || deltas[2].IsFinal {
		t.Fatalf("unexpected third delta: %+v", deltas[2])
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i].Sequence <= deltas[i-1].Sequence {
			t.Fatalf("expected increasing sequence numbers, got %d after %d", deltas[i].Sequence, deltas[i-1].Sequence)
		}
	}
}

func TestResetTranscriptStartsFreshText(t *testing.T) {
	client := &TranscriptionClient{}
	var last speechtotext.TranscriptDelta
	options := speechtotext.NewTranscriptionOptions(
		speechtotext.WithTranscriptDeltaCallback(func(delta speechtotext.TranscriptDelta) { last = delta }),
	)

	ctx := context.Background()
	client.processMessage(ctx, resultMessage("hello", true, false), options)
	client.ResetTranscript()
	client.processMessage(ctx, resultMessage("again", false, false), options)

	if last.Text != "again" {
		t.Fatalf("expected transcript to restart after reset, got %q", last.Text)
	}
	if last.Sequence != 2 {
		t.Fatalf("expected sequence to keep counting across resets, got %d", last.Sequence)
	}
}

func TestSpeechEventsInvokeCallbacks(t *testing.T) {
	client := &TranscriptionClient{}
	started := atomic.Int32{}
	ended := atomic.Int32{}
	options := speechtotext.NewTranscriptionOptions(
		speechtotext.WithSpeechStartedCallback(func() { started.Add(1) }),
		speechtotext.WithSpeechEndedCallback(func() { ended.Add(1) }),
	)

	ctx := context.Background()
	client.processMessage(ctx, []byte(`{"type":"SpeechStarted"}`), options)
	client.processMessage(ctx, []byte(`{"type":"UtteranceEnd"}`), options)
	client.processMessage(ctx, []byte(`{"type":"UtteranceEnd"}`), options)

	if got := started.Load(); got != 1 {
		t.Fatalf("expected speech started once, got %d", got)
	}
	if got := ended.Load(); got != 1 {
		t.Fatalf("expected speech ended once for a single segment, got %d", got)
	}
}

func TestListenModel(t *testing.T) {
	if model, language := listenModel("en-US"); model != "nova-3" || language != "en-US" {
		t.Fatalf("expected nova-3/en-US, got %s/%s", model, language)
	}
	if model, language := listenModel("id-ID"); model != "nova-2" || language != "id" {
		t.Fatalf("expected nova-2/id, got %s/%s", model, language)
	}
}

func TestConvertEncodingRejectsCompandedWideband(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected 16kHz mulaw to be rejected")
	}
	encoding, err := convertEncoding(audio.GetDefaultEncodingInfo())
	if err != nil || encoding.Format != "linear16" || encoding.SampleRate != 16000 {
		t.Fatalf("expected default encoding to convert, got %+v, %v", encoding, err)
	}
}
