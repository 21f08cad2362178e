package orchestration

import (
	"sync"
	"testing"
	"time"
)

type utteranceRecorder struct {
	mu         sync.Mutex
	utterances []Utterance
	suppressed int
}

func (r *utteranceRecorder) finalized(utterance Utterance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utterances = append(r.utterances, utterance)
}

func (r *utteranceRecorder) suppress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed++
}

func (r *utteranceRecorder) snapshot() ([]Utterance, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Utterance(nil), r.utterances...), r.suppressed
}

func newRecordedAccumulator(delay time.Duration, canSend func() bool) (*UtteranceAccumulator, *utteranceRecorder) {
	recorder := &utteranceRecorder{}
	accumulator := NewUtteranceAccumulator(delay,
		WithFinalizeGate(canSend),
		WithUtteranceFinalizedCallback(recorder.finalized),
		WithUtteranceSuppressedCallback(recorder.suppress),
	)
	return accumulator, recorder
}

func TestAccumulatorDebouncesDeltasIntoOneUtterance(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(40*time.Millisecond, func() bool { return true })

	accumulator.OnDelta(TranscriptDelta{Text: "h", Sequence: 1})
	time.Sleep(10 * time.Millisecond)
	accumulator.OnDelta(TranscriptDelta{Text: "hel", Sequence: 2})
	time.Sleep(10 * time.Millisecond)
	accumulator.OnDelta(TranscriptDelta{Text: " hello ", Sequence: 3})

	waitForCondition(t, time.Second, "utterance", func() bool {
		utterances, _ := recorder.snapshot()
		return len(utterances) > 0
	})
	time.Sleep(60 * time.Millisecond)

	utterances, _ := recorder.snapshot()
	if len(utterances) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(utterances))
	}
	if utterances[0].Text != "hello" {
		t.Fatalf("expected trimmed utterance %q, got %q", "hello", utterances[0].Text)
	}
	if utterances[0].ID == "" {
		t.Fatalf("expected utterance to carry an id")
	}
	if got := accumulator.Transcript(); got != "" {
		t.Fatalf("expected transcript to be cleared after finalization, got %q", got)
	}
}

func TestAccumulatorNeverFinalizesWhitespace(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(20*time.Millisecond, func() bool { return true })

	accumulator.OnDelta(TranscriptDelta{Text: "   ", Sequence: 1})
	accumulator.OnDelta(TranscriptDelta{Text: "\n\t", Sequence: 2})
	time.Sleep(80 * time.Millisecond)

	utterances, suppressed := recorder.snapshot()
	if len(utterances) != 0 || suppressed != 0 {
		t.Fatalf("expected no utterance for whitespace, got %d utterances and %d suppressions", len(utterances), suppressed)
	}
}

func TestAccumulatorWhitespaceDeltaDoesNotExtendDebounce(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(40*time.Millisecond, func() bool { return true })

	accumulator.OnDelta(TranscriptDelta{Text: "hello", Sequence: 1})
	time.Sleep(20 * time.Millisecond)
	accumulator.OnDelta(TranscriptDelta{Text: "hello ", Sequence: 2})

	waitForCondition(t, time.Second, "utterance", func() bool {
		utterances, _ := recorder.snapshot()
		return len(utterances) == 1
	})
}

func TestAccumulatorClosedGateSuppressesAndClears(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(20*time.Millisecond, func() bool { return false })

	accumulator.OnDelta(TranscriptDelta{Text: "what is a fraction", Sequence: 1})
	waitForCondition(t, time.Second, "suppression", func() bool {
		_, suppressed := recorder.snapshot()
		return suppressed == 1
	})

	utterances, _ := recorder.snapshot()
	if len(utterances) != 0 {
		t.Fatalf("expected no utterance through a closed gate, got %d", len(utterances))
	}
	if got := accumulator.Transcript(); got != "" {
		t.Fatalf("expected suppressed transcript to be cleared, got %q", got)
	}
}

func TestAccumulatorIgnoresStaleDeltas(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(30*time.Millisecond, func() bool { return true })

	accumulator.OnDelta(TranscriptDelta{Text: "two halves", Sequence: 5})
	accumulator.OnDelta(TranscriptDelta{Text: "two", Sequence: 4})

	if got := accumulator.Transcript(); got != "two halves" {
		t.Fatalf("expected stale delta to be ignored, got %q", got)
	}

	waitForCondition(t, time.Second, "utterance", func() bool {
		utterances, _ := recorder.snapshot()
		return len(utterances) == 1
	})
	utterances, _ := recorder.snapshot()
	if utterances[0].Text != "two halves" {
		t.Fatalf("expected %q, got %q", "two halves", utterances[0].Text)
	}
}

func TestAccumulatorResetCancelsPendingFinalization(t *testing.T) {
	accumulator, recorder := newRecordedAccumulator(30*time.Millisecond, func() bool { return true })

	accumulator.OnDelta(TranscriptDelta{Text: "never mind", Sequence: 1})
	accumulator.Reset()
	time.Sleep(80 * time.Millisecond)

	utterances, _ := recorder.snapshot()
	if len(utterances) != 0 {
		t.Fatalf("expected reset to cancel the utterance, got %d", len(utterances))
	}

	accumulator.OnDelta(TranscriptDelta{Text: "again", Sequence: 1})
	waitForCondition(t, time.Second, "utterance after reset", func() bool {
		utterances, _ := recorder.snapshot()
		return len(utterances) == 1
	})
}
