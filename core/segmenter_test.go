package orchestration

import "testing"

func TestSegmenterEmitsEachSentenceOnce(t *testing.T) {
	buffer := NewReplyBuffer(1)
	segmenter := SentenceSegmenter{}

	var chunks []SentenceChunk
	for _, token := range []string{"Hi", " there.", " How", " are you?"} {
		buffer.Append(token)
		chunks = append(chunks, segmenter.Segment(buffer)...)
	}

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "Hi there." || chunks[1].Text != "How are you?" {
		t.Fatalf("unexpected chunk texts %q and %q", chunks[0].Text, chunks[1].Text)
	}
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Fatalf("expected ordinals 0 and 1, got %d and %d", chunks[0].Ordinal, chunks[1].Ordinal)
	}
	if chunks[0].Turn != 1 {
		t.Fatalf("expected chunk to carry its turn, got %d", chunks[0].Turn)
	}
	if rest := segmenter.Flush(buffer); len(rest) != 0 {
		t.Fatalf("expected nothing left to flush, got %+v", rest)
	}
}

func TestSegmenterWaitsForTerminator(t *testing.T) {
	buffer := NewReplyBuffer(1)
	buffer.Append("Let us look at the numerator")

	if chunks := (SentenceSegmenter{}).Segment(buffer); len(chunks) != 0 {
		t.Fatalf("expected no chunk without a terminator, got %+v", chunks)
	}
	if buffer.Consumed() != 0 {
		t.Fatalf("expected nothing consumed, got %d", buffer.Consumed())
	}
}

func TestSegmenterKeepsTerminatorRuns(t *testing.T) {
	buffer := NewReplyBuffer(1)
	buffer.Append("Really?! Yes...")

	chunks := (SentenceSegmenter{}).Segment(buffer)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", chunks)
	}
	if chunks[0].Text != "Really?!" || chunks[1].Text != "Yes..." {
		t.Fatalf("unexpected chunks %q and %q", chunks[0].Text, chunks[1].Text)
	}
}

func TestSegmenterSkipsPunctuationOnlySpans(t *testing.T) {
	buffer := NewReplyBuffer(1)
	buffer.Append("Good. . ! Next one.")

	chunks := (SentenceSegmenter{}).Segment(buffer)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", chunks)
	}
	if chunks[1].Text != "Next one." || chunks[1].Ordinal != 1 {
		t.Fatalf("expected second chunk %q with ordinal 1, got %+v", "Next one.", chunks[1])
	}
}

func TestSegmenterFlushEmitsRemainder(t *testing.T) {
	buffer := NewReplyBuffer(3)
	segmenter := SentenceSegmenter{}

	buffer.Append("One half. And a quarter")
	first := segmenter.Segment(buffer)
	rest := segmenter.Flush(buffer)

	if len(first) != 1 || len(rest) != 1 {
		t.Fatalf("expected one chunk each, got %d and %d", len(first), len(rest))
	}
	if rest[0].Text != "And a quarter" || rest[0].Ordinal != 1 {
		t.Fatalf("expected remainder %q with ordinal 1, got %+v", "And a quarter", rest[0])
	}
	if again := segmenter.Flush(buffer); len(again) != 0 {
		t.Fatalf("expected second flush to be empty, got %+v", again)
	}
}

func TestSegmenterFlushIgnoresWhitespace(t *testing.T) {
	buffer := NewReplyBuffer(1)
	buffer.Append("Done.   ")
	segmenter := SentenceSegmenter{}

	segmenter.Segment(buffer)
	if rest := segmenter.Flush(buffer); len(rest) != 0 {
		t.Fatalf("expected whitespace remainder to be dropped, got %+v", rest)
	}
}
