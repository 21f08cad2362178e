package orchestration

import (
	"regexp"
	"strings"
	"unicode"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SentenceSegmenter cuts completed sentences off a growing reply. Each span
// of reply text ends up in exactly one chunk.
type SentenceSegmenter struct{}

// Segment returns the sentences completed since the last call and advances
// the buffer past them. Text after the last terminal mark stays pending.
func (SentenceSegmenter) Segment(buffer *ReplyBuffer) []SentenceChunk {
	if buffer == nil {
		return nil
	}

	pending := buffer.Pending()
	if !strings.ContainsAny(pending, ".!?") {
		return nil
	}

	matches := sentencePattern.FindAllStringIndex(pending, -1)
	if len(matches) == 0 {
		return nil
	}

	chunks := make([]SentenceChunk, 0, len(matches))
	for _, match := range matches {
		if text, ok := sentenceText(pending[match[0]:match[1]]); ok {
			chunks = append(chunks, buffer.newChunk(text))
		}
	}
	buffer.consumed += matches[len(matches)-1][1]

	return chunks
}

// Flush returns the unterminated remainder of a finished reply as a final
// chunk, if it has any words in it.
func (SentenceSegmenter) Flush(buffer *ReplyBuffer) []SentenceChunk {
	if buffer == nil {
		return nil
	}

	pending := buffer.Pending()
	buffer.consumed = len(buffer.text)

	if text, ok := sentenceText(pending); ok {
		return []SentenceChunk{buffer.newChunk(text)}
	}
	return nil
}

func sentenceText(span string) (string, bool) {
	text := strings.TrimSpace(span)
	hasWords := strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
	return text, hasWords
}
