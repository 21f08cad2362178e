package deepgram

import (
	"fmt"
	"strings"

	"github.com/koscakluka/ema-tutor/core/audio"
)

type listenEncoding struct {
	SampleRate int
	Format     string
}

func convertEncoding(encoding audio.EncodingInfo) (*listenEncoding, error) {
	deepgramEncoding := listenEncoding{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		deepgramEncoding.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		deepgramEncoding.Format = "linear16"
	case audio.EncodingALaw, audio.EncodingMulaw:
		if deepgramEncoding.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for %s encoding", encoding.Format.Name())
		}
		deepgramEncoding.Format = encoding.Format.Name()
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	return &deepgramEncoding, nil
}

// listenModel picks the model and language parameter for a BCP-47 code.
// nova-3 only covers English well; other languages go to nova-2, which takes
// the bare language subtag.
func listenModel(language string) (model string, languageParam string) {
	if language == "" {
		return "nova-3", "en-US"
	}
	if strings.HasPrefix(strings.ToLower(language), "en") {
		return "nova-3", language
	}

	base, _, _ := strings.Cut(language, "-")
	return "nova-2", strings.ToLower(base)
}
