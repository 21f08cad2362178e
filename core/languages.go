package orchestration

import "strings"

// Language is a language the tutor can hold a conversation in.
type Language struct {
	// Code is the BCP-47 code passed to recognition, generation and
	// synthesis.
	Code string
	Name string
	// Voice is the synthesis voice for this language. Empty leaves the
	// choice to the synthesizer.
	Voice string

	// RetrievalNotice is spoken when a reply consisted of nothing but a
	// retrieval tool call.
	RetrievalNotice string
}

const (
	LanguageEnglish    = "en-US"
	LanguageIndonesian = "id-ID"
)

// DefaultLanguages are used unless WithLanguages replaces them. The first
// language is selected when the session starts.
func DefaultLanguages() []Language {
	return []Language{
		{
			Code:            LanguageEnglish,
			Name:            "English",
			RetrievalNotice: "I have retrieved relevant information for you.",
		},
		{
			Code:            LanguageIndonesian,
			Name:            "Indonesian",
			RetrievalNotice: "Saya sudah selesai mencari informasi yang relevan untuk Anda.",
		},
	}
}

func findLanguage(languages []Language, code string) (Language, bool) {
	for _, language := range languages {
		if strings.EqualFold(language.Code, code) {
			return language, true
		}
	}
	return Language{}, false
}
