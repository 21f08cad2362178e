package main

import (
	"fmt"
	"os"
	"time"

	orchestration "github.com/koscakluka/ema-tutor/core"
	"gopkg.in/yaml.v3"
)

type config struct {
	Language        string        `yaml:"language"`
	Instructions    string        `yaml:"instructions"`
	Debounce        time.Duration `yaml:"debounce"`
	BargeIn         *bool         `yaml:"bargeIn"`
	MinBargeInChars int           `yaml:"minBargeInChars"`

	Model  string `yaml:"model"`
	Speech string `yaml:"speech"`
	Audio  string `yaml:"audio"`

	// Voices maps a language code to the synthesis voice used for it.
	Voices map[string]string `yaml:"voices"`
}

const defaultInstructions = `You are a patient tutor talking with a student.
Keep answers short and conversational since they are spoken out loud.
Ask a guiding question instead of handing out full solutions.`

func defaultConfig() config {
	return config{
		Language:     orchestration.LanguageEnglish,
		Instructions: defaultInstructions,
		Debounce:     orchestration.DefaultDebounce,
		Speech:       "deepgram",
		Audio:        "miniaudio",
		Voices: map[string]string{
			orchestration.LanguageEnglish: "aura-2-thalia-en",
		},
	}
}

// loadConfig overlays the YAML file at path, if any, on the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c config) languages() []orchestration.Language {
	languages := orchestration.DefaultLanguages()
	for i, language := range languages {
		if voice, ok := c.Voices[language.Code]; ok {
			languages[i].Voice = voice
		}
	}
	return languages
}

func (c config) sessionOptions() []orchestration.SessionOption {
	opts := []orchestration.SessionOption{
		orchestration.WithLanguages(c.languages()...),
		orchestration.WithInitialLanguage(c.Language),
		orchestration.WithInstructions(c.Instructions),
		orchestration.WithTools(orchestration.RetrievalTool(nil)),
		orchestration.WithSessionTools(),
	}
	if c.Debounce > 0 {
		opts = append(opts, orchestration.WithDebounce(c.Debounce))
	}
	if c.BargeIn != nil {
		opts = append(opts, orchestration.WithBargeIn(*c.BargeIn))
	}
	if c.MinBargeInChars > 0 {
		opts = append(opts, orchestration.WithMinBargeInChars(c.MinBargeInChars))
	}
	return opts
}
