package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/events"
)

type fakeSession struct {
	muted     []bool
	enabled   []bool
	languages []string
}

func (f *fakeSession) SetMuted(muted bool)       { f.muted = append(f.muted, muted) }
func (f *fakeSession) SetAIEnabled(enabled bool) { f.enabled = append(f.enabled, enabled) }
func (f *fakeSession) SetLanguage(code string)   { f.languages = append(f.languages, code) }
func (f *fakeSession) Languages() []orchestration.Language {
	return orchestration.DefaultLanguages()
}

func press(m model, key string) model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return updated.(model)
}

func TestKeysDriveSessionControls(t *testing.T) {
	session := &fakeSession{}
	m := newModel(session, orchestration.LanguageEnglish, nil)

	m = press(m, "m")
	m = press(m, "m")
	m = press(m, "a")
	m = press(m, "l")
	m = press(m, "l")

	if len(session.muted) != 2 || !session.muted[0] || session.muted[1] {
		t.Fatalf("expected mute then unmute, got %v", session.muted)
	}
	if len(session.enabled) != 1 || session.enabled[0] {
		t.Fatalf("expected AI disabled once, got %v", session.enabled)
	}
	expected := []string{orchestration.LanguageIndonesian, orchestration.LanguageEnglish}
	if len(session.languages) != 2 || session.languages[0] != expected[0] || session.languages[1] != expected[1] {
		t.Fatalf("expected languages %v, got %v", expected, session.languages)
	}
}

func TestEventsBuildConversation(t *testing.T) {
	m := newModel(&fakeSession{}, orchestration.LanguageEnglish, nil)

	m = m.handleEvent(events.NewUserTranscriptUpdated("what is", false))
	if m.transcript != "what is" {
		t.Fatalf("expected live transcript, got %q", m.transcript)
	}
	m = m.handleEvent(events.NewUserUtteranceFinalized("u1", "what is a prime"))
	m = m.handleEvent(events.NewAssistantResponseStarted(1))
	m = m.handleEvent(events.NewAssistantResponseSegment("A prime "))
	m = m.handleEvent(events.NewAssistantResponseSegment("has two divisors."))
	if m.reply != "A prime has two divisors." {
		t.Fatalf("expected streamed reply, got %q", m.reply)
	}
	m = m.handleEvent(events.NewAssistantResponseFinal("A prime has two divisors."))

	if m.transcript != "" || m.reply != "" {
		t.Fatalf("expected transcript and reply cleared, got %q and %q", m.transcript, m.reply)
	}
	if len(m.history) != 2 || m.history[0] != "You: what is a prime" || m.history[1] != "Tutor: A prime has two divisors." {
		t.Fatalf("unexpected history %v", m.history)
	}
}

func TestInterruptedReplyIsKept(t *testing.T) {
	m := newModel(&fakeSession{}, orchestration.LanguageEnglish, nil)
	m = m.handleEvent(events.NewAssistantResponseSegment("Let me"))
	m = m.handleEvent(events.NewTurnInterrupted(1))

	if len(m.history) != 1 || m.history[0] != "Tutor: Let me [interrupted]" {
		t.Fatalf("unexpected history %v", m.history)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	m := newModel(&fakeSession{}, orchestration.LanguageEnglish, nil)
	for range maxHistoryLines + 3 {
		m = m.remember("line")
	}
	if len(m.history) != maxHistoryLines {
		t.Fatalf("expected %d lines, got %d", maxHistoryLines, len(m.history))
	}
}
