package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	transcriptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

const maxHistoryLines = 6

// session is the part of the conversation the terminal controls.
type session interface {
	SetMuted(bool)
	SetAIEnabled(bool)
	SetLanguage(string)
	Languages() []orchestration.Language
}

type model struct {
	session  session
	updates  <-chan tea.Msg
	spinner  spinner.Model
	width    int
	language string
	muted    bool
	disabled bool

	status     orchestration.Status
	level      float64
	source     string
	transcript string
	reply      string
	speaking   string
	history    []string
	notice     events.NoticeRaised
}

type eventMsg struct{ event events.Event }
type statusMsg orchestration.Status

func newModel(session session, language string, updates <-chan tea.Msg) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return model{
		session:  session,
		updates:  updates,
		spinner:  s,
		width:    80,
		language: language,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.updates
		if !ok {
			return tea.Quit()
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "m":
			m.muted = !m.muted
			m.session.SetMuted(m.muted)
		case "a":
			m.disabled = !m.disabled
			m.session.SetAIEnabled(!m.disabled)
		case "l":
			m.language = m.nextLanguage()
			m.session.SetLanguage(m.language)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = orchestration.Status(msg)
		return m, m.listen()

	case eventMsg:
		m = m.handleEvent(msg.event)
		return m, m.listen()
	}
	return m, nil
}

func (m model) handleEvent(event events.Event) model {
	switch event := event.(type) {
	case events.AmplitudeSampled:
		m.level = event.Level
		m.source = event.Source
	case events.UserTranscriptUpdated:
		m.transcript = event.Transcript
	case events.UserUtteranceFinalized:
		m.transcript = ""
		m = m.remember("You: " + event.Text)
	case events.AssistantResponseStarted:
		m.reply = ""
	case events.AssistantResponseSegment:
		m.reply += event.Segment
	case events.AssistantResponseFinal:
		m.reply = ""
		m = m.remember("Tutor: " + event.Text)
	case events.AssistantPlaybackStarted:
		m.speaking = event.Text
	case events.AssistantPlaybackEnded:
		m.speaking = ""
	case events.TurnInterrupted:
		m.speaking = ""
		if m.reply != "" {
			m = m.remember("Tutor: " + m.reply + " [interrupted]")
			m.reply = ""
		}
	case events.NoticeRaised:
		m.notice = event
	}
	return m
}

func (m model) remember(line string) model {
	m.history = append(m.history, line)
	if len(m.history) > maxHistoryLines {
		m.history = m.history[len(m.history)-maxHistoryLines:]
	}
	return m
}

func (m model) nextLanguage() string {
	languages := m.session.Languages()
	for i, language := range languages {
		if language.Code == m.language {
			return languages[(i+1)%len(languages)].Code
		}
	}
	if len(languages) > 0 {
		return languages[0].Code
	}
	return m.language
}

func (m model) View() string {
	wrap := m.width - 6
	if wrap < 20 {
		wrap = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Tutor"))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderLevel())
	b.WriteString("\n\n")

	if len(m.history) > 0 || m.reply != "" {
		var convo strings.Builder
		for i, line := range m.history {
			if i > 0 {
				convo.WriteString("\n")
			}
			convo.WriteString(wordwrap.String(line, wrap))
		}
		if m.reply != "" {
			if convo.Len() > 0 {
				convo.WriteString("\n")
			}
			convo.WriteString(activeStyle.Render(wordwrap.String("Tutor: "+m.reply, wrap)))
		}
		b.WriteString(boxStyle.Render(convo.String()))
		b.WriteString("\n\n")
	}

	if m.transcript != "" {
		b.WriteString(transcriptStyle.Render(wordwrap.String("... "+m.transcript, wrap)))
		b.WriteString("\n\n")
	}

	if m.notice.Message != "" {
		style := statusStyle
		if m.notice.Level == events.NoticeLevelError {
			style = errorStyle
		}
		b.WriteString(style.Render(wordwrap.String(m.notice.Message, wrap)))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("q quit  m mute  a toggle AI  l switch language"))
	return b.String()
}

func (m model) renderStatus() string {
	label := m.status.Label
	if label == "" {
		label = m.status.State.String()
	}

	var parts []string
	switch m.status.State {
	case orchestration.TurnStateAwaitingAssistantReply, orchestration.TurnStateSpeaking:
		parts = append(parts, m.spinner.View()+" "+activeStyle.Render(label))
	default:
		parts = append(parts, statusStyle.Render("Status: ")+label)
	}
	parts = append(parts, statusStyle.Render("Language: ")+m.language)
	if m.muted {
		parts = append(parts, errorStyle.Render("Muted"))
	}
	if m.speaking != "" {
		parts = append(parts, statusStyle.Render(fmt.Sprintf("Saying: %q", truncate(m.speaking, 40))))
	}
	return strings.Join(parts, "  │  ")
}

func (m model) renderLevel() string {
	const barWidth = 30
	filled := int(m.level * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	source := "mic"
	if m.source == string(orchestration.AmplitudeSourcePlayback) {
		source = "tutor"
	}
	return fmt.Sprintf("%-5s [%s] %3.0f%%", source, bar, m.level*100)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
