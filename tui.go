package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{ Mode string }
type RecordingStopMsg struct{}
type ProcessingMsg struct{ Mode string }
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type SilenceAutoCloseMsg struct{}
type ResultMsg struct {
	Mode      string
	Text      string
	Warning   string
	Err       string
	Sticky    bool // error stays until the next result (auth, config)
	Cancelled bool
	TotalMs   float64
}
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
)

type tuiModel struct {
	state             tuiState
	mode              string
	frame             int
	recordingDuration float64
	audioLevel        float64
	noVoiceWarn       bool
	width, height     int
	modeLine          string
	deviceLine        string
	resultCount       int
	last              ResultMsg
	hasResult         bool
	resultFrame       int
}

// Transient errors disappear after this many ticks (10s); sticky ones
// stay until the next result.
const errDismissFrames = 100

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
	tuiReady   = make(chan struct{})
	tuiOnce    sync.Once
)

func markTUIReady() { tuiOnce.Do(func() { close(tuiReady) }) }

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	markTUIReady()
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		if m.hasResult && m.last.Err != "" && !m.last.Sticky &&
			m.frame-m.resultFrame > errDismissFrames {
			m.hasResult = false
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.mode = msg.Mode
		m.recordingDuration = 0
		m.audioLevel = 0
		m.noVoiceWarn = false

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noVoiceWarn = false

	case ProcessingMsg:
		m.state = tuiStateProcessing
		m.mode = msg.Mode
		m.audioLevel = 0
		m.noVoiceWarn = false

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoVoiceWarningMsg:
		m.noVoiceWarn = true

	case VoiceClearedMsg:
		m.noVoiceWarn = false

	case SilenceAutoCloseMsg:
		m.noVoiceWarn = false

	case ResultMsg:
		m.state = tuiStateIdle
		m.resultCount++
		m.last = msg
		m.hasResult = true
		m.resultFrame = m.frame

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleMeter   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func levelMeter(level float64, width int) string {
	filled := int(level * 12 * float64(width))
	if filled > width {
		filled = width
	}
	return styleMeter.Render(strings.Repeat("▮", filled)) +
		styleIdle.Render(strings.Repeat("▯", width-filled))
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case tuiStateRecording:
		line := styleRec.Render(fmt.Sprintf("● REC %.1fs [%s]", m.recordingDuration, m.mode)) +
			" " + levelMeter(m.audioLevel, 20)
		if m.noVoiceWarn {
			line += styleWarn.Render("  ⚠ no voice detected")
		}
		return line
	case tuiStateProcessing:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		return styleBusy.Render(fmt.Sprintf("%s PROCESSING [%s]", spin, m.mode))
	default:
		return styleIdle.Render("○ IDLE")
	}
}

func (m tuiModel) resultLines(wrapWidth int) []string {
	if !m.hasResult {
		return []string{styleIdle.Render("No results yet")}
	}

	var lines []string
	title := styleDim.Render(fmt.Sprintf("Last result (#%d, %s, %dms)", m.resultCount, m.last.Mode, int(m.last.TotalMs)))
	lines = append(lines, title, "")

	switch {
	case m.last.Cancelled:
		lines = append(lines, styleIdle.Render("(cancelled)"))
	case m.last.Err != "":
		for _, l := range wrapText(m.last.Err, wrapWidth) {
			lines = append(lines, styleErr.Render(l))
		}
	default:
		text := m.last.Text
		if text == "" {
			text = "(empty)"
		}
		wrapped := wrapText(text, wrapWidth)
		for i, l := range wrapped {
			rendered := styleText.Render(l)
			if i == len(wrapped)-1 && m.last.Warning == "" {
				rendered += " " + styleOK.Render("[✓ pasted]")
			}
			lines = append(lines, rendered)
		}
		if m.last.Warning != "" {
			lines = append(lines, "")
			for _, l := range wrapText(m.last.Warning, wrapWidth) {
				lines = append(lines, styleWarn.Render("⚠ "+l))
			}
		}
	}
	return lines
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var b strings.Builder
	b.WriteString("\n " + m.statusLine() + "\n")
	if m.modeLine != "" {
		b.WriteString(" " + styleDim.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(" " + styleIdle.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")
	for _, line := range m.resultLines(wrapWidth) {
		b.WriteString(" " + line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(" " + styleHelpKey.Render(dictationComboHelp) + styleHelp.Render(" dictate   ") +
		styleHelpKey.Render(editComboHelp) + styleHelp.Render(" edit selection") + "\n")
	b.WriteString(" " + styleHelp.Render("dikto "+version) + "\n")
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
