package config

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrWizardCancelled is returned when the user leaves the wizard without saving
var ErrWizardCancelled = errors.New("configuration cancelled")

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	stepStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	unselectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	inputStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	inputCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(16)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	containerStyle   = lipgloss.NewStyle().Padding(2, 4)
)

type option struct {
	label string
	value string
}

// wizardStep is one screen. Steps without options take free text.
type wizardStep struct {
	title   string
	desc    string
	options []option
	get     func(*Config) string
	set     func(*Config, string)
}

func (s wizardStep) isInput() bool { return s.options == nil }

func wizardSteps() []wizardStep {
	browsers := []option{{"None (no cookies)", ""}}
	for _, b := range DefaultBrowsers {
		browsers = append(browsers, option{strings.ToUpper(b[:1]) + b[1:], b})
	}

	return []wizardStep{
		{
			title: "Output directory",
			desc:  "Where downloaded files are stored",
			get:   func(c *Config) string { return c.OutputDir },
			set:   func(c *Config, v string) { c.OutputDir = v },
		},
		{
			title: "Default format",
			desc:  "Used by 'mediagrab download' when -f is not given",
			options: []option{
				{"MP4 (recommended)", "mp4"},
				{"WebM", "webm"},
				{"MKV", "mkv"},
				{"MP3 (audio only)", "mp3"},
				{"M4A (audio only)", "m4a"},
			},
			get: func(c *Config) string { return c.Format },
			set: func(c *Config, v string) { c.Format = v },
		},
		{
			title: "Default quality",
			desc:  "Used by 'mediagrab download' when -q is not given",
			options: []option{
				{"4K (2160p)", "4K"},
				{"1080p", "1080p"},
				{"720p (recommended)", "720p"},
				{"480p", "480p"},
				{"360p", "360p"},
			},
			get: func(c *Config) string { return c.Quality },
			set: func(c *Config, v string) { c.Quality = v },
		},
		{
			title:   "Browser cookies",
			desc:    "yt-dlp can read login cookies from a local browser for private or age-restricted content",
			options: browsers,
			get:     func(c *Config) string { return c.Cookies.Browser },
			set:     func(c *Config, v string) { c.Cookies.Browser = v },
		},
	}
}

type model struct {
	steps       []wizardStep
	currentStep int
	cursor      int
	config      *Config
	confirmed   bool
	cancelled   bool
	inputBuffer string
	width       int
	height      int
}

func initialModel(cfg *Config) model {
	m := model{steps: wizardSteps(), config: cfg}
	m.loadStep()
	return m
}

// onReview reports whether the confirmation screen is showing
func (m *model) onReview() bool {
	return m.currentStep == len(m.steps)
}

func (m *model) reviewOptions() []option {
	return []option{{"Yes, save", "yes"}, {"No, cancel", "no"}}
}

func (m *model) options() []option {
	if m.onReview() {
		return m.reviewOptions()
	}
	return m.steps[m.currentStep].options
}

func (m *model) isInputStep() bool {
	return !m.onReview() && m.steps[m.currentStep].isInput()
}

// loadStep positions the cursor or input buffer on the current config value
func (m *model) loadStep() {
	m.cursor = 0
	if m.onReview() {
		return
	}
	step := m.steps[m.currentStep]
	current := step.get(m.config)
	if step.isInput() {
		m.inputBuffer = current
		return
	}
	for i, opt := range step.options {
		if opt.value == current {
			m.cursor = i
			break
		}
	}
}

func (m *model) saveStep() {
	if m.onReview() {
		return
	}
	step := m.steps[m.currentStep]
	if step.isInput() {
		step.set(m.config, strings.TrimSpace(m.inputBuffer))
		return
	}
	if m.cursor < len(step.options) {
		step.set(m.config, step.options[m.cursor].value)
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "left":
			if m.currentStep > 0 {
				m.saveStep()
				m.currentStep--
				m.loadStep()
			}
			return m, nil

		case "right", "enter":
			m.saveStep()
			if m.onReview() {
				m.confirmed = m.cursor == 0
				m.cancelled = !m.confirmed
				return m, tea.Quit
			}
			m.currentStep++
			m.loadStep()
			return m, nil

		case "up", "k":
			if !m.isInputStep() {
				n := len(m.options())
				m.cursor = (m.cursor - 1 + n) % n
			}
			return m, nil

		case "down", "j":
			if !m.isInputStep() {
				m.cursor = (m.cursor + 1) % len(m.options())
			}
			return m, nil

		case "backspace":
			if m.isInputStep() && len(m.inputBuffer) > 0 {
				runes := []rune(m.inputBuffer)
				m.inputBuffer = string(runes[:len(runes)-1])
			}
			return m, nil

		default:
			if m.isInputStep() && msg.Type == tea.KeyRunes {
				m.inputBuffer += string(msg.Runes)
			}
			return m, nil
		}
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mediagrab setup"))
	b.WriteString("\n")
	b.WriteString(stepStyle.Render(fmt.Sprintf("Step %d of %d", m.currentStep+1, len(m.steps)+1)))
	b.WriteString("\n\n")

	if m.onReview() {
		b.WriteString(titleStyle.Render("Save configuration?"))
		b.WriteString("\n\n")
		b.WriteString(m.renderReview())
		b.WriteString("\n")
	} else {
		step := m.steps[m.currentStep]
		b.WriteString(titleStyle.Render(step.title))
		b.WriteString("\n")
		b.WriteString(stepStyle.Render(step.desc))
		b.WriteString("\n\n")
	}

	if m.isInputStep() {
		b.WriteString(inputCursorStyle.Render("> "))
		b.WriteString(inputStyle.Render(m.inputBuffer))
		b.WriteString(inputCursorStyle.Render("█"))
		b.WriteString("\n")
	} else {
		for i, opt := range m.options() {
			cursor := "  "
			style := unselectedStyle
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
				style = selectedStyle
			}
			b.WriteString(cursor)
			b.WriteString(style.Render(opt.label))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("← back • → next • ↑↓ select • enter confirm • esc quit"))

	content := containerStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, content)
	}
	return content
}

func (m model) renderReview() string {
	var b strings.Builder
	for _, step := range m.steps {
		value := step.get(m.config)
		if value == "" {
			value = "(none)"
		}
		b.WriteString(labelStyle.Render(step.title + ":"))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	return b.String()
}

// RunInitWizard walks through the common settings, starting from cfg
func RunInitWizard(cfg *Config) (*Config, error) {
	p := tea.NewProgram(initialModel(cfg), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(model)
	if !result.confirmed {
		return nil, ErrWizardCancelled
	}
	if result.config.OutputDir == "" {
		result.config.OutputDir = DefaultDownloadDir()
	}
	return result.config, nil
}
