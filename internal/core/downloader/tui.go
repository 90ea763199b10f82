package downloader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned by RunTaskTUI when the user quits before the
// download finishes. The caller owns the task's context and should cancel it.
var ErrInterrupted = errors.New("download interrupted")

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// taskState holds the progress shared between the task reader and the UI
type taskState struct {
	mu        sync.RWMutex
	latest    Progress
	done      bool
	err       error
	result    *Result
	startTime time.Time
	endTime   time.Time
}

func (s *taskState) update(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = p
}

func (s *taskState) finish(res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.err = err
	s.done = true
	s.endTime = time.Now()
}

func (s *taskState) get() (Progress, bool, *Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.done, s.result, s.err
}

func (s *taskState) elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// tickMsg triggers UI updates
type tickMsg time.Time

// taskModel is the Bubble Tea model for download progress
type taskModel struct {
	progress progress.Model
	spinner  spinner.Model
	label    string
	state    *taskState
}

func newTaskModel(label string, state *taskState) taskModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return taskModel{
		progress: p,
		spinner:  s,
		label:    label,
		state:    state,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m taskModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
	)
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		latest, done, _, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		return m, tea.Batch(tickCmd(), m.progress.SetPercent(latest.Percent/100))
	}

	return m, nil
}

func (m taskModel) View() string {
	latest, done, res, err := m.state.get()

	if err != nil {
		return fmt.Sprintf("\n  %s Download failed: %v\n\n", errStyle.Render("✗"), err)
	}

	if done && res != nil {
		return fmt.Sprintf("\n  %s Download completed\n  Saved: %s (%s)\n  Elapsed: %s\n\n",
			doneStyle.Render("✓"),
			res.Path,
			formatBytes(res.Size),
			formatDuration(m.state.elapsed()),
		)
	}

	s := "\n"
	s += fmt.Sprintf("  %s Downloading: %s\n\n", m.spinner.View(), infoStyle.Render(m.label))
	s += fmt.Sprintf("  %s\n\n", m.progress.View())

	s += fmt.Sprintf("  Progress: %.1f%%", latest.Percent)
	if latest.Total != "" {
		s += fmt.Sprintf("  |  Size: %s", latest.Total)
	}
	if latest.Speed != "" {
		s += fmt.Sprintf("  |  Speed: %s", latest.Speed)
	}
	if latest.ETA != "" {
		s += fmt.Sprintf("  |  ETA: %s", latest.ETA)
	}
	s += "\n\n"
	s += helpStyle.Render("  Press q to cancel")
	s += "\n"

	return s
}

// RunTaskTUI renders task progress until it completes or the user quits
func RunTaskTUI(task *Task, label string) (*Result, error) {
	state := &taskState{startTime: time.Now()}

	go func() {
		for p := range task.Progress() {
			state.update(p)
		}
		state.finish(task.Wait())
	}()

	if _, err := tea.NewProgram(newTaskModel(label, state)).Run(); err != nil {
		return nil, err
	}

	_, done, res, err := state.get()
	if !done {
		return nil, ErrInterrupted
	}
	return res, err
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "??:??"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 60 {
		h := m / 60
		m = m % 60
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
