package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/guiyumin/mediagrab/internal/core/service"
	"github.com/mattn/go-runewidth"
)

var (
	extractInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	extractErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// maxURLWidth bounds the URL shown next to the spinner, in terminal cells
const maxURLWidth = 60

var errExtractCancelled = errors.New("extraction cancelled")

// extractState holds the metadata fetch result
type extractState struct {
	mu     sync.RWMutex
	done   bool
	err    error
	result *extractor.ContentInfo
}

func (s *extractState) set(result *extractor.ContentInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.err = err
	s.done = true
}

func (s *extractState) get() (bool, *extractor.ContentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.result, s.err
}

type extractTickMsg time.Time

type extractModel struct {
	spinner  spinner.Model
	url      string
	platform string
	state    *extractState
}

func newExtractModel(url, platform string, state *extractState) extractModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return extractModel{
		spinner:  s,
		url:      url,
		platform: platform,
		state:    state,
	}
}

func extractTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return extractTickMsg(t)
	})
}

func (m extractModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, extractTickCmd())
}

func (m extractModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case extractTickMsg:
		done, _, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		return m, extractTickCmd()
	}

	return m, nil
}

func (m extractModel) View() string {
	done, _, err := m.state.get()

	if err != nil {
		return fmt.Sprintf("\n  %s Fetching info failed\n\n", extractErrStyle.Render("✗"))
	}
	if done {
		return ""
	}

	return fmt.Sprintf("\n  %s Fetching %s info: %s\n\n",
		m.spinner.View(),
		m.platform,
		extractInfoStyle.Render(runewidth.Truncate(m.url, maxURLWidth, "...")),
	)
}

// runExtractWithSpinner fetches metadata while a spinner runs. Quitting
// the spinner cancels the yt-dlp process.
func runExtractWithSpinner(ctx context.Context, svc *service.Service, p *extractor.Platform, url string) (*extractor.ContentInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &extractState{}
	go func() {
		state.set(svc.FetchMetadata(ctx, p.ID, url))
	}()

	if _, err := tea.NewProgram(newExtractModel(url, p.DisplayName, state)).Run(); err != nil {
		return nil, err
	}

	done, result, err := state.get()
	if !done {
		return nil, errExtractCancelled
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func runInfo(ctx context.Context, url string) error {
	p, err := resolvePlatform(url)
	if err != nil {
		return err
	}
	_, svc, err := newService()
	if err != nil {
		return err
	}

	info, err := runExtractWithSpinner(ctx, svc, p, url)
	if err != nil {
		return err
	}
	printInfo(info)
	return nil
}

func printInfo(info *extractor.ContentInfo) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	bold.Println(info.Title)
	cyan.Printf("  %s", info.Channel)
	if info.ChannelURL != "" {
		faint.Printf("  %s", info.ChannelURL)
	}
	fmt.Println()

	var facts []string
	facts = append(facts, string(info.ContentType))
	if info.DurationFormatted != "" {
		facts = append(facts, info.DurationFormatted)
	}
	if info.ViewCount != nil {
		facts = append(facts, fmt.Sprintf("%d views", *info.ViewCount))
	}
	if info.UploadDate != "" {
		facts = append(facts, info.UploadDate)
	}
	fmt.Printf("  %s\n", strings.Join(facts, " · "))

	printFormats(bold, green, "Video", info.Formats.Video)
	printFormats(bold, green, "Audio", info.Formats.Audio)
	printFormats(bold, green, "Image", info.Formats.Image)

	fmt.Println()
	faint.Println("  Download with: mediagrab download <url> -f <format> -q <quality>")
}

func printFormats(bold, green *color.Color, label string, formats []extractor.FormatOption) {
	if len(formats) == 0 {
		return
	}
	fmt.Println()
	bold.Printf("  %s formats:\n", label)
	for _, f := range formats {
		green.Printf("    • %-8s", f.Quality)
		if f.Ext != "" {
			fmt.Printf(" %s", f.Ext)
		}
		if f.Filesize != nil {
			fmt.Printf(" (%s)", formatSize(*f.Filesize))
		}
		if f.FormatID != "" {
			fmt.Printf("  [%s]", f.FormatID)
		}
		fmt.Println()
	}
}

func formatSize(b int64) string {
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
