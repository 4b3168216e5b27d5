// Package tui renders download progress as a terminal UI: an overall
// progress bar, the target currently in flight, and a tail of recent
// outcomes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/fetcher"
	"github.com/gtfsrt-io/rtfetch/internal/orchestrator"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
)

const recentLines = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	outcomeStyle = map[fetcher.Status]lipgloss.Style{
		fetcher.StatusDownloaded: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		fetcher.StatusSkipped:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		fetcher.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Model is the bubbletea model for one download pass.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	total      int
	finished   int
	downloaded int
	skipped    int
	failed     int

	current string
	recent  []string

	summary *orchestrator.Summary
	runErr  error
	done    bool
	width   int
}

// NewModel sizes the view for a pass over total targets.
func NewModel(total int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		total:    total,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (m.done && (msg.String() == "q" || msg.Type == tea.KeyEnter)) {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(0, msg.Width-4)
		return m, nil

	case TargetStartedMsg:
		m.current = targetLabel(msg.Target)
		return m, nil

	case TargetFinishedMsg:
		m.finished++
		switch msg.Outcome.Status {
		case fetcher.StatusDownloaded:
			m.downloaded++
		case fetcher.StatusSkipped:
			m.skipped++
		case fetcher.StatusFailed:
			m.failed++
		}
		m.recent = append(m.recent, outcomeLine(msg.Outcome))
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		var percent float64
		if m.total > 0 {
			percent = float64(m.finished) / float64(m.total)
		}
		return m, m.progress.SetPercent(percent)

	case RunFinishedMsg:
		m.done = true
		m.summary = msg.Summary
		m.runErr = msg.Err
		m.current = ""
		return m, tea.Sequence(m.progress.SetPercent(1), tea.Quit)

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("rtfetch") + "\n\n")

	if m.current != "" {
		b.WriteString(m.spinner.View() + " " + m.current + "\n")
	}
	b.WriteString(m.progress.View() + "\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("%d/%d targets  •  %d downloaded, %d skipped, %d failed",
		m.finished, m.total, m.downloaded, m.skipped, m.failed)) + "\n\n")

	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}

	if m.done {
		if m.runErr != nil {
			b.WriteString("\n" + errorStyle.Render("Run aborted: "+m.runErr.Error()) + "\n")
		} else {
			b.WriteString("\n" + infoStyle.Render("Done.") + "\n")
		}
	}
	return b.String()
}

func targetLabel(t planner.Target) string {
	return fmt.Sprintf("%s %s", t.FeedKey(), t.Day.Format(dates.Layout))
}

func outcomeLine(oc fetcher.Outcome) string {
	style := outcomeStyle[oc.Status]
	switch oc.Status {
	case fetcher.StatusDownloaded:
		return style.Render(fmt.Sprintf("  [ok]   %s (%.1f KB)", targetLabel(oc.Target), float64(oc.Bytes)/1024))
	case fetcher.StatusSkipped:
		return style.Render(fmt.Sprintf("  [skip] %s (already exists)", targetLabel(oc.Target)))
	default:
		return style.Render(fmt.Sprintf("  [fail] %s (%s)", targetLabel(oc.Target), oc.Failure))
	}
}

// Relay forwards orchestrator progress into a running tea.Program. It
// satisfies orchestrator.Observer.
type Relay struct {
	program *tea.Program
}

// NewRelay wraps program as an observer.
func NewRelay(program *tea.Program) *Relay {
	return &Relay{program: program}
}

func (r *Relay) TargetStarted(index, total int, target planner.Target) {
	r.program.Send(TargetStartedMsg{Index: index, Total: total, Target: target})
}

func (r *Relay) TargetFinished(index, total int, outcome fetcher.Outcome) {
	r.program.Send(TargetFinishedMsg{Index: index, Total: total, Outcome: outcome})
}

// Finished signals the end of the pass.
func (r *Relay) Finished(summary *orchestrator.Summary, err error) {
	r.program.Send(RunFinishedMsg{Summary: summary, Err: err})
}
