// Package tui renders the daemon's single screen in a terminal with
// bubbletea. It reads tracker snapshots and forwards key presses to the
// controller as commands.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
	"github.com/sweeney/heartbeat-haptic/internal/status"
)

// DefaultRefresh is how often the screen re-reads the tracker.
const DefaultRefresh = 50 * time.Millisecond

// Sender accepts user actions without blocking.
type Sender interface {
	Send(cmd logic.Command) bool
}

type refreshMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	heartStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E0245E"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(1, 3)
)

// Model is the bubbletea model for the heartbeat screen.
type Model struct {
	tracker *status.Tracker
	sender  Sender
	refresh time.Duration

	snap  status.Snapshot
	width int
}

// New creates a Model. A non-positive refresh selects DefaultRefresh.
func New(tracker *status.Tracker, sender Sender, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		tracker: tracker,
		sender:  sender,
		refresh: refresh,
		snap:    tracker.Snapshot(),
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles key presses and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.snap = m.tracker.Snapshot()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.snap.Engaged {
				m.sender.Send(logic.CommandPressEnd)
			}
			return m, tea.Quit
		case " ":
			// Engaged is optimistic until the next refresh reads the
			// tracker, which also sees sessions ended by the button or web.
			if m.snap.Engaged {
				if m.sender.Send(logic.CommandPressEnd) {
					m.snap.Engaged = false
				}
			} else if m.snap.View == logic.ViewAuthorized {
				if m.sender.Send(logic.CommandPressStart) {
					m.snap.Engaged = true
				}
			}
		case "r":
			if m.snap.View == logic.ViewError {
				m.sender.Send(logic.CommandRetry)
			}
		case "a":
			if m.snap.View == logic.ViewUnauthorized {
				m.sender.Send(logic.CommandAuthorize)
			}
		}
	}
	return m, nil
}

// View renders the current screen.
func (m Model) View() string {
	var body string
	hint := "q quit"

	switch m.snap.View {
	case logic.ViewError:
		lines := []string{errorStyle.Render(m.snap.ErrorKind.Message())}
		if m.snap.ErrorDetail != "" {
			lines = append(lines, dimStyle.Render(m.snap.ErrorDetail))
		}
		body = strings.Join(lines, "\n")
		hint = "r retry · q quit"
	case logic.ViewUnauthorized:
		body = "Heart rate access is required to feel your heartbeat."
		hint = "a grant access · q quit"
	case logic.ViewAuthorized:
		body = m.renderHeart()
		hint = "space hold/release · q quit"
	default:
		body = dimStyle.Render("Checking heart rate access…")
	}

	box := boxStyle
	if m.width > 0 {
		box = box.Width(max(30, m.width-4))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("♥ HEARTBEAT HAPTIC"),
		box.Render(body),
		dimStyle.Render(hint),
	)
}

func (m Model) renderHeart() string {
	reading := "waiting for a reading"
	if m.snap.HasReading {
		reading = fmt.Sprintf("%.0f bpm", m.snap.BPM)
	}

	heart := "♡"
	state := "released"
	if m.snap.Engaged {
		state = fmt.Sprintf("holding · %d pulses", m.snap.SessionPulses)
		// beat on every pulse
		if m.snap.SessionPulses%2 == 1 {
			heart = "♥♥♥"
		} else {
			heart = "♥"
		}
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		heartStyle.Render(heart),
		reading,
		dimStyle.Render(state),
	)
}
