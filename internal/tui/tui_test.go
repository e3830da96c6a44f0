package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
	"github.com/sweeney/heartbeat-haptic/internal/status"
)

type recordingSender struct {
	cmds []logic.Command
	full bool
}

func (r *recordingSender) Send(cmd logic.Command) bool {
	if r.full {
		return false
	}
	r.cmds = append(r.cmds, cmd)
	return true
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func refreshed(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := update(t, m, refreshMsg(time.Now()))
	require.NotNil(t, cmd, "refresh must schedule the next tick")
	return m
}

func TestLoadingView(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	m := New(tr, &recordingSender{}, 0)
	assert.Contains(t, m.View(), "Checking heart rate access")
	assert.NotNil(t, m.Init())
}

func TestRetryOnlyInErrorView(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	m, _ = update(t, m, key("r"))
	assert.Empty(t, s.cmds)

	tr.SetView(logic.ViewError, logic.ErrorCheckFailed, "timeout")
	m = refreshed(t, m)
	assert.Contains(t, m.View(), "Could not check heart rate access.")
	assert.Contains(t, m.View(), "timeout")

	_, _ = update(t, m, key("r"))
	assert.Equal(t, []logic.Command{logic.CommandRetry}, s.cmds)
}

func TestAuthorizeOnlyInUnauthorizedView(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	tr.SetView(logic.ViewUnauthorized, "", "")
	m = refreshed(t, m)
	assert.Contains(t, m.View(), "a grant access")

	_, _ = update(t, m, key("a"))
	assert.Equal(t, []logic.Command{logic.CommandAuthorize}, s.cmds)
}

func TestSpaceTogglesPress(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	// ignored until authorized
	m, _ = update(t, m, key(" "))
	assert.Empty(t, s.cmds)

	tr.SetView(logic.ViewAuthorized, "", "")
	tr.SetReading(64, time.Now())
	m = refreshed(t, m)
	assert.Contains(t, m.View(), "64 bpm")

	m, _ = update(t, m, key(" "))
	assert.True(t, m.snap.Engaged)
	m, _ = update(t, m, key(" "))
	assert.False(t, m.snap.Engaged)
	assert.Equal(t, []logic.Command{logic.CommandPressStart, logic.CommandPressEnd}, s.cmds)
}

func TestPressNotLatchedWhenQueueFull(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.SetView(logic.ViewAuthorized, "", "")
	s := &recordingSender{full: true}
	m := New(tr, s, time.Millisecond)

	m, _ = update(t, m, key(" "))
	assert.False(t, m.snap.Engaged)
}

func TestLeavingAuthorizedClearsPress(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.SetView(logic.ViewAuthorized, "", "")
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	m, _ = update(t, m, key(" "))
	require.True(t, m.snap.Engaged)

	tr.SetView(logic.ViewUnauthorized, "", "")
	m = refreshed(t, m)
	assert.False(t, m.snap.Engaged)
}

func TestSessionEndedElsewhereStartsOnNextSpace(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.SetView(logic.ViewAuthorized, "", "")
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	m, _ = update(t, m, key(" "))
	tr.StartSession("s", time.Now())
	m = refreshed(t, m)
	require.True(t, m.snap.Engaged)

	// released from the button or the web page while still authorized
	tr.EndSession()
	m = refreshed(t, m)
	assert.False(t, m.snap.Engaged)

	m, _ = update(t, m, key(" "))
	assert.True(t, m.snap.Engaged)
	assert.Equal(t, []logic.Command{logic.CommandPressStart, logic.CommandPressStart}, s.cmds)
}

func TestHeartBeatsWithPulses(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.SetView(logic.ViewAuthorized, "", "")
	m := New(tr, &recordingSender{}, time.Millisecond)

	tr.StartSession("s", time.Now())
	tr.RecordPulse(time.Now())
	m = refreshed(t, m)
	big := m.View()
	assert.Contains(t, big, "♥♥♥")
	assert.Contains(t, big, "1 pulses")

	tr.RecordPulse(time.Now())
	m = refreshed(t, m)
	assert.False(t, strings.Contains(m.View(), "♥♥♥"))
}

func TestQuitReleasesPress(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.SetView(logic.ViewAuthorized, "", "")
	s := &recordingSender{}
	m := New(tr, s, time.Millisecond)

	m, _ = update(t, m, key(" "))
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
	assert.Equal(t, []logic.Command{logic.CommandPressStart, logic.CommandPressEnd}, s.cmds)
}

func TestWindowSize(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	m := New(tr, &recordingSender{}, time.Millisecond)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, 80, m.width)
	assert.NotEmpty(t, m.View())
}
