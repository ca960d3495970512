package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/lifecycle"
)

func specialKey(k string) tea.KeyMsg {
	switch k {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func keyMsg(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// store is an in-memory backing store shared by the saver, deleter and
// loader.
type store struct {
	mu      sync.Mutex
	query   *domain.ScheduledQuery
	saves   []domain.SaveRequest
	saveErr error
	logins  int
}

func (s *store) Save(_ context.Context, req domain.SaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, req)
	if s.saveErr != nil {
		return s.saveErr
	}
	q := *s.query
	q.Name, q.SQLText, q.Schedule, q.Tags = req.Name, req.SQLText, req.Schedule, req.Tags
	s.query = &q
	return nil
}

func (s *store) Delete(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = nil
	return nil
}

func (s *store) inputs(requestor string) lifecycle.Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := lifecycle.Inputs{Requestor: requestor, DailyCallBudget: 100,
		TagCatalog: []domain.Tag{{ID: "t1", Name: "finance"}}}
	if s.query != nil {
		q := *s.query
		in.Query = &q
	}
	return in
}

func newTestModel(t *testing.T, requestor string) (Model, *store) {
	t.Helper()
	s := &store{query: &domain.ScheduledQuery{
		ID: "q1", Owner: "alice", ConnectionID: "memory", SQLText: "SELECT 1",
		Name: "revenue", Schedule: domain.CronSchedule("0 * * * *"), Tags: []string{"t1"},
	}}
	ctrl := lifecycle.NewController(s.inputs(requestor), lifecycle.Ports{
		Saver:            s,
		Deleter:          s,
		OnLoginRequested: func() { s.logins++ },
	}, nil)
	t.Cleanup(ctrl.Close)
	load := func(context.Context) (lifecycle.Inputs, error) { return s.inputs(requestor), nil }
	m := New(ctrl, load)
	for i := range m.fields {
		// Blinking cursors schedule timer commands on every keystroke.
		m.fields[i].Cursor.SetMode(cursor.CursorStatic)
	}
	return m, s
}

// press feeds a key and runs the resulting command chain to completion,
// the way the bubbletea runtime would.
func press(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		if _, quit := out.(tea.QuitMsg); quit {
			break
		}
		switch out.(type) {
		case opDoneMsg, inputsMsg:
		default:
			return m
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = press(t, m, keyMsg(string(r)))
	}
	return m
}

func TestPreview_ViewingRendersQuery(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "alice")
	out := m.View()
	assert.Contains(t, out, "revenue")
	assert.Contains(t, out, "24 calls/day")
	assert.Contains(t, out, "finance")
	assert.Contains(t, out, "e edit")
	assert.Contains(t, out, "never")
}

func TestPreview_EditAndSave(t *testing.T) {
	t.Parallel()
	m, s := newTestModel(t, "alice")

	m = press(t, m, keyMsg("e"))
	require.Equal(t, lifecycle.PhaseEditing, m.ctrl.State().Phase)
	assert.Equal(t, "revenue", m.fields[fieldName].Value())
	assert.Equal(t, "0 * * * *", m.fields[fieldSchedule].Value())
	assert.Contains(t, m.View(), lifecycle.NoticeSaveWarning)

	m = typeText(t, m, " v2")
	assert.Equal(t, "revenue v2", m.ctrl.View().Draft.Name)

	m = press(t, m, specialKey("tab"))
	m = press(t, m, specialKey("tab"))
	assert.Equal(t, fieldSchedule, m.focus)
	for range len("0 * * * *") {
		m = press(t, m, specialKey("backspace"))
	}
	m = typeText(t, m, "1800")
	assert.Equal(t, domain.FixedIntervalSchedule(1800), m.ctrl.View().Draft.Schedule)
	assert.Contains(t, m.View(), "24 → 48 (+24)")

	m = press(t, m, specialKey("enter"))
	assert.Equal(t, lifecycle.Succeeded(lifecycle.ActionSave, lifecycle.MessageSaved), m.ctrl.State())
	require.Len(t, s.saves, 1)
	assert.Equal(t, "revenue v2", s.saves[0].Name)
	assert.Equal(t, 1800, s.saves[0].Schedule.IntervalSeconds)
	assert.Contains(t, m.View(), lifecycle.MessageSaved)
	assert.Contains(t, m.View(), "48 calls/day")

	m = press(t, m, specialKey("enter"))
	assert.Equal(t, lifecycle.PhaseViewing, m.ctrl.State().Phase)
}

func TestPreview_EditAfterSaveWithoutLoader(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "alice")
	m.load = nil

	m = press(t, m, keyMsg("e"))
	m = typeText(t, m, " v2")
	m = press(t, m, specialKey("enter"))
	require.Equal(t, lifecycle.PhaseSucceeded, m.ctrl.State().Phase)
	assert.False(t, m.drafting)

	m = press(t, m, keyMsg("e"))
	require.Equal(t, lifecycle.PhaseEditing, m.ctrl.State().Phase)
	draft := m.ctrl.View().Draft
	require.NotNil(t, draft)
	assert.Equal(t, draft.Name, m.fields[fieldName].Value())
	assert.Equal(t, draft.SQLText, m.fields[fieldSQL].Value())
}

func TestPreview_InvalidScheduleBlocksSubmit(t *testing.T) {
	t.Parallel()
	m, s := newTestModel(t, "alice")
	m = press(t, m, keyMsg("e"))
	m = press(t, m, specialKey("tab"))
	m = press(t, m, specialKey("tab"))
	m = typeText(t, m, " *")

	assert.NotEmpty(t, m.ctrl.View().ScheduleError)
	m = press(t, m, specialKey("enter"))
	assert.Equal(t, lifecycle.PhaseEditing, m.ctrl.State().Phase)
	assert.NotEmpty(t, m.status)
	assert.Empty(t, s.saves)
}

func TestPreview_SaveFailureKeepsDraft(t *testing.T) {
	t.Parallel()
	m, s := newTestModel(t, "alice")
	s.saveErr = errors.New("backend down")

	m = press(t, m, keyMsg("e"))
	m = typeText(t, m, "!")
	m = press(t, m, specialKey("enter"))

	st := m.ctrl.State()
	assert.Equal(t, lifecycle.PhaseFailed, st.Phase)
	assert.Contains(t, m.View(), "backend down")
	assert.Equal(t, "revenue!", m.fields[fieldName].Value())

	m = press(t, m, specialKey("esc"))
	assert.Equal(t, lifecycle.PhaseViewing, m.ctrl.State().Phase)
	assert.False(t, m.drafting)
}

func TestPreview_RunNowNeedsTwoPresses(t *testing.T) {
	t.Parallel()
	m, s := newTestModel(t, "alice")

	m = press(t, m, keyMsg("r"))
	assert.Equal(t, lifecycle.Confirming(lifecycle.ActionRun), m.ctrl.State())
	assert.Contains(t, m.View(), "r again to run now")
	assert.Empty(t, s.saves)

	m = press(t, m, keyMsg("r"))
	assert.Equal(t, lifecycle.Succeeded(lifecycle.ActionRun, lifecycle.MessageRan), m.ctrl.State())
	require.Len(t, s.saves, 1)
	assert.Equal(t, "SELECT 1", s.saves[0].SQLText)
}

func TestPreview_DeleteEmptiesView(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "alice")

	m = press(t, m, keyMsg("d"))
	assert.Contains(t, m.View(), "d again to delete")
	m = press(t, m, specialKey("esc"))
	assert.Equal(t, lifecycle.PhaseViewing, m.ctrl.State().Phase)

	m = press(t, m, keyMsg("d"))
	m = press(t, m, keyMsg("d"))
	assert.True(t, m.ctrl.View().Empty)
	assert.Contains(t, m.View(), "No query selected.")

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestPreview_NonOwner(t *testing.T) {
	t.Parallel()
	m, s := newTestModel(t, "bob")

	out := m.View()
	assert.Contains(t, out, lifecycle.NoticeNotOwner)
	assert.Contains(t, out, "l log in")
	assert.NotContains(t, out, "e edit")

	m = press(t, m, keyMsg("e"))
	assert.Equal(t, lifecycle.PhaseViewing, m.ctrl.State().Phase)
	assert.NotEmpty(t, m.status)

	m = press(t, m, keyMsg("l"))
	assert.Equal(t, 1, s.logins)
	assert.Contains(t, m.View(), "Log in")
}

func TestPreview_QuitDismisses(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "alice")
	m = press(t, m, keyMsg("e"))

	next, cmd := m.Update(specialKey("ctrl+c"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, lifecycle.PhaseViewing, m.ctrl.State().Phase)
	assert.Empty(t, m.View())
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want domain.Schedule
	}{
		{"", domain.Schedule{}},
		{"3600", domain.FixedIntervalSchedule(3600)},
		{"90s", domain.FixedIntervalSchedule(90)},
		{" 0 * * * * ", domain.CronSchedule("0 * * * *")},
		{"@hourly", domain.CronSchedule("@hourly")},
	}
	for _, tt := range tests {
		got := ParseSchedule(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		if !got.IsZero() {
			assert.Equal(t, strings.TrimSuffix(strings.TrimSpace(tt.in), "s"), FormatSchedule(got))
		}
	}
}
