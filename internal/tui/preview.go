// Package tui renders the interactive preview of a single scheduled query
// on top of a lifecycle.Controller.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/lifecycle"
)

// Loader fetches fresh controller inputs. It is called after every settled
// operation; a deleted query is reported as Inputs with a nil Query.
type Loader func(ctx context.Context) (lifecycle.Inputs, error)

type field int

const (
	fieldName field = iota
	fieldSQL
	fieldSchedule
	fieldTags
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "SQL", "Schedule", "Tags"}

type opDoneMsg struct{ op *lifecycle.Operation }

type inputsMsg struct {
	in  lifecycle.Inputs
	err error
}

// Option configures a Model.
type Option func(*Model)

// WithLoginHint sets the status line shown after the login key.
func WithLoginHint(hint string) Option {
	return func(m *Model) { m.loginHint = hint }
}

// Model is the bubbletea model of the preview.
type Model struct {
	ctrl *lifecycle.Controller
	load Loader

	fields   [fieldCount]textinput.Model
	focus    field
	drafting bool

	status    string
	loginHint string
	width     int
	quitting  bool
}

// New creates a preview model driving ctrl.
func New(ctrl *lifecycle.Controller, load Loader, opts ...Option) Model {
	m := Model{ctrl: ctrl, load: load, loginHint: "Log in with a different identity and reopen the preview."}
	placeholders := [fieldCount]string{"optional display name", "SELECT ...", "cron expression or seconds", "tag ids, comma separated"}
	for i := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 0
		m.fields[i] = ti
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case opDoneMsg:
		m.syncFields()
		return m, m.refresh()
	case inputsMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.ctrl.SetInputs(msg.in)
		m.syncFields()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	m.status = ""

	v := m.ctrl.View()
	if v.Empty {
		switch msg.String() {
		case "q", "esc", "enter":
			return m.quit()
		}
		return m, nil
	}
	if v.Draft != nil {
		return m.editingKey(msg, v)
	}
	return m.viewingKey(msg)
}

func (m Model) viewingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var (
		op  *lifecycle.Operation
		err error
	)
	switch msg.String() {
	case "e":
		err = m.ctrl.StartEdit()
	case "d":
		op, err = m.ctrl.RequestDelete(context.Background())
	case "r":
		op, err = m.ctrl.RequestRunNow(context.Background())
	case "enter":
		err = m.ctrl.Acknowledge()
	case "esc":
		err = m.ctrl.Cancel()
	case "l":
		m.ctrl.RequestLogin()
		m.status = m.loginHint
	case "q":
		return m.quit()
	default:
		return m, nil
	}
	m.report(err)
	m.syncFields()
	return m, waitFor(op)
}

func (m Model) editingKey(msg tea.KeyMsg, v lifecycle.View) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.report(m.ctrl.Cancel())
		m.syncFields()
		return m, nil
	case "tab", "down":
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		if v.State.Phase == lifecycle.PhaseSaving {
			return m, nil
		}
		op, err := m.ctrl.Submit(context.Background())
		m.report(err)
		m.syncFields()
		return m, waitFor(op)
	}

	var cmd tea.Cmd
	before := m.fields[m.focus].Value()
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	if value := m.fields[m.focus].Value(); value != before {
		m.report(m.applyField(m.focus, value))
	}
	return m, cmd
}

func (m Model) applyField(f field, value string) error {
	switch f {
	case fieldName:
		return m.ctrl.EditName(value)
	case fieldSQL:
		return m.ctrl.EditSQL(value)
	case fieldSchedule:
		return m.ctrl.EditSchedule(ParseSchedule(value))
	case fieldTags:
		return m.ctrl.EditTags(lifecycle.TagIDs(splitTags(value)...))
	}
	return nil
}

// syncFields loads the draft into the text inputs when a draft appears and
// blurs them when it goes away.
func (m *Model) syncFields() {
	d := m.ctrl.View().Draft
	if d == nil {
		m.drafting = false
		for i := range m.fields {
			m.fields[i].Blur()
		}
		return
	}
	if m.drafting {
		return
	}
	m.drafting = true
	m.fields[fieldName].SetValue(d.Name)
	m.fields[fieldSQL].SetValue(d.SQLText)
	m.fields[fieldSchedule].SetValue(FormatSchedule(d.Schedule))
	m.fields[fieldTags].SetValue(strings.Join(lifecycle.FormatTags(d.Tags), ", "))
	for i := range m.fields {
		m.fields[i].CursorEnd()
	}
	m.setFocus(fieldName)
}

func (m *Model) setFocus(f field) {
	m.focus = f
	for i := range m.fields {
		if field(i) == f {
			m.fields[i].Focus()
		} else {
			m.fields[i].Blur()
		}
	}
}

func (m *Model) report(err error) {
	if err != nil {
		m.status = err.Error()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.ctrl.Dismiss()
	m.quitting = true
	return m, tea.Quit
}

func (m Model) refresh() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		in, err := load(ctx)
		return inputsMsg{in: in, err: err}
	}
}

func waitFor(op *lifecycle.Operation) tea.Cmd {
	if op == nil {
		return nil
	}
	return func() tea.Msg {
		<-op.Done()
		return opDoneMsg{op: op}
	}
}

// ParseSchedule reads a schedule typed by the user: a whole number (with an
// optional "s" suffix) is an interval in seconds, anything else a cron
// expression.
func ParseSchedule(s string) domain.Schedule {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Schedule{}
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(s, "s")); err == nil {
		return domain.FixedIntervalSchedule(n)
	}
	return domain.CronSchedule(s)
}

// FormatSchedule is the inverse of ParseSchedule.
func FormatSchedule(s domain.Schedule) string {
	switch s.Kind() {
	case domain.ScheduleKindInterval:
		return strconv.Itoa(s.IntervalSeconds)
	case domain.ScheduleKindCron:
		return s.Cron
	default:
		return ""
	}
}

func splitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.ctrl.View()
	if v.Empty {
		return boxStyle.Render("No query selected.") + "\n" + helpStyle.Render("q quit") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(truncate(v.Title, m.width-4)))
	b.WriteString("  ")
	b.WriteString(stateStyle.Render(v.State.Phase.String()))
	b.WriteString("\n\n")

	q := v.Query
	row(&b, "Owner", q.Owner)
	row(&b, "Connection", q.ConnectionID)
	if v.Draft == nil {
		row(&b, "SQL", q.SQLText)
		row(&b, "Schedule", fmt.Sprintf("%s  (%d calls/day)", q.Schedule, v.QueryCalls))
		row(&b, "Tags", renderTags(v.Tags))
	}
	row(&b, "Last run", renderExecution(q.LastExecution))
	if q.NextScheduledAt != nil {
		row(&b, "Next run", q.NextScheduledAt.Local().Format(time.DateTime))
	}

	if v.Draft != nil {
		b.WriteString("\n")
		for i := range m.fields {
			style := labelStyle
			if m.drafting && field(i) == m.focus {
				style = focusStyle
			}
			b.WriteString(style.Render(fieldLabels[i]))
			b.WriteString(m.fields[i].View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(renderVolume(v))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.SuccessMessage != "" {
		b.WriteString(successStyle.Render(v.SuccessMessage) + "\n")
	}
	if v.ErrorMessage != "" {
		b.WriteString(errorStyle.Render(v.ErrorMessage) + "\n")
	}
	if v.Notice != "" {
		b.WriteString(noticeStyle.Render(v.Notice) + "\n")
	}
	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(helpLine(v)))
	b.WriteString("\n")
	return boxStyle.Render(b.String()) + "\n"
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func renderTags(tags []domain.Tag) string {
	if len(tags) == 0 {
		return "-"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		style := tagStyle
		if t.Color != "" {
			style = style.Background(lipgloss.Color(t.Color))
		}
		parts[i] = style.Render(t.Name)
	}
	return strings.Join(parts, " ")
}

func renderExecution(e *domain.Execution) string {
	if e == nil {
		return "never"
	}
	s := fmt.Sprintf("%s at %s", e.Status, e.StartedAt.Local().Format(time.DateTime))
	if e.CompletedAt != nil {
		s += fmt.Sprintf(", %d rows in %s", e.RowCount, e.Duration.Round(time.Millisecond))
	}
	if e.ErrorMessage != nil {
		s += ": " + *e.ErrorMessage
	}
	return s
}

func renderVolume(v lifecycle.View) string {
	if v.ScheduleError != "" {
		return errorStyle.Render(v.ScheduleError)
	}
	if v.DraftCalls == nil {
		return ""
	}
	return fmt.Sprintf("Daily calls: %d → %d (%+d); all queries: %d/day",
		v.QueryCalls, *v.DraftCalls, *v.VolumeDelta, *v.ProjectedDailyCalls)
}

func helpLine(v lifecycle.View) string {
	var keys []string
	a := v.Actions
	if v.State.Phase == lifecycle.PhaseConfirming {
		switch v.State.Action {
		case lifecycle.ActionDelete:
			keys = append(keys, "d again to delete")
		case lifecycle.ActionRun:
			keys = append(keys, "r again to run now")
		}
	} else {
		if a.Edit {
			keys = append(keys, "e edit")
		}
		if a.Delete {
			keys = append(keys, "d delete")
		}
		if a.RunNow {
			keys = append(keys, "r run now")
		}
	}
	if a.Submit {
		keys = append(keys, "tab next field", "enter save")
	}
	if a.Acknowledge && !a.Submit {
		keys = append(keys, "enter ok")
	}
	if a.Cancel {
		keys = append(keys, "esc cancel")
	}
	if a.Login {
		keys = append(keys, "l log in")
	}
	if v.Draft == nil {
		keys = append(keys, "q quit")
	}
	return strings.Join(keys, " • ")
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 && width > 1 {
		return string(r[:width-1]) + "…"
	}
	return s
}
