package lifecycle

import (
	"errors"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
)

// Notices shown alongside the action row.
const (
	NoticeNotOwner    = "This query was created by another user. To modify, please log in as that user."
	NoticeLoggedOut   = "Log in to edit query."
	NoticeSaveWarning = "Saving will run the query immediately and replace its dataset with the new results."
)

// Actions lists which intents the presentation layer should offer.
type Actions struct {
	Edit        bool
	Delete      bool
	RunNow      bool
	Submit      bool
	Cancel      bool
	Acknowledge bool
	Login       bool
}

// View is a read-only snapshot for the presentation layer.
type View struct {
	// Empty is true when no query is selected; every other field is zero.
	Empty bool

	State   State
	QueryID string
	Title   string
	Query   *domain.ScheduledQuery
	Draft   *Draft

	CanEdit  bool
	LoggedIn bool
	Running  bool
	Actions  Actions

	// QueryCalls is the daily volume of the persisted schedule.
	QueryCalls int
	// DraftCalls, VolumeDelta and ProjectedDailyCalls are set while a
	// valid draft schedule exists.
	DraftCalls          *int
	VolumeDelta         *int
	ProjectedDailyCalls *int
	ScheduleError       string

	ErrorMessage   string
	SuccessMessage string
	Notice         string

	// Tags are the draft's tags while editing, the persisted ones
	// otherwise, resolved against the catalog.
	Tags []domain.Tag
}

// View builds a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.in.Query
	if q == nil || c.closed {
		return View{Empty: true}
	}

	v := View{
		State:    c.state,
		QueryID:  q.ID,
		Title:    q.Title(),
		Query:    q,
		Draft:    c.draft.clone(),
		CanEdit:  q.CanEdit(c.in.Requestor),
		LoggedIn: c.in.Requestor != "",
		Running:  q.IsRunning(),
	}

	// An unparsable persisted schedule contributes nothing.
	v.QueryCalls, _ = estimate.EstimateDailyCalls(q.Schedule)

	tagIDs := q.Tags
	if c.draft != nil {
		v.Title = draftTitle(c.draft, q)
		tagIDs = FormatTags(c.draft.Tags)
		c.fillVolumeLocked(&v)
	}
	v.Tags = resolveTags(tagIDs, c.in.TagCatalog)

	switch c.state.Phase {
	case PhaseSucceeded:
		v.SuccessMessage = c.state.Message
	case PhaseFailed:
		v.ErrorMessage = c.state.Message
	}
	if c.errMsg != "" {
		v.ErrorMessage = c.errMsg
	}

	v.Actions = actionsFor(c.state, v, c.inflight != nil)
	switch {
	case !v.LoggedIn:
		v.Notice = NoticeLoggedOut
	case !v.CanEdit:
		v.Notice = NoticeNotOwner
	case c.state.HasDraft():
		v.Notice = NoticeSaveWarning
	}
	return v
}

// fillVolumeLocked computes the draft's call volume relative to the
// persisted schedule, not to earlier draft values.
func (c *Controller) fillVolumeLocked(v *View) {
	calls, err := estimate.EstimateDailyCalls(c.draft.Schedule)
	if err != nil {
		var ise *domain.InvalidScheduleError
		if errors.As(err, &ise) {
			v.ScheduleError = ise.Error()
		} else {
			v.ScheduleError = err.Error()
		}
		return
	}
	delta := calls - v.QueryCalls
	projected := c.in.DailyCallBudget - v.QueryCalls + calls
	v.DraftCalls = &calls
	v.VolumeDelta = &delta
	v.ProjectedDailyCalls = &projected
}

func actionsFor(s State, v View, busy bool) Actions {
	if !v.CanEdit {
		return Actions{Login: true}
	}
	idle := !v.Running && !busy
	switch s.Phase {
	case PhaseViewing:
		return Actions{Edit: !v.Running, Delete: !v.Running, RunNow: !v.Running}
	case PhaseConfirming:
		return Actions{
			Delete: s.Action == ActionDelete && idle,
			RunNow: s.Action == ActionRun && idle,
			Cancel: true,
		}
	case PhaseEditing:
		return Actions{Submit: !busy && v.ScheduleError == "", Cancel: true}
	case PhaseSucceeded:
		return Actions{Acknowledge: true}
	case PhaseFailed:
		if s.Action == ActionSave {
			return Actions{Submit: !busy && v.ScheduleError == "", Cancel: true, Acknowledge: true}
		}
		return Actions{Edit: !v.Running, Delete: !v.Running, RunNow: !v.Running, Acknowledge: true}
	default:
		return Actions{}
	}
}

func draftTitle(d *Draft, q *domain.ScheduledQuery) string {
	if name := domain.NormalizeName(d.Name); name != "" {
		return name
	}
	if d.SQLText != "" {
		return d.SQLText
	}
	return q.Title()
}

// resolveTags maps identifiers to catalog entries, keeping order. Unknown
// identifiers are shown with the identifier as name.
func resolveTags(ids []string, catalog []domain.Tag) []domain.Tag {
	if len(ids) == 0 {
		return nil
	}
	byID := make(map[string]domain.Tag, len(catalog))
	for _, t := range catalog {
		byID[t.ID] = t
	}
	out := make([]domain.Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, domain.Tag{ID: id, Name: id})
	}
	return out
}
