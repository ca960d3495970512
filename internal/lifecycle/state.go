// Package lifecycle implements the interaction state machine for viewing,
// editing, re-running and deleting a single scheduled query.
//
// The machine is split in two: Transition is a pure function from
// (state, event, guards) to (state, effect), and Controller owns the draft,
// applies effects and runs the injected save/delete operations.
package lifecycle

import "fmt"

// Phase is the coarse lifecycle state.
type Phase int

// Lifecycle phases.
const (
	PhaseViewing Phase = iota
	PhaseEditing
	PhaseConfirming
	PhaseSaving
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseViewing:
		return "Viewing"
	case PhaseEditing:
		return "Editing"
	case PhaseConfirming:
		return "Confirming"
	case PhaseSaving:
		return "Saving"
	case PhaseSucceeded:
		return "Succeeded"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Action names the operation a state refers to. In Confirming it is the
// action awaiting a second request; in Saving, Succeeded and Failed it is
// the operation that was issued.
type Action int

// Actions.
const (
	ActionNone Action = iota
	ActionSave
	ActionRun
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "None"
	case ActionSave:
		return "Save"
	case ActionRun:
		return "Run"
	case ActionDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Messages shown after a successful operation.
const (
	MessageSaved = "Query saved successfully!"
	MessageRan   = "Query ran successfully."
)

// State is the tagged union of lifecycle states. Only the fields relevant
// to Phase are set; constructors below keep the rest zero.
type State struct {
	Phase   Phase
	Action  Action
	Message string
}

// Viewing is the initial state.
func Viewing() State { return State{Phase: PhaseViewing} }

// Editing holds a draft.
func Editing() State { return State{Phase: PhaseEditing} }

// Confirming waits for a repeat of the request for a.
func Confirming(a Action) State { return State{Phase: PhaseConfirming, Action: a} }

// Saving has an outstanding save issued for a (ActionSave or ActionRun).
func Saving(a Action) State { return State{Phase: PhaseSaving, Action: a} }

// Succeeded reports a resolved save.
func Succeeded(a Action, message string) State {
	return State{Phase: PhaseSucceeded, Action: a, Message: message}
}

// Failed reports a rejected save.
func Failed(a Action, message string) State {
	return State{Phase: PhaseFailed, Action: a, Message: message}
}

// HasDraft reports whether the controller keeps a draft in this state. A
// failed edit-save keeps its draft so the user can retry.
func (s State) HasDraft() bool {
	switch s.Phase {
	case PhaseEditing:
		return true
	case PhaseSaving, PhaseFailed:
		return s.Action == ActionSave
	default:
		return false
	}
}

func (s State) String() string {
	switch s.Phase {
	case PhaseConfirming:
		return "Confirming" + s.Action.String()
	case PhaseSaving:
		return fmt.Sprintf("Saving(%s)", s.Action)
	case PhaseSucceeded, PhaseFailed:
		return fmt.Sprintf("%s(%s)", s.Phase, s.Message)
	default:
		return s.Phase.String()
	}
}

// EventKind enumerates user intents and operation outcomes.
type EventKind int

// Events.
const (
	EventStartEdit EventKind = iota
	EventEditField
	EventRequestRunNow
	EventRequestDelete
	EventSubmit
	EventCancel
	EventAcknowledge
	EventSaveResolved
	EventSaveRejected
)

func (k EventKind) String() string {
	switch k {
	case EventStartEdit:
		return "startEdit"
	case EventEditField:
		return "editField"
	case EventRequestRunNow:
		return "requestRunNow"
	case EventRequestDelete:
		return "requestDelete"
	case EventSubmit:
		return "submit"
	case EventCancel:
		return "cancel"
	case EventAcknowledge:
		return "acknowledge"
	case EventSaveResolved:
		return "saveResolved"
	case EventSaveRejected:
		return "saveRejected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Field names an editable draft field.
type Field int

// Draft fields.
const (
	FieldName Field = iota
	FieldSQL
	FieldSchedule
	FieldTags
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldSQL:
		return "sql"
	case FieldSchedule:
		return "schedule"
	case FieldTags:
		return "tags"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Event is one input to the state machine.
type Event struct {
	Kind    EventKind
	Field   Field  // EventEditField only
	Message string // EventSaveRejected only
}

func (e Event) String() string {
	if e.Kind == EventEditField {
		return fmt.Sprintf("editField(%s)", e.Field)
	}
	return e.Kind.String()
}

// Guards are the externally resolved preconditions for a transition.
type Guards struct {
	CanEdit bool // requestor owns the query
	Running bool // last execution is still running
	Busy    bool // a save or delete is outstanding
	// DraftInvalid is the validation error of the draft's schedule, if any.
	DraftInvalid error
}

// Effect is the side effect the controller performs after a transition.
type Effect int

// Effects.
const (
	EffectNone Effect = iota
	EffectSnapshotDraft
	EffectUpdateDraft
	EffectDiscardDraft
	EffectSave
	EffectRun
	EffectDelete
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectSnapshotDraft:
		return "snapshotDraft"
	case EffectUpdateDraft:
		return "updateDraft"
	case EffectDiscardDraft:
		return "discardDraft"
	case EffectSave:
		return "save"
	case EffectRun:
		return "run"
	case EffectDelete:
		return "delete"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// Transition computes the next state and effect for ev in s. On error the
// returned state equals s and the effect is EffectNone.
func Transition(s State, ev Event, g Guards) (State, Effect, error) {
	switch s.Phase {
	case PhaseViewing:
		return fromViewing(s, ev, g)
	case PhaseConfirming:
		return fromConfirming(s, ev, g)
	case PhaseEditing:
		return fromEditing(s, ev, g)
	case PhaseSaving:
		return fromSaving(s, ev)
	case PhaseSucceeded:
		// A new intent implies the message was seen.
		if ev.Kind == EventAcknowledge || ev.Kind == EventCancel {
			return Viewing(), EffectNone, nil
		}
		next, eff, err := fromViewing(Viewing(), ev, g)
		if err != nil {
			return s, EffectNone, err
		}
		return next, eff, nil
	case PhaseFailed:
		return fromFailed(s, ev, g)
	default:
		return s, EffectNone, illegal(s, ev)
	}
}

func fromViewing(s State, ev Event, g Guards) (State, Effect, error) {
	switch ev.Kind {
	case EventStartEdit:
		if err := mutationGuard(ev, g); err != nil {
			return s, EffectNone, err
		}
		return Editing(), EffectSnapshotDraft, nil
	case EventRequestRunNow:
		if err := mutationGuard(ev, g); err != nil {
			return s, EffectNone, err
		}
		return Confirming(ActionRun), EffectNone, nil
	case EventRequestDelete:
		if err := mutationGuard(ev, g); err != nil {
			return s, EffectNone, err
		}
		return Confirming(ActionDelete), EffectNone, nil
	case EventCancel, EventAcknowledge:
		return s, EffectNone, nil
	default:
		return s, EffectNone, illegal(s, ev)
	}
}

func fromConfirming(s State, ev Event, g Guards) (State, Effect, error) {
	repeat := (s.Action == ActionDelete && ev.Kind == EventRequestDelete) ||
		(s.Action == ActionRun && ev.Kind == EventRequestRunNow)
	if !repeat {
		switch ev.Kind {
		case EventSaveResolved, EventSaveRejected:
			return s, EffectNone, illegal(s, ev)
		}
		return Viewing(), EffectNone, nil
	}
	if err := mutationGuard(ev, g); err != nil {
		return s, EffectNone, err
	}
	if g.Busy {
		return s, EffectNone, &GuardError{Event: ev, State: s, Reason: ReasonBusy}
	}
	if s.Action == ActionDelete {
		// Deletion is optimistic: the record disappearing from the
		// caller's inputs is the success signal.
		return Viewing(), EffectDelete, nil
	}
	return Saving(ActionRun), EffectRun, nil
}

func fromEditing(s State, ev Event, g Guards) (State, Effect, error) {
	switch ev.Kind {
	case EventEditField:
		return s, EffectUpdateDraft, nil
	case EventSubmit:
		return submit(s, ev, g)
	case EventCancel:
		return Viewing(), EffectDiscardDraft, nil
	default:
		return s, EffectNone, illegal(s, ev)
	}
}

func fromSaving(s State, ev Event) (State, Effect, error) {
	switch ev.Kind {
	case EventSaveResolved:
		msg := MessageSaved
		if s.Action == ActionRun {
			msg = MessageRan
		}
		if s.Action == ActionSave {
			return Succeeded(s.Action, msg), EffectDiscardDraft, nil
		}
		return Succeeded(s.Action, msg), EffectNone, nil
	case EventSaveRejected:
		return Failed(s.Action, ev.Message), EffectNone, nil
	case EventEditField:
		// Non-schedule edits land in the retained draft. The schedule
		// stays locked until the save settles.
		if s.Action != ActionSave {
			return s, EffectNone, illegal(s, ev)
		}
		if ev.Field == FieldSchedule {
			return s, EffectNone, &GuardError{Event: ev, State: s, Reason: ReasonBusy}
		}
		return s, EffectUpdateDraft, nil
	default:
		return s, EffectNone, &GuardError{Event: ev, State: s, Reason: ReasonBusy}
	}
}

func fromFailed(s State, ev Event, g Guards) (State, Effect, error) {
	if s.Action != ActionSave {
		// A failed run-now leaves nothing to edit; behave as Viewing.
		if ev.Kind == EventAcknowledge || ev.Kind == EventCancel {
			return Viewing(), EffectNone, nil
		}
		next, eff, err := fromViewing(Viewing(), ev, g)
		if err != nil {
			return s, EffectNone, err
		}
		return next, eff, nil
	}
	switch ev.Kind {
	case EventEditField:
		return Editing(), EffectUpdateDraft, nil
	case EventSubmit:
		return submit(s, ev, g)
	case EventAcknowledge:
		return Editing(), EffectNone, nil
	case EventCancel:
		return Viewing(), EffectDiscardDraft, nil
	default:
		return s, EffectNone, illegal(s, ev)
	}
}

func submit(s State, ev Event, g Guards) (State, Effect, error) {
	if g.Busy {
		return s, EffectNone, &GuardError{Event: ev, State: s, Reason: ReasonBusy}
	}
	if g.DraftInvalid != nil {
		return s, EffectNone, g.DraftInvalid
	}
	return Saving(ActionSave), EffectSave, nil
}
