package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
)

// Inputs are supplied by the caller and replaced wholesale on every change.
// The controller never mutates them.
type Inputs struct {
	// Query is the persisted record; nil means nothing is selected.
	Query *domain.ScheduledQuery
	// Requestor is the logged-in identity, empty when logged out.
	Requestor string
	// TagCatalog resolves tag identifiers for display.
	TagCatalog []domain.Tag
	// DailyCallBudget is the current total of daily executions across all
	// scheduled queries, this one included.
	DailyCallBudget int
}

// Ports are the controller's outbound capabilities.
type Ports struct {
	Saver   Saver
	Deleter Deleter
	// OnLoginRequested starts the login or switch-user flow.
	OnLoginRequested func()
	// OnDismiss closes the surrounding view.
	OnDismiss func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithStrictTransitions makes illegal transitions panic instead of
// returning a *TransitionError. Intended for development builds and tests.
func WithStrictTransitions(strict bool) Option {
	return func(c *Controller) { c.strict = strict }
}

// Controller drives the lifecycle of one scheduled query. It is safe for
// concurrent use, but events are applied one at a time.
type Controller struct {
	ports  Ports
	logger *slog.Logger
	strict bool

	mu     sync.Mutex
	in     Inputs
	state  State
	draft  *Draft
	errMsg string // last delete failure; delete has no failed state

	inflight *Operation
	gen      uint64
	closed   bool
}

// NewController creates a controller in the Viewing state.
func NewController(in Inputs, ports Ports, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		ports:  ports,
		logger: logger,
		in:     in,
		state:  Viewing(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetInputs replaces the caller-supplied inputs. Selecting a different
// query (or none) resets the machine; a refreshed copy of the same query
// keeps the current state and draft.
func (c *Controller) SetInputs(in Inputs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev := c.in.Query
	c.in = in
	if in.Query == nil || prev == nil || prev.ID != in.Query.ID {
		c.resetLocked()
		return
	}

	// Lost rights or a run that started elsewhere invalidate pending intents.
	if c.state.Phase == PhaseConfirming && (!in.Query.CanEdit(in.Requestor) || in.Query.IsRunning()) {
		c.state = Viewing()
	}
	if c.state.Phase == PhaseEditing && !in.Query.CanEdit(in.Requestor) {
		c.state = Viewing()
		c.draft = nil
	}
}

// StartEdit enters edit mode with a draft copied from the persisted query.
func (c *Controller) StartEdit() error {
	_, err := c.dispatch(context.Background(), Event{Kind: EventStartEdit}, nil)
	return err
}

// EditName updates the draft name.
func (c *Controller) EditName(name string) error {
	return c.editField(FieldName, func(d *Draft) { d.Name = name })
}

// EditSQL updates the draft SQL text.
func (c *Controller) EditSQL(sqlText string) error {
	return c.editField(FieldSQL, func(d *Draft) { d.SQLText = sqlText })
}

// EditSchedule updates the draft schedule. An invalid schedule is still
// stored so the user can keep editing; its *domain.InvalidScheduleError is
// returned and exposed as View.ScheduleError.
func (c *Controller) EditSchedule(s domain.Schedule) error {
	if err := c.editField(FieldSchedule, func(d *Draft) { d.Schedule = s.Normalize() }); err != nil {
		return err
	}
	return estimate.Validate(s)
}

// EditTags replaces the draft tag list.
func (c *Controller) EditTags(tags []TagRef) error {
	return c.editField(FieldTags, func(d *Draft) { d.Tags = slices.Clone(tags) })
}

// RequestRunNow asks for an immediate run. The first call enters
// ConfirmingRun; a second consecutive call issues the save and returns its
// operation.
func (c *Controller) RequestRunNow(ctx context.Context) (*Operation, error) {
	return c.dispatch(ctx, Event{Kind: EventRequestRunNow}, nil)
}

// RequestDelete asks for deletion. The first call enters ConfirmingDelete;
// a second consecutive call issues the delete, returns to Viewing without
// waiting for it, and returns its operation.
func (c *Controller) RequestDelete(ctx context.Context) (*Operation, error) {
	return c.dispatch(ctx, Event{Kind: EventRequestDelete}, nil)
}

// Submit saves the draft.
func (c *Controller) Submit(ctx context.Context) (*Operation, error) {
	return c.dispatch(ctx, Event{Kind: EventSubmit}, nil)
}

// Cancel discards the draft or a pending confirmation.
func (c *Controller) Cancel() error {
	_, err := c.dispatch(context.Background(), Event{Kind: EventCancel}, nil)
	return err
}

// Acknowledge dismisses a success or failure message.
func (c *Controller) Acknowledge() error {
	_, err := c.dispatch(context.Background(), Event{Kind: EventAcknowledge}, nil)
	return err
}

// RequestLogin forwards to the login port. It does not touch the state.
func (c *Controller) RequestLogin() {
	if c.ports.OnLoginRequested != nil {
		c.ports.OnLoginRequested()
	}
}

// Dismiss closes the view: pending confirmations and drafts are discarded
// (an outstanding save keeps running) and the dismiss port is invoked.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if !c.closed && c.state.Phase != PhaseSaving {
		c.state = Viewing()
		c.draft = nil
		c.errMsg = ""
	}
	c.mu.Unlock()

	if c.ports.OnDismiss != nil {
		c.ports.OnDismiss()
	}
}

// Close detaches the controller. Operations still outstanding settle their
// handles but no longer touch controller state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.draft = nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) editField(f Field, apply func(*Draft)) error {
	_, err := c.dispatch(context.Background(), Event{Kind: EventEditField, Field: f}, apply)
	return err
}

func (c *Controller) dispatch(ctx context.Context, ev Event, apply func(*Draft)) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	q := c.in.Query
	if q == nil {
		return nil, ErrNoQuery
	}

	next, eff, err := Transition(c.state, ev, c.guardsLocked())
	if err != nil {
		c.rejectLocked(ev, err)
		return nil, err
	}

	prev := c.state
	c.state = next
	if ev.Kind != EventEditField {
		c.errMsg = ""
	}
	c.logger.Debug("lifecycle transition",
		"query", q.ID, "event", ev.String(), "from", prev.String(), "to", next.String(), "effect", eff.String())

	switch eff {
	case EffectSnapshotDraft:
		c.draft = snapshotDraft(q)
	case EffectUpdateDraft:
		if c.draft != nil && apply != nil {
			apply(c.draft)
		}
	case EffectDiscardDraft:
		c.draft = nil
	case EffectSave:
		req := c.draft.saveRequest(q)
		return c.startSaveLocked(ctx, ActionSave, req), nil
	case EffectRun:
		req := snapshotDraft(q).saveRequest(q)
		return c.startSaveLocked(ctx, ActionRun, req), nil
	case EffectDelete:
		return c.startDeleteLocked(ctx, q.ID), nil
	}
	return nil, nil
}

func (c *Controller) guardsLocked() Guards {
	q := c.in.Query
	g := Guards{
		CanEdit: q.CanEdit(c.in.Requestor),
		Running: q.IsRunning(),
		Busy:    c.inflight != nil,
	}
	if c.draft != nil {
		g.DraftInvalid = estimate.Validate(c.draft.Schedule)
	}
	return g
}

func (c *Controller) rejectLocked(ev Event, err error) {
	var te *TransitionError
	if errors.As(err, &te) {
		c.logger.Error("lifecycle: illegal transition", "event", ev.String(), "state", c.state.String())
		if c.strict {
			panic(err)
		}
		return
	}
	c.logger.Debug("lifecycle: event rejected", "event", ev.String(), "state", c.state.String(), "error", err)
}

func (c *Controller) startSaveLocked(ctx context.Context, a Action, req domain.SaveRequest) *Operation {
	op := newOperation(a)
	c.inflight = op
	c.gen++
	gen := c.gen
	saver := c.ports.Saver

	go func() {
		var err error
		if saver == nil {
			err = errors.New("no saver configured")
		} else {
			err = saver.Save(ctx, req)
		}
		if err != nil {
			err = &domain.PersistenceError{Op: "save", Err: err}
		}
		c.settleSave(gen, op, err)
		op.finish(err)
	}()
	return op
}

func (c *Controller) settleSave(gen uint64, op *Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == op {
		c.inflight = nil
	}
	if c.closed || gen != c.gen || c.in.Query == nil || c.state.Phase != PhaseSaving {
		c.logger.Debug("lifecycle: dropping stale save result", "action", op.Action.String())
		return
	}

	ev := Event{Kind: EventSaveResolved}
	if err != nil {
		ev = Event{Kind: EventSaveRejected, Message: err.Error()}
		c.logger.Warn("lifecycle: save failed", "query", c.in.Query.ID, "error", err)
	}
	next, eff, terr := Transition(c.state, ev, c.guardsLocked())
	if terr != nil {
		c.rejectLocked(ev, terr)
		return
	}
	c.state = next
	if eff == EffectDiscardDraft {
		c.draft = nil
	}
}

func (c *Controller) startDeleteLocked(ctx context.Context, id string) *Operation {
	op := newOperation(ActionDelete)
	c.inflight = op
	deleter := c.ports.Deleter

	go func() {
		var err error
		if deleter == nil {
			err = errors.New("no deleter configured")
		} else {
			err = deleter.Delete(ctx, id)
		}
		if err != nil {
			err = &domain.PersistenceError{Op: "delete", Err: err}
		}
		c.settleDelete(id, op, err)
		op.finish(err)
	}()
	return op
}

func (c *Controller) settleDelete(id string, op *Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == op {
		c.inflight = nil
	}
	if err == nil || c.closed || c.in.Query == nil || c.in.Query.ID != id {
		return
	}
	c.logger.Warn("lifecycle: delete failed", "query", id, "error", err)
	c.errMsg = err.Error()
}

func (c *Controller) resetLocked() {
	c.state = Viewing()
	c.draft = nil
	c.errMsg = ""
	c.inflight = nil
	c.gen++
}
