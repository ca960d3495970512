package lifecycle

import (
	"context"
	"sync"

	"query-scheduler/internal/domain"
)

// Saver persists a scheduled query. Saving a query with an unchanged
// schedule is also how a run-now is requested; the backing store executes
// the query as a side effect of every save.
type Saver interface {
	Save(ctx context.Context, req domain.SaveRequest) error
}

// Deleter removes a scheduled query.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, req domain.SaveRequest) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, req domain.SaveRequest) error { return f(ctx, req) }

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, id string) error

// Delete implements Deleter.
func (f DeleterFunc) Delete(ctx context.Context, id string) error { return f(ctx, id) }

// Operation is a handle on an outstanding save or delete. The controller
// has already applied the outcome to its state by the time Done is closed.
type Operation struct {
	Action Action

	done chan struct{}
	once sync.Once
	err  error
}

func newOperation(a Action) *Operation {
	return &Operation{Action: a, done: make(chan struct{})}
}

// Done is closed once the operation has settled.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Err returns the *domain.PersistenceError of a failed operation, or nil.
// It must only be called after Done is closed.
func (o *Operation) Err() error { return o.err }

// Wait blocks until the operation settles or ctx is done.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Operation) finish(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}
