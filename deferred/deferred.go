// Package deferred implements a settle-once future with done and fail
// callback queues.
//
// A Deferred starts Pending and settles exactly once, to Resolved or
// Rejected, with a context value and an argument list. Callbacks queued
// while Pending run in registration order when the matching settlement
// happens; callbacks registered afterwards run immediately with the stored
// context and arguments.
package deferred

import (
	"sync"

	"go.uber.org/zap"
)

// State is the settlement state of a Deferred.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Callback receives the settlement context and arguments. Within one queue
// a non-nil return value replaces the arguments passed to the next callback;
// a nil return keeps them.
type Callback func(this any, args ...any) []any

var nopLogger = zap.NewNop()

// Deferred is safe for concurrent use. Callbacks never run while its lock
// is held, so they may register further callbacks or settle other
// Deferreds.
type Deferred struct {
	mu     sync.Mutex
	state  State
	ctx    any
	args   []any
	done   []Callback
	fail   []Callback
	logger *zap.Logger
}

// Option configures a Deferred.
type Option func(*Deferred)

// WithLogger sets the logger used to report ignored settlements.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Deferred) {
		if logger != nil {
			d.logger = logger.Named("deferred")
		}
	}
}

// New creates a pending Deferred.
func New(opts ...Option) *Deferred {
	d := &Deferred{logger: nopLogger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ResolveWith settles d as Resolved with ctx and args and drains the done
// queue. It has no effect if d is already settled.
func (d *Deferred) ResolveWith(ctx any, args ...any) *Deferred {
	d.settle(Resolved, ctx, args)
	return d
}

// Resolve is ResolveWith with d itself as the context.
func (d *Deferred) Resolve(args ...any) *Deferred {
	return d.ResolveWith(d, args...)
}

// RejectWith settles d as Rejected with ctx and args and drains the fail
// queue. It has no effect if d is already settled.
func (d *Deferred) RejectWith(ctx any, args ...any) *Deferred {
	d.settle(Rejected, ctx, args)
	return d
}

// Reject is RejectWith with d itself as the context.
func (d *Deferred) Reject(args ...any) *Deferred {
	return d.RejectWith(d, args...)
}

func (d *Deferred) settle(state State, ctx any, args []any) {
	d.mu.Lock()
	if d.state != Pending {
		current := d.state
		d.mu.Unlock()
		d.logger.Debug("settlement ignored",
			zap.Stringer("state", current), zap.Stringer("attempted", state))
		return
	}
	d.state = state
	d.ctx = ctx
	d.args = append([]any(nil), args...)
	queue := d.done
	if state == Rejected {
		queue = d.fail
	}
	d.done, d.fail = nil, nil
	d.mu.Unlock()

	drain(queue, ctx, d.args)
}

// drain runs the queue in order, threading replaced arguments through.
func drain(queue []Callback, ctx any, args []any) {
	for _, cb := range queue {
		if next := cb(ctx, args...); next != nil {
			args = next
		}
	}
}

// Done registers callbacks for resolution. They run now if d is already
// Resolved. Nil callbacks are ignored.
func (d *Deferred) Done(cbs ...Callback) *Deferred {
	d.add(Resolved, cbs)
	return d
}

// Fail registers callbacks for rejection. They run now if d is already
// Rejected. Nil callbacks are ignored.
func (d *Deferred) Fail(cbs ...Callback) *Deferred {
	d.add(Rejected, cbs)
	return d
}

// Always registers cb for either outcome.
func (d *Deferred) Always(cb Callback) *Deferred {
	d.add(Resolved, []Callback{cb})
	d.add(Rejected, []Callback{cb})
	return d
}

// Then registers onSuccess with Done and, when non-nil, onError with Fail.
func (d *Deferred) Then(onSuccess, onError Callback) *Deferred {
	d.add(Resolved, []Callback{onSuccess})
	d.add(Rejected, []Callback{onError})
	return d
}

func (d *Deferred) add(state State, cbs []Callback) {
	var live []Callback
	for _, cb := range cbs {
		if cb != nil {
			live = append(live, cb)
		}
	}
	if len(live) == 0 {
		return
	}

	d.mu.Lock()
	switch d.state {
	case Pending:
		if state == Resolved {
			d.done = append(d.done, live...)
		} else {
			d.fail = append(d.fail, live...)
		}
		d.mu.Unlock()
		return
	case state:
		ctx, args := d.ctx, d.args
		d.mu.Unlock()
		for _, cb := range live {
			cb(ctx, args...)
		}
	default:
		d.mu.Unlock()
	}
}

// State returns the current state.
func (d *Deferred) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Context returns the settlement context, or nil while Pending.
func (d *Deferred) Context() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// Args returns a copy of the settlement arguments, or nil while Pending.
func (d *Deferred) Args() []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Pending {
		return nil
	}
	return append([]any(nil), d.args...)
}

// Promise returns a read-only view of d.
func (d *Deferred) Promise() *Promise {
	return &Promise{d: d}
}
