package deferred

import "sync"

// Promise exposes the observing half of a Deferred. It cannot settle it.
type Promise struct {
	d *Deferred
}

// Done registers callbacks run when the Deferred resolves.
func (p *Promise) Done(cbs ...Callback) *Promise {
	p.d.Done(cbs...)
	return p
}

// Fail registers callbacks run when the Deferred rejects.
func (p *Promise) Fail(cbs ...Callback) *Promise {
	p.d.Fail(cbs...)
	return p
}

// Always registers cb for either outcome.
func (p *Promise) Always(cb Callback) *Promise {
	p.d.Always(cb)
	return p
}

// Then registers onSuccess and, when non-nil, onError.
func (p *Promise) Then(onSuccess, onError Callback) *Promise {
	p.d.Then(onSuccess, onError)
	return p
}

// State returns the state of the Deferred.
func (p *Promise) State() State { return p.d.State() }

// Args returns the settlement arguments, or nil while pending.
func (p *Promise) Args() []any { return p.d.Args() }

// When returns a Deferred that resolves once every input has resolved, with
// the first argument of each input in input order, or rejects with the
// context and arguments of the first input to reject. With no inputs it is
// already resolved.
func When(ds ...*Deferred) *Deferred {
	master := New()
	if len(ds) == 0 {
		return master.Resolve()
	}

	results := make([]any, len(ds))
	remaining := len(ds)
	var mu sync.Mutex

	for i, d := range ds {
		d.Then(func(_ any, args ...any) []any {
			mu.Lock()
			if len(args) > 0 {
				results[i] = args[0]
			}
			remaining--
			finished := remaining == 0
			mu.Unlock()
			if finished {
				master.ResolveWith(master, results...)
			}
			return nil
		}, func(this any, args ...any) []any {
			master.RejectWith(this, args...)
			return nil
		})
	}
	return master
}
