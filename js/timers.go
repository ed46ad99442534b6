package js

import (
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vquery/loop"
)

// timer represents a scheduled timer (setTimeout or setInterval).
type timer struct {
	id       int
	callback goja.Callable
	args     []goja.Value
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	handle   *loop.Timer
}

// timerManager tracks the loop timers behind setTimeout and setInterval.
type timerManager struct {
	timers map[int]*timer
	nextID int
	mu     sync.Mutex
}

func newTimerManager() *timerManager {
	return &timerManager{
		timers: make(map[int]*timer),
		nextID: 1,
	}
}

// schedule arms t on the loop. One-shot timers forget themselves after
// firing; interval timers rearm unless cleared by their callback.
func (tm *timerManager) schedule(r *Runtime, t *timer, delay time.Duration) error {
	handle, err := r.loop.AfterFunc(delay, func() {
		tm.mu.Lock()
		_, live := tm.timers[t.id]
		tm.mu.Unlock()
		if !live {
			return
		}

		r.call(t.callback, goja.Undefined(), t.args...)

		tm.mu.Lock()
		_, live = tm.timers[t.id]
		if t.interval == 0 {
			delete(tm.timers, t.id)
		}
		tm.mu.Unlock()
		if live && t.interval > 0 {
			if err := tm.schedule(r, t, t.interval); err != nil {
				tm.clear(t.id)
			}
		}
	})
	if err != nil {
		return err
	}
	tm.mu.Lock()
	t.handle = handle
	tm.mu.Unlock()
	return nil
}

func (tm *timerManager) add(r *Runtime, callback goja.Callable, delay, interval time.Duration, args []goja.Value) int {
	tm.mu.Lock()
	id := tm.nextID
	tm.nextID++
	t := &timer{id: id, callback: callback, args: args, interval: interval}
	tm.timers[id] = t
	tm.mu.Unlock()

	if err := tm.schedule(r, t, delay); err != nil {
		tm.clear(id)
		return 0
	}
	return id
}

// clear stops a timer by ID.
func (tm *timerManager) clear(id int) {
	tm.mu.Lock()
	t, ok := tm.timers[id]
	delete(tm.timers, id)
	tm.mu.Unlock()
	if ok && t.handle != nil {
		t.handle.Stop()
	}
}

// pending returns the number of live timers.
func (tm *timerManager) pending() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.timers)
}

// setupTimers creates setTimeout, setInterval, clearTimeout and clearInterval.
func (r *Runtime) setupTimers() {
	set := func(repeat bool) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			callback, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				return goja.Undefined()
			}

			delay := call.Argument(1).ToInteger()
			if delay < 0 {
				delay = 0
			}
			d := time.Duration(delay) * time.Millisecond

			var args []goja.Value
			if len(call.Arguments) > 2 {
				args = call.Arguments[2:]
			}

			var interval time.Duration
			if repeat {
				// Minimum interval of 4ms
				interval = max(d, 4*time.Millisecond)
				d = interval
			}
			return r.vm.ToValue(r.timers.add(r, callback, d, interval, args))
		}
	}
	cancel := func(call goja.FunctionCall) goja.Value {
		r.timers.clear(int(call.Argument(0).ToInteger()))
		return goja.Undefined()
	}

	r.vm.Set("setTimeout", set(false))
	r.vm.Set("setInterval", set(true))
	r.vm.Set("clearTimeout", cancel)
	r.vm.Set("clearInterval", cancel)
}
