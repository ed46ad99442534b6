// Package loop runs queued tasks one at a time on a single goroutine.
//
// Work that completes elsewhere, such as an HTTP response read on a worker
// goroutine, is handed back with Post so that everything touching the
// document and its callbacks runs in one place.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrLoopClosed is returned when posting to or running a closed loop.
	ErrLoopClosed = errors.New("loop: closed")
	// ErrRunning is returned when Run is called while the loop is already running.
	ErrRunning = errors.New("loop: already running")
)

// Loop is a FIFO task queue with timers. All methods are safe for
// concurrent use; tasks run on the goroutine that called Run.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	timers  map[*Timer]struct{}
	holds   int
	closed  bool
	running bool
	wake    chan struct{}
	logger  *zap.Logger
}

// New creates a loop. A nil logger discards log output.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		timers: make(map[*Timer]struct{}),
		wake:   make(chan struct{}, 1),
		logger: logger.Named("loop"),
	}
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
	return nil
}

// Hold keeps RunUntilIdle from returning until the returned release func is
// called. Callers use it to cover work in flight on other goroutines.
// Calling release more than once has no further effect.
func (l *Loop) Hold() (release func()) {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// Run processes tasks until ctx is done or the loop is closed. It returns
// nil after Close and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, false)
}

// RunUntilIdle processes tasks until the queue is empty and no timers or
// holds are outstanding.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	return l.run(ctx, true)
}

func (l *Loop) run(ctx context.Context, untilIdle bool) error {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return ErrLoopClosed
	case l.running:
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil
		}
		if len(l.tasks) > 0 {
			fn := l.tasks[0]
			l.tasks[0] = nil
			l.tasks = l.tasks[1:]
			l.mu.Unlock()
			l.runTask(fn)
			continue
		}
		idle := len(l.timers) == 0 && l.holds == 0
		l.mu.Unlock()

		if untilIdle && idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Close stops the loop. Queued tasks and pending timers are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.tasks = nil
	timers := l.timers
	l.timers = make(map[*Timer]struct{})
	l.mu.Unlock()

	for t := range timers {
		t.t.Stop()
	}
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

// Timer is a task scheduled with AfterFunc.
type Timer struct {
	l     *Loop
	t     *time.Timer
	state atomic.Int32
}

// AfterFunc runs fn on the loop after d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (*Timer, error) {
	t := &Timer{l: l}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLoopClosed
	}
	l.timers[t] = struct{}{}
	t.t = time.AfterFunc(d, func() { l.fire(t, fn) })
	return t, nil
}

// fire runs on the time package's goroutine and moves the timer's task
// onto the queue.
func (l *Loop) fire(t *Timer, fn func()) {
	l.mu.Lock()
	if _, ok := l.timers[t]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.timers, t)
	l.tasks = append(l.tasks, func() {
		if t.state.CompareAndSwap(timerPending, timerFired) {
			fn()
		}
	})
	l.mu.Unlock()
	l.signal()
}

// Stop cancels the timer. It returns false if the task already ran or the
// timer was already stopped.
func (t *Timer) Stop() bool {
	if !t.state.CompareAndSwap(timerPending, timerStopped) {
		return false
	}
	t.t.Stop()
	t.l.mu.Lock()
	delete(t.l.timers, t)
	t.l.mu.Unlock()
	t.l.signal()
	return true
}
