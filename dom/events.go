package dom

import (
	"sync"
	"time"
)

// EventPhase represents the phase of event dispatch.
type EventPhase int

const (
	EventPhaseNone      EventPhase = 0
	EventPhaseCapturing EventPhase = 1
	EventPhaseAtTarget  EventPhase = 2
	EventPhaseBubbling  EventPhase = 3
)

// EventInit carries the options of the Event constructor.
type EventInit struct {
	Bubbles    bool
	Cancelable bool
	Detail     any
}

// Event represents a DOM event.
type Event struct {
	Type       string
	Bubbles    bool
	Cancelable bool
	Detail     any
	TimeStamp  time.Time

	// Data is an arbitrary value attached by the caller before a listener
	// runs. The event dispatcher stores bound handler data here.
	Data any

	target           *Node
	currentTarget    *Node
	phase            EventPhase
	path             []*Node
	defaultPrevented bool
	stopPropagation  bool
	stopImmediate    bool
	dispatching      bool
}

// NewEvent creates a new Event of the given type.
func NewEvent(eventType string, init EventInit) *Event {
	return &Event{
		Type:       eventType,
		Bubbles:    init.Bubbles,
		Cancelable: init.Cancelable,
		Detail:     init.Detail,
		TimeStamp:  time.Now(),
	}
}

// Target returns the node the event was dispatched to.
func (e *Event) Target() *Node { return e.target }

// CurrentTarget returns the node whose listeners are currently running.
func (e *Event) CurrentTarget() *Node { return e.currentTarget }

// EventPhase returns the current dispatch phase.
func (e *Event) EventPhase() EventPhase { return e.phase }

// ComposedPath returns the propagation path, target first. The path is
// empty outside of dispatch.
func (e *Event) ComposedPath() []*Node {
	if !e.dispatching {
		return nil
	}
	path := make([]*Node, len(e.path))
	copy(path, e.path)
	return path
}

// PreventDefault marks a cancelable event as canceled.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

// DefaultPrevented reports whether PreventDefault was called on a cancelable event.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation prevents the event from reaching further nodes.
func (e *Event) StopPropagation() { e.stopPropagation = true }

// StopImmediatePropagation also prevents remaining listeners on the current node.
func (e *Event) StopImmediatePropagation() {
	e.stopPropagation = true
	e.stopImmediate = true
}

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.stopPropagation }

// Listener is a native event listener. Listeners are identified by pointer:
// adding the same *Listener twice for the same type and capture flag is a no-op.
type Listener struct {
	Handle func(*Event)
}

// ListenerFunc wraps fn in a new Listener.
func ListenerFunc(fn func(*Event)) *Listener {
	return &Listener{Handle: fn}
}

// ListenerOptions represents addEventListener options.
type ListenerOptions struct {
	Capture bool
	Once    bool
}

// eventListener represents a registered event listener.
type eventListener struct {
	id       int
	listener *Listener
	options  ListenerOptions
	removed  bool
}

// EventTarget manages the native listeners of one node.
type EventTarget struct {
	listeners map[string][]*eventListener
	nextID    int
	mu        sync.RWMutex
}

func newEventTarget() *EventTarget {
	return &EventTarget{
		listeners: make(map[string][]*eventListener),
	}
}

func (et *EventTarget) add(eventType string, l *Listener, opts ListenerOptions) bool {
	et.mu.Lock()
	defer et.mu.Unlock()

	for _, existing := range et.listeners[eventType] {
		if existing.listener == l && existing.options.Capture == opts.Capture {
			return false
		}
	}

	et.nextID++
	et.listeners[eventType] = append(et.listeners[eventType], &eventListener{
		id:       et.nextID,
		listener: l,
		options:  opts,
	})
	return true
}

func (et *EventTarget) remove(eventType string, l *Listener, capture bool) bool {
	et.mu.Lock()
	defer et.mu.Unlock()

	listeners := et.listeners[eventType]
	for i, existing := range listeners {
		if existing.listener == l && existing.options.Capture == capture {
			existing.removed = true
			et.listeners[eventType] = append(listeners[:i:i], listeners[i+1:]...)
			if len(et.listeners[eventType]) == 0 {
				delete(et.listeners, eventType)
			}
			return true
		}
	}
	return false
}

func (et *EventTarget) snapshot(eventType string) []*eventListener {
	et.mu.RLock()
	defer et.mu.RUnlock()
	listeners := make([]*eventListener, len(et.listeners[eventType]))
	copy(listeners, et.listeners[eventType])
	return listeners
}

func (et *EventTarget) count(eventType string) int {
	et.mu.RLock()
	defer et.mu.RUnlock()
	if eventType == "" {
		total := 0
		for _, ls := range et.listeners {
			total += len(ls)
		}
		return total
	}
	return len(et.listeners[eventType])
}

// AddEventListener registers a native listener. It returns false if the
// same listener is already registered for the type and capture flag.
func (n *Node) AddEventListener(eventType string, l *Listener, opts ListenerOptions) bool {
	if l == nil || l.Handle == nil {
		return false
	}
	if n.target == nil {
		n.target = newEventTarget()
	}
	return n.target.add(eventType, l, opts)
}

// RemoveEventListener unregisters a native listener. It returns false if
// no matching listener was registered.
func (n *Node) RemoveEventListener(eventType string, l *Listener, capture bool) bool {
	if n.target == nil || l == nil {
		return false
	}
	return n.target.remove(eventType, l, capture)
}

// ListenerCount returns the number of native listeners for the type, or
// for all types when eventType is empty.
func (n *Node) ListenerCount(eventType string) int {
	if n.target == nil {
		return 0
	}
	return n.target.count(eventType)
}

// DispatchEvent dispatches the event with this node as target. Listeners
// run synchronously: capture listeners from the root down, then the
// target's listeners, then bubbling listeners up to the root when the event
// bubbles. Returns false if a listener canceled the event.
func (n *Node) DispatchEvent(e *Event) (bool, error) {
	if e.dispatching {
		return false, ErrInvalidState("The event is already being dispatched.")
	}

	path := []*Node{n}
	for p := n.parentNode; p != nil; p = p.parentNode {
		path = append(path, p)
	}

	e.target = n
	e.path = path
	e.dispatching = true
	e.stopPropagation = false
	e.stopImmediate = false
	defer func() {
		e.dispatching = false
		e.phase = EventPhaseNone
		e.currentTarget = nil
	}()

	for i := len(path) - 1; i > 0 && !e.stopPropagation; i-- {
		path[i].invokeListeners(e, EventPhaseCapturing)
	}
	if !e.stopPropagation {
		n.invokeListeners(e, EventPhaseAtTarget)
	}
	if e.Bubbles {
		for i := 1; i < len(path) && !e.stopPropagation; i++ {
			path[i].invokeListeners(e, EventPhaseBubbling)
		}
	}

	return !e.defaultPrevented, nil
}

// invokeListeners runs this node's listeners for the phase. At the target,
// capture listeners run before non-capture listeners.
func (n *Node) invokeListeners(e *Event, phase EventPhase) {
	if n.target == nil {
		return
	}
	listeners := n.target.snapshot(e.Type)
	if len(listeners) == 0 {
		return
	}

	e.currentTarget = n
	e.phase = phase

	run := func(capture bool) {
		for _, l := range listeners {
			if e.stopImmediate {
				return
			}
			if l.removed || l.options.Capture != capture {
				continue
			}
			if l.options.Once {
				n.target.remove(e.Type, l.listener, l.options.Capture)
			}
			e.currentTarget = n
			l.listener.Handle(e)
		}
	}

	switch phase {
	case EventPhaseCapturing:
		run(true)
	case EventPhaseBubbling:
		run(false)
	case EventPhaseAtTarget:
		run(true)
		if !e.stopImmediate {
			e.phase = EventPhaseAtTarget
			run(false)
		}
	}
}
