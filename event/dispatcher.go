// Package event binds handlers to nodes with optional selector delegation
// and one-shot semantics. Bindings are kept in a registry side table; each
// binding owns exactly one native listener on its node.
package event

import (
	"strings"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/css"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/registry"
)

// HandlerFunc is called with the receiving node and the native event. For
// delegated bindings the receiver is the matching descendant.
type HandlerFunc func(this *dom.Node, e *dom.Event)

// Handler wraps a HandlerFunc. Handlers are identified by pointer, so the
// same *Handler must be passed to Off to remove a binding.
type Handler struct {
	fn HandlerFunc
}

// NewHandler wraps fn in a new Handler.
func NewHandler(fn HandlerFunc) *Handler {
	return &Handler{fn: fn}
}

// Dispatcher binds and unbinds handlers.
type Dispatcher struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over reg. A nil reg uses registry.Default.
func NewDispatcher(reg *registry.Registry, logger *zap.Logger) *Dispatcher {
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: reg,
		logger:   logger.Named("event"),
	}
}

// Registry returns the registry the dispatcher stores bindings in.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

type bindOptions struct {
	selector string
	data     any
	once     bool
}

// BindOption configures Bind.
type BindOption func(*bindOptions)

// WithSelector delegates the binding to descendants matching selector.
func WithSelector(selector string) BindOption {
	return func(o *bindOptions) { o.selector = selector }
}

// WithData attaches v to the native event as Event.Data before the handler runs.
func WithData(v any) BindOption {
	return func(o *bindOptions) { o.data = v }
}

// Once removes the binding before its handler first runs.
func Once() BindOption {
	return func(o *bindOptions) { o.once = true }
}

// Bind registers h for every space-separated event type on every node.
// Binding the same (type, selector, handler) twice on a node is a no-op. A
// malformed selector is returned as *css.SelectorSyntaxError before anything
// is registered. A nil handler and nil nodes are ignored.
func (d *Dispatcher) Bind(nodes []*dom.Node, types string, h *Handler, opts ...BindOption) error {
	var o bindOptions
	for _, opt := range opts {
		opt(&o)
	}
	if h == nil || h.fn == nil {
		return nil
	}

	var sel *css.CSSSelector
	if o.selector != "" {
		var err error
		if sel, err = css.ParseSelector(o.selector); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		if n == nil {
			continue
		}
		entry := d.registry.Entry(n)
		for _, typ := range strings.Fields(types) {
			rec := &registry.Record{
				Type:     typ,
				Selector: o.selector,
				Handler:  h,
				Data:     o.data,
				Once:     o.once,
			}
			rec.Listener = d.listener(rec, h, sel)
			if !entry.Add(rec) {
				d.logger.Debug("duplicate binding ignored",
					zap.String("type", typ), zap.String("selector", o.selector))
				continue
			}
			n.AddEventListener(typ, rec.Listener, dom.ListenerOptions{Capture: sel != nil})
			d.logger.Debug("bound",
				zap.String("type", typ), zap.String("selector", o.selector), zap.Bool("once", o.once))
		}
	}
	return nil
}

// listener builds the native listener of rec. It reaches the bound node
// through the event's current target so that the registry never holds a
// strong reference to a node.
func (d *Dispatcher) listener(rec *registry.Record, h *Handler, sel *css.CSSSelector) *dom.Listener {
	return dom.ListenerFunc(func(e *dom.Event) {
		bound := e.CurrentTarget()
		if sel == nil {
			if rec.Once {
				d.unbind(bound, rec)
			}
			e.Data = rec.Data
			h.fn(bound, e)
			return
		}
		d.delegate(bound, rec, h, sel, e)
	})
}

// delegate invokes h for every element on the path between the event target
// and bound, exclusive of bound, that matches sel. Elements are visited
// outermost first. The path is read when the event reaches bound, so tree
// changes made after binding are honored.
func (d *Dispatcher) delegate(bound *dom.Node, rec *registry.Record, h *Handler, sel *css.CSSSelector, e *dom.Event) {
	path := e.ComposedPath()
	end := -1
	for i, n := range path {
		if n == bound {
			end = i
			break
		}
	}

	for i := end - 1; i >= 0; i-- {
		el := path[i].AsElement()
		if el == nil || !sel.Matches(el) {
			continue
		}
		if rec.Once {
			if !d.unbind(bound, rec) {
				return
			}
		}
		e.Data = rec.Data
		h.fn(path[i], e)
		if e.PropagationStopped() || rec.Once {
			return
		}
	}
}

// unbind removes rec from n's entry and detaches its native listener.
func (d *Dispatcher) unbind(n *dom.Node, rec *registry.Record) bool {
	entry, ok := d.registry.Lookup(n)
	if !ok || !entry.Remove(rec) {
		return false
	}
	n.RemoveEventListener(rec.Type, rec.Listener, rec.Selector != registry.DirectKey)
	d.logger.Debug("unbound", zap.String("type", rec.Type), zap.String("selector", rec.Selector))
	return true
}

// Trigger dispatches a new bubbling, cancelable event of the given type on
// each node. Detail is copied to Event.Detail. It reports whether any
// dispatch had its default action prevented.
func (d *Dispatcher) Trigger(nodes []*dom.Node, eventType string, detail any) bool {
	prevented := false
	for _, n := range nodes {
		if n == nil {
			continue
		}
		e := dom.NewEvent(eventType, dom.EventInit{Bubbles: true, Cancelable: true, Detail: detail})
		ok, err := n.DispatchEvent(e)
		if err != nil {
			d.logger.Debug("dispatch failed", zap.String("type", eventType), zap.Error(err))
			continue
		}
		if !ok {
			prevented = true
		}
	}
	return prevented
}
