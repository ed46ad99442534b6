package query

import (
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
	"github.com/chrisuehlinger/vquery/registry"
)

// On binds h to every node for each space-separated type.
func (c *Collection) On(types string, h *event.Handler, opts ...event.BindOption) error {
	return c.events.Bind(c.nodes, types, h, opts...)
}

// One binds h so that it runs at most once per node.
func (c *Collection) One(types string, h *event.Handler, opts ...event.BindOption) error {
	return c.events.Bind(c.nodes, types, h, append(opts, event.Once())...)
}

// Delegate binds h to descendants matching selector.
func (c *Collection) Delegate(selector, types string, h *event.Handler, opts ...event.BindOption) error {
	return c.events.Bind(c.nodes, types, h, append(opts, event.WithSelector(selector))...)
}

// Off removes the direct binding of h for each type.
func (c *Collection) Off(types string, h *event.Handler) bool {
	return c.events.Off(c.nodes, types, registry.DirectKey, h)
}

// Undelegate removes the binding of h delegated to selector. A nil h removes
// every binding under selector.
func (c *Collection) Undelegate(selector, types string, h *event.Handler) bool {
	if h == nil {
		return c.events.OffSelector(c.nodes, types, selector)
	}
	return c.events.Off(c.nodes, types, selector, h)
}

// OffHandler removes h wherever it is bound, delegated or not.
func (c *Collection) OffHandler(types string, h *event.Handler) bool {
	return c.events.OffHandler(c.nodes, types, h)
}

// OffType removes every binding of the given types.
func (c *Collection) OffType(types string) bool {
	return c.events.OffType(c.nodes, types)
}

// OffAll removes every binding.
func (c *Collection) OffAll() bool {
	return c.events.OffAll(c.nodes)
}

// Trigger dispatches a bubbling event on every node and reports whether any
// dispatch was default-prevented.
func (c *Collection) Trigger(eventType string, detail any) bool {
	return c.events.Trigger(c.nodes, eventType, detail)
}

// Data returns the value stored under key on the first node.
func (c *Collection) Data(key string) (any, bool) {
	if len(c.nodes) == 0 {
		return nil, false
	}
	return c.registry().Data(c.nodes[0], key)
}

// DataAll returns every data value of the first node, including its data-*
// attributes.
func (c *Collection) DataAll() map[string]any {
	if len(c.nodes) == 0 {
		return nil
	}
	return c.registry().DataAll(c.nodes[0])
}

// SetData stores value under key on every node.
func (c *Collection) SetData(key string, value any) *Collection {
	for _, n := range c.nodes {
		c.registry().SetData(n, key, value)
	}
	return c
}

// RemoveData deletes keys from every node, or all data when no key is given.
func (c *Collection) RemoveData(keys ...string) *Collection {
	for _, n := range c.nodes {
		c.registry().RemoveData(n, keys...)
	}
	return c
}

// Listen is a shorthand for On with a plain function. The returned handler
// is the one to pass to Off.
func (c *Collection) Listen(types string, fn func(this *dom.Node, e *dom.Event)) (*event.Handler, error) {
	h := event.NewHandler(fn)
	return h, c.On(types, h)
}
