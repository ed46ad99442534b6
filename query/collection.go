// Package query provides Collection, an ordered set of nodes with query,
// event and data operations.
package query

import (
	"sync/atomic"

	"github.com/chrisuehlinger/vquery/css"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
	"github.com/chrisuehlinger/vquery/registry"
)

var nextID atomic.Uint64

// marker identifies a collection in registry entries. It is a plain value
// so that an entry never keeps a collection, and through it the node,
// reachable.
type marker uint64

// Collection is an ordered, duplicate-free set of nodes.
type Collection struct {
	id     marker
	nodes  []*dom.Node
	events *event.Dispatcher
}

// Option configures a Collection.
type Option func(*Collection)

// WithDispatcher sets the dispatcher used for events and, through its
// registry, for data. Collections derived from c share it.
func WithDispatcher(d *event.Dispatcher) Option {
	return func(c *Collection) {
		if d != nil {
			c.events = d
		}
	}
}

var defaultDispatcher = event.NewDispatcher(nil, nil)

// New creates a collection holding nodes in order, without duplicates.
func New(nodes []*dom.Node, opts ...Option) *Collection {
	c := &Collection{
		id:     marker(nextID.Add(1)),
		events: defaultDispatcher,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c.Push(nodes...)
}

// Query collects the descendants of root that match selector, in document order.
func Query(root *dom.Node, selector string, opts ...Option) (*Collection, error) {
	els, err := css.QuerySelectorAll(root, selector)
	if err != nil {
		return nil, err
	}
	return New(elementNodes(els), opts...), nil
}

func (c *Collection) derive(nodes []*dom.Node) *Collection {
	return New(nodes, WithDispatcher(c.events))
}

func (c *Collection) registry() *registry.Registry {
	return c.events.Registry()
}

// Push appends each node not already in c. It returns c.
func (c *Collection) Push(nodes ...*dom.Node) *Collection {
	reg := c.registry()
	for _, n := range nodes {
		if n == nil {
			continue
		}
		entry := reg.Entry(n)
		if entry.Owner() == c.id || (entry.Owner() != nil && c.contains(n)) {
			continue
		}
		entry.SetOwner(c.id)
		c.nodes = append(c.nodes, n)
	}
	return c
}

// contains scans for n. Push needs it when another collection took n after c did.
func (c *Collection) contains(n *dom.Node) bool {
	for _, m := range c.nodes {
		if m == n {
			return true
		}
	}
	return false
}

// Len returns the number of nodes.
func (c *Collection) Len() int { return len(c.nodes) }

// Nodes returns a copy of the nodes in order.
func (c *Collection) Nodes() []*dom.Node {
	nodes := make([]*dom.Node, len(c.nodes))
	copy(nodes, c.nodes)
	return nodes
}

// Get returns the node at index i, or nil when out of range.
func (c *Collection) Get(i int) *dom.Node {
	if i < 0 || i >= len(c.nodes) {
		return nil
	}
	return c.nodes[i]
}

// Each calls fn for every node in order until fn returns false.
func (c *Collection) Each(fn func(i int, n *dom.Node) bool) *Collection {
	for i, n := range c.Nodes() {
		if !fn(i, n) {
			break
		}
	}
	return c
}

// Eq returns a collection holding the node at index i. Negative indexes
// count from the end.
func (c *Collection) Eq(i int) *Collection {
	if i < 0 {
		i += len(c.nodes)
	}
	if n := c.Get(i); n != nil {
		return c.derive([]*dom.Node{n})
	}
	return c.derive(nil)
}

// First returns a collection holding the first node.
func (c *Collection) First() *Collection {
	return c.Eq(0)
}

// Find collects the descendants of every node that match selector.
func (c *Collection) Find(selector string) (*Collection, error) {
	sel, err := css.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	out := c.derive(nil)
	for _, n := range c.nodes {
		out.Push(elementNodes(sel.All(n))...)
	}
	return out, nil
}

// Filter keeps the elements that match selector.
func (c *Collection) Filter(selector string) (*Collection, error) {
	sel, err := css.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	var kept []*dom.Node
	for _, n := range c.nodes {
		if el := n.AsElement(); el != nil && sel.Matches(el) {
			kept = append(kept, n)
		}
	}
	return c.derive(kept), nil
}

// Is reports whether any element matches selector.
func (c *Collection) Is(selector string) (bool, error) {
	sel, err := css.ParseSelector(selector)
	if err != nil {
		return false, err
	}
	for _, n := range c.nodes {
		if el := n.AsElement(); el != nil && sel.Matches(el) {
			return true, nil
		}
	}
	return false, nil
}

func elementNodes(els []*dom.Element) []*dom.Node {
	nodes := make([]*dom.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, el.AsNode())
	}
	return nodes
}
