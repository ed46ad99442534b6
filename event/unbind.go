package event

import (
	"strings"

	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/registry"
)

// Off removes the binding of h for each type under selector. Pass
// registry.DirectKey for bindings made without a selector. It reports
// whether any binding was removed.
func (d *Dispatcher) Off(nodes []*dom.Node, types, selector string, h *Handler) bool {
	if h == nil {
		return false
	}
	return d.each(nodes, func(n *dom.Node, entry *registry.Entry) bool {
		removed := false
		for _, typ := range typesOf(entry, selector, types) {
			if rec := entry.Find(selector, typ, h); rec != nil {
				removed = d.unbind(n, rec) || removed
			}
		}
		return removed
	})
}

// OffSelector removes every binding under selector for each type. An empty
// types string means every type bound under selector.
func (d *Dispatcher) OffSelector(nodes []*dom.Node, types, selector string) bool {
	return d.each(nodes, func(n *dom.Node, entry *registry.Entry) bool {
		removed := false
		for _, typ := range typesOf(entry, selector, types) {
			for {
				records := entry.Records(selector, typ)
				if len(records) == 0 || !d.unbind(n, records[0]) {
					break
				}
				removed = true
			}
		}
		return removed
	})
}

// OffHandler removes h from every selector bucket for each type. An empty
// types string means every type.
func (d *Dispatcher) OffHandler(nodes []*dom.Node, types string, h *Handler) bool {
	if h == nil {
		return false
	}
	return d.each(nodes, func(n *dom.Node, entry *registry.Entry) bool {
		removed := false
		for _, selector := range entry.Selectors() {
			for _, typ := range typesOf(entry, selector, types) {
				if rec := entry.Find(selector, typ, h); rec != nil {
					removed = d.unbind(n, rec) || removed
				}
			}
		}
		return removed
	})
}

// OffType removes every binding of the given types in every bucket.
func (d *Dispatcher) OffType(nodes []*dom.Node, types string) bool {
	if strings.TrimSpace(types) == "" {
		return false
	}
	return d.each(nodes, func(n *dom.Node, entry *registry.Entry) bool {
		removed := false
		for _, selector := range entry.Selectors() {
			for _, typ := range strings.Fields(types) {
				for _, rec := range entry.Records(selector, typ) {
					removed = d.unbind(n, rec) || removed
				}
			}
		}
		return removed
	})
}

// OffAll removes every binding on the nodes.
func (d *Dispatcher) OffAll(nodes []*dom.Node) bool {
	return d.each(nodes, func(n *dom.Node, entry *registry.Entry) bool {
		removed := false
		for _, selector := range entry.Selectors() {
			for _, typ := range entry.Types(selector) {
				for _, rec := range entry.Records(selector, typ) {
					removed = d.unbind(n, rec) || removed
				}
			}
		}
		return removed
	})
}

// each calls fn for every node that has a registry entry.
func (d *Dispatcher) each(nodes []*dom.Node, fn func(*dom.Node, *registry.Entry) bool) bool {
	removed := false
	for _, n := range nodes {
		if entry, ok := d.registry.Lookup(n); ok {
			removed = fn(n, entry) || removed
		}
	}
	return removed
}

func typesOf(entry *registry.Entry, selector, types string) []string {
	if strings.TrimSpace(types) == "" {
		return entry.Types(selector)
	}
	return strings.Fields(types)
}
