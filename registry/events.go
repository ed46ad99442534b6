package registry

import (
	"github.com/chrisuehlinger/vquery/dom"
)

// DirectKey is the bucket key for handlers bound without a selector.
const DirectKey = ""

// Record is one bound handler on one node for one event type.
type Record struct {
	Type     string
	Selector string
	// Handler identifies the user callback. Records compare handlers with ==.
	Handler  any
	Data     any
	Once     bool
	Listener *dom.Listener
}

// bucket holds the records bound under one selector key.
type bucket struct {
	types   []string
	records map[string][]*Record
}

// Add appends rec to its (selector, type) bucket. It returns false, and
// stores nothing, if a record with the same type, selector and handler is
// already present.
func (e *Entry) Add(rec *Record) bool {
	if e.Find(rec.Selector, rec.Type, rec.Handler) != nil {
		return false
	}
	b, ok := e.events[rec.Selector]
	if !ok {
		b = &bucket{records: make(map[string][]*Record)}
		e.events[rec.Selector] = b
		e.keys = append(e.keys, rec.Selector)
	}
	if _, ok := b.records[rec.Type]; !ok {
		b.types = append(b.types, rec.Type)
	}
	b.records[rec.Type] = append(b.records[rec.Type], rec)
	return true
}

// Remove deletes rec from its bucket. It returns false if rec is not stored.
func (e *Entry) Remove(rec *Record) bool {
	b, ok := e.events[rec.Selector]
	if !ok {
		return false
	}
	records := b.records[rec.Type]
	for i, r := range records {
		if r != rec {
			continue
		}
		records = append(records[:i:i], records[i+1:]...)
		if len(records) > 0 {
			b.records[rec.Type] = records
			return true
		}
		delete(b.records, rec.Type)
		b.types = without(b.types, rec.Type)
		if len(b.types) == 0 {
			delete(e.events, rec.Selector)
			e.keys = without(e.keys, rec.Selector)
		}
		return true
	}
	return false
}

func without(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// Find returns the record for (selector, type, handler), or nil.
func (e *Entry) Find(selector, eventType string, handler any) *Record {
	b, ok := e.events[selector]
	if !ok {
		return nil
	}
	for _, r := range b.records[eventType] {
		if r.Handler == handler {
			return r
		}
	}
	return nil
}

// Records returns a copy of the (selector, type) bucket in bind order.
func (e *Entry) Records(selector, eventType string) []*Record {
	b, ok := e.events[selector]
	if !ok {
		return nil
	}
	out := make([]*Record, len(b.records[eventType]))
	copy(out, b.records[eventType])
	return out
}

// Selectors returns the bucket keys in the order they were first used.
// The direct bucket is reported as DirectKey.
func (e *Entry) Selectors() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Types returns the event types bound under selector in first-bind order.
func (e *Entry) Types(selector string) []string {
	b, ok := e.events[selector]
	if !ok {
		return nil
	}
	out := make([]string, len(b.types))
	copy(out, b.types)
	return out
}

// Count returns the number of records across all buckets.
func (e *Entry) Count() int {
	n := 0
	for _, b := range e.events {
		for _, records := range b.records {
			n += len(records)
		}
	}
	return n
}
