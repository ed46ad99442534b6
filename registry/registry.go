// Package registry keeps per-node side data for wrapped collections: the
// data cache, event handler buckets and the owning-collection marker.
//
// Entries are keyed by weak node identity. Nothing is stored on the nodes
// themselves and an entry disappears once its node is garbage collected.
package registry

import (
	"runtime"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/dom"
)

// Registry maps nodes to their entries.
type Registry struct {
	mu      sync.Mutex
	entries map[weak.Pointer[dom.Node]]*Entry
	logger  *zap.Logger
}

var defaultRegistry = New(nil)

// Default returns the process-wide registry used by collections that are
// not given one explicitly.
func Default() *Registry {
	return defaultRegistry
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[weak.Pointer[dom.Node]]*Entry),
		logger:  logger.Named("registry"),
	}
}

// Entry returns the entry for n, creating it on first use.
func (r *Registry) Entry(n *dom.Node) *Entry {
	key := weak.Make(n)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e
	}
	e := newEntry()
	r.entries[key] = e
	runtime.AddCleanup(n, r.collect, key)
	return e
}

// Lookup returns the entry for n without creating one.
func (r *Registry) Lookup(n *dom.Node) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[weak.Make(n)]
	return e, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// collect runs on the runtime cleanup goroutine after a node is unreachable.
func (r *Registry) collect(key weak.Pointer[dom.Node]) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
	r.logger.Debug("entry collected")
}

// Entry is the side data of one node. An Entry is not safe for concurrent
// use; it is mutated from the goroutine that owns the document.
type Entry struct {
	data         map[string]any
	hasAttrCache bool
	events       map[string]*bucket
	keys         []string
	owner        any
}

func newEntry() *Entry {
	return &Entry{
		data:   make(map[string]any),
		events: make(map[string]*bucket),
	}
}

// Owner returns the marker of the collection that most recently took the node.
func (e *Entry) Owner() any { return e.owner }

// SetOwner replaces the owning-collection marker.
func (e *Entry) SetOwner(owner any) { e.owner = owner }
