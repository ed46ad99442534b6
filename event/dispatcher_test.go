package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/vquery/css"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/registry"
)

type fixture struct {
	doc  *dom.Document
	d    *Dispatcher
	list *dom.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := dom.ParseHTML(`<body><ul id="list">` +
		`<li id="a" class="item"><span id="a-text">A</span></li>` +
		`<li id="b">B</li>` +
		`</ul></body>`)
	require.NoError(t, err)
	return &fixture{
		doc:  doc,
		d:    NewDispatcher(registry.New(nil), nil),
		list: doc.GetElementById("list").AsNode(),
	}
}

func (f *fixture) node(id string) *dom.Node {
	return f.doc.GetElementById(id).AsNode()
}

func (f *fixture) click(t *testing.T, id string) {
	t.Helper()
	_, err := f.node(id).DispatchEvent(dom.NewEvent("click", dom.EventInit{Bubbles: true}))
	require.NoError(t, err)
}

// recorder collects the ids of the receivers a handler was called with.
type recorder struct {
	calls []string
}

func (r *recorder) handler() *Handler {
	return NewHandler(func(this *dom.Node, e *dom.Event) {
		r.calls = append(r.calls, this.AsElement().Id())
	})
}

func TestBind_DirectHandler(t *testing.T) {
	f := newFixture(t)
	var gotThis *dom.Node
	var gotData any
	h := NewHandler(func(this *dom.Node, e *dom.Event) {
		gotThis = this
		gotData = e.Data
	})

	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", h, WithData("payload")))
	f.click(t, "a-text")

	assert.Same(t, f.list, gotThis)
	assert.Equal(t, "payload", gotData)
	assert.Equal(t, 1, f.list.ListenerCount("click"))
}

func TestBind_DelegatedReceivesMatchingDescendant(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", rec.handler(), WithSelector(".item")))

	f.click(t, "a-text")
	assert.Equal(t, []string{"a"}, rec.calls)

	f.click(t, "b")
	assert.Equal(t, []string{"a"}, rec.calls, "non-matching descendant must not fire the handler")

	f.click(t, "list")
	assert.Equal(t, []string{"a"}, rec.calls, "the bound node itself is not a delegation target")
}

func TestBind_DelegationSeesTreeChanges(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", rec.handler(), WithSelector(".item")))

	f.doc.GetElementById("b").SetClassName("item")
	f.click(t, "b")
	assert.Equal(t, []string{"b"}, rec.calls)
}

func TestBind_DelegationOrderAndStopPropagation(t *testing.T) {
	doc, err := dom.ParseHTML(`<body><div id="c"><div id="outer" class="item"><div id="inner" class="item"><span id="t"></span></div></div></div></body>`)
	require.NoError(t, err)
	d := NewDispatcher(registry.New(nil), nil)
	container := doc.GetElementById("c").AsNode()
	target := doc.GetElementById("t").AsNode()

	rec := &recorder{}
	require.NoError(t, d.Bind([]*dom.Node{container}, "click", rec.handler(), WithSelector(".item")))
	target.DispatchEvent(dom.NewEvent("click", dom.EventInit{Bubbles: true}))
	assert.Equal(t, []string{"outer", "inner"}, rec.calls)

	d.OffAll([]*dom.Node{container})
	var stopped []string
	stopper := NewHandler(func(this *dom.Node, e *dom.Event) {
		stopped = append(stopped, this.AsElement().Id())
		e.StopPropagation()
	})
	require.NoError(t, d.Bind([]*dom.Node{container}, "click", stopper, WithSelector(".item")))
	target.DispatchEvent(dom.NewEvent("click", dom.EventInit{Bubbles: true}))
	assert.Equal(t, []string{"outer"}, stopped)
}

func TestBind_DelegatedNonBubblingEvent(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "focus", rec.handler(), WithSelector("li")))

	f.node("a-text").DispatchEvent(dom.NewEvent("focus", dom.EventInit{}))
	assert.Equal(t, []string{"a"}, rec.calls, "delegation runs in the capture phase")
}

func TestBind_Once(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", rec.handler(), Once()))

	f.click(t, "a")
	f.click(t, "a")

	assert.Equal(t, []string{"list"}, rec.calls)
	assert.Zero(t, f.list.ListenerCount("click"), "native listener must be detached")
	entry, ok := f.d.Registry().Lookup(f.list)
	require.True(t, ok)
	assert.Zero(t, entry.Count())
}

func TestBind_OnceDelegated(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", rec.handler(), WithSelector(".item"), Once()))

	f.click(t, "b")
	assert.Empty(t, rec.calls)
	assert.Equal(t, 1, f.list.ListenerCount("click"), "a non-matching event does not consume the binding")

	f.click(t, "a-text")
	f.click(t, "a-text")
	assert.Equal(t, []string{"a"}, rec.calls)
	assert.Zero(t, f.list.ListenerCount("click"))
}

func TestBind_DuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	count := 0
	h := NewHandler(func(*dom.Node, *dom.Event) { count++ })

	nodes := []*dom.Node{f.list}
	require.NoError(t, f.d.Bind(nodes, "click", h))
	require.NoError(t, f.d.Bind(nodes, "click", h))
	f.click(t, "a")

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.list.ListenerCount("click"))
	entry, _ := f.d.Registry().Lookup(f.list)
	assert.Equal(t, 1, entry.Count())
}

func TestBind_MultipleTypesAndNodes(t *testing.T) {
	f := newFixture(t)
	count := 0
	h := NewHandler(func(*dom.Node, *dom.Event) { count++ })
	nodes := []*dom.Node{f.node("a"), f.node("b")}

	require.NoError(t, f.d.Bind(nodes, " click  keyup ", h))
	for _, n := range nodes {
		assert.Equal(t, 2, n.ListenerCount(""))
	}

	f.node("b").DispatchEvent(dom.NewEvent("keyup", dom.EventInit{Bubbles: true}))
	assert.Equal(t, 1, count)
}

func TestBind_InvalidSelector(t *testing.T) {
	f := newFixture(t)
	err := f.d.Bind([]*dom.Node{f.list}, "click", (&recorder{}).handler(), WithSelector("li["))

	var syntaxErr *css.SelectorSyntaxError
	require.True(t, errors.As(err, &syntaxErr), "got %v", err)
	assert.Equal(t, "li[", syntaxErr.Selector)
	assert.Zero(t, f.list.ListenerCount(""))
	_, ok := f.d.Registry().Lookup(f.list)
	assert.False(t, ok, "nothing is registered for a bad selector")
}

func TestBind_NilHandler(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.d.Bind([]*dom.Node{f.list}, "click", nil))
	assert.Zero(t, f.list.ListenerCount(""))
}

func TestBind_SkipsNilNodes(t *testing.T) {
	f := newFixture(t)
	count := 0
	h := NewHandler(func(*dom.Node, *dom.Event) { count++ })

	require.NotPanics(t, func() {
		require.NoError(t, f.d.Bind([]*dom.Node{nil, f.list, nil}, "custom", h))
	})
	assert.Equal(t, 1, f.d.Registry().Len())
	assert.Equal(t, 1, f.list.ListenerCount("custom"))

	var prevented bool
	require.NotPanics(t, func() {
		prevented = f.d.Trigger([]*dom.Node{nil, f.list}, "custom", nil)
	})
	assert.False(t, prevented)
	assert.Equal(t, 1, count)
}

func TestTrigger(t *testing.T) {
	f := newFixture(t)
	var seen []string
	require.NoError(t, f.d.Bind([]*dom.Node{f.list}, "custom", NewHandler(func(this *dom.Node, e *dom.Event) {
		seen = append(seen, e.Target().AsElement().Id())
		assert.Equal(t, 42, e.Detail)
	})))

	prevented := f.d.Trigger([]*dom.Node{f.node("a"), f.node("b")}, "custom", 42)
	assert.False(t, prevented)
	assert.Equal(t, []string{"a", "b"}, seen)

	require.NoError(t, f.d.Bind([]*dom.Node{f.node("b")}, "custom", NewHandler(func(_ *dom.Node, e *dom.Event) {
		e.PreventDefault()
	})))
	assert.True(t, f.d.Trigger([]*dom.Node{f.node("a"), f.node("b")}, "custom", 42))
}
