package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
)

func click(t *testing.T, doc *dom.Document, id string) {
	t.Helper()
	_, err := doc.GetElementById(id).AsNode().DispatchEvent(dom.NewEvent("click", dom.EventInit{Bubbles: true}))
	require.NoError(t, err)
}

func TestDelegate(t *testing.T) {
	doc, opt := newDoc(t)
	list, err := Query(doc.AsNode(), "#list", opt)
	require.NoError(t, err)

	var got []string
	h := event.NewHandler(func(this *dom.Node, e *dom.Event) {
		got = append(got, this.AsElement().Id())
	})
	require.NoError(t, list.Delegate(".item", "click", h))

	click(t, doc, "bold")
	click(t, doc, "three")
	assert.Equal(t, []string{"two"}, got)

	assert.True(t, list.Undelegate(".item", "click", h))
	click(t, doc, "one")
	assert.Equal(t, []string{"two"}, got)
}

func TestOnOffAndOne(t *testing.T) {
	doc, opt := newDoc(t)
	lis, err := Query(doc.AsNode(), "li", opt)
	require.NoError(t, err)

	count, once := 0, 0
	h, err := lis.Listen("click", func(*dom.Node, *dom.Event) { count++ })
	require.NoError(t, err)
	require.NoError(t, lis.One("click", event.NewHandler(func(*dom.Node, *dom.Event) { once++ })))

	click(t, doc, "one")
	click(t, doc, "one")
	click(t, doc, "two")
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, once, "one-shot per node")

	assert.True(t, lis.Off("click", h))
	assert.False(t, lis.Off("click", h))
	click(t, doc, "one")
	assert.Equal(t, 3, count)
}

func TestOffAll(t *testing.T) {
	doc, opt := newDoc(t)
	list, err := Query(doc.AsNode(), "#list", opt)
	require.NoError(t, err)

	noop := func(*dom.Node, *dom.Event) {}
	require.NoError(t, list.On("click focus", event.NewHandler(noop)))
	require.NoError(t, list.Delegate("li", "click", event.NewHandler(noop)))

	assert.True(t, list.OffType("focus"))
	assert.Equal(t, 2, list.Get(0).ListenerCount(""))
	assert.True(t, list.OffAll())
	assert.Zero(t, list.Get(0).ListenerCount(""))
	assert.False(t, list.OffAll())
}

func TestTrigger(t *testing.T) {
	doc, opt := newDoc(t)
	note, err := Query(doc.AsNode(), "#note", opt)
	require.NoError(t, err)

	var detail any
	require.NoError(t, note.On("save", event.NewHandler(func(_ *dom.Node, e *dom.Event) {
		detail = e.Detail
		e.PreventDefault()
	})))

	assert.True(t, note.Trigger("save", 42))
	assert.Equal(t, 42, detail)
}

func TestData(t *testing.T) {
	doc, opt := newDoc(t)
	c, err := Query(doc.AsNode(), "#list, li", opt)
	require.NoError(t, err)

	v, ok := c.Data("kind")
	require.True(t, ok)
	assert.Equal(t, "todo", v)

	c.SetData("seen", true)
	lis, err := c.Filter("li")
	require.NoError(t, err)
	v, ok = lis.Data("seen")
	require.True(t, ok)
	assert.Equal(t, true, v)

	assert.Equal(t, map[string]any{"kind": "todo", "seen": true}, c.DataAll())

	c.RemoveData("seen")
	_, ok = lis.Data("seen")
	assert.False(t, ok)

	empty := New(nil, opt)
	_, ok = empty.Data("kind")
	assert.False(t, ok)
	assert.Nil(t, empty.DataAll())
}
