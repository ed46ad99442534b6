package js

import (
	"errors"
	"strconv"

	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vquery/ajax"
	"github.com/chrisuehlinger/vquery/css"
	"github.com/chrisuehlinger/vquery/deferred"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
	"github.com/chrisuehlinger/vquery/query"
)

// binder converts between Go values and their JavaScript wrappers. Wrappers
// are cached so that the same node, deferred or request is always the same
// JavaScript object.
type binder struct {
	rt       *Runtime
	vm       *goja.Runtime
	nodeMap  map[*dom.Node]*goja.Object
	deferMap map[*deferred.Deferred]*goja.Object
	xhrMap   map[*ajax.Request]*goja.Object
	handlers map[*goja.Object]*event.Handler
}

func newBinder(rt *Runtime) *binder {
	return &binder{
		rt:       rt,
		vm:       rt.vm,
		nodeMap:  make(map[*dom.Node]*goja.Object),
		deferMap: make(map[*deferred.Deferred]*goja.Object),
		xhrMap:   make(map[*ajax.Request]*goja.Object),
		handlers: make(map[*goja.Object]*event.Handler),
	}
}

// install defines the global $ and its static members.
func (b *binder) install() {
	dollar := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if fn, ok := goja.AssertFunction(arg); ok {
			b.ready(fn)
			return goja.Undefined()
		}
		return b.collectionObject(b.collect(arg))
	}).ToObject(b.vm)

	b.installDeferred(dollar)
	b.installAjax(dollar)

	b.vm.Set("$", dollar)
	b.vm.Set("vQuery", dollar)
}

// ready runs fn on a later loop turn with $ as its argument.
func (b *binder) ready(fn goja.Callable) {
	err := b.rt.loop.Post(func() {
		b.rt.call(fn, b.vm.GlobalObject(), b.vm.Get("$"))
	})
	if err != nil {
		b.rt.reportError(err)
	}
}

func (b *binder) options() query.Option {
	return query.WithDispatcher(b.rt.events)
}

// collect turns a $ argument into a collection: a selector string, a node,
// an array of nodes or another collection.
func (b *binder) collect(v goja.Value) *query.Collection {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return query.New(nil, b.options())
	}
	if s, ok := v.Export().(string); ok {
		c, err := query.Query(b.rt.doc.AsNode(), s, b.options())
		if err != nil {
			b.throw(err)
		}
		return c
	}
	return query.New(b.nodes(v), b.options())
}

// nodes extracts the Go nodes held by a node wrapper, a collection wrapper
// or an array of either.
func (b *binder) nodes(v goja.Value) []*dom.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	if c := b.goCollection(obj); c != nil {
		return c.Nodes()
	}
	if n := b.goNode(obj); n != nil {
		return []*dom.Node{n}
	}
	if obj.ClassName() == "Array" {
		var out []*dom.Node
		for _, item := range obj.Keys() {
			out = append(out, b.nodes(obj.Get(item))...)
		}
		return out
	}
	return nil
}

func (b *binder) goNode(obj *goja.Object) *dom.Node {
	if v := obj.Get("_goNode"); v != nil && !goja.IsUndefined(v) {
		if n, ok := v.Export().(*dom.Node); ok {
			return n
		}
	}
	return nil
}

func (b *binder) goCollection(obj *goja.Object) *query.Collection {
	if v := obj.Get("_goCollection"); v != nil && !goja.IsUndefined(v) {
		if c, ok := v.Export().(*query.Collection); ok {
			return c
		}
	}
	return nil
}

// throw raises err as a JavaScript exception. Invalid selectors become a
// SyntaxError.
func (b *binder) throw(err error) {
	var syntaxErr *css.SelectorSyntaxError
	if errors.As(err, &syntaxErr) {
		if obj, cerr := b.vm.New(b.vm.Get("SyntaxError"), b.vm.ToValue(err.Error())); cerr == nil {
			panic(obj)
		}
	}
	panic(b.vm.NewGoError(err))
}

// nodeObject returns the wrapper of n.
func (b *binder) nodeObject(n *dom.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := b.nodeMap[n]; ok {
		return obj
	}

	vm := b.vm
	obj := vm.NewObject()
	obj.Set("_goNode", n)
	obj.Set("nodeType", int(n.NodeType()))
	obj.DefineAccessorProperty("nodeName", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(n.NodeName())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("textContent", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(n.TextContent())
	}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
		n.SetTextContent(call.Argument(0).String())
		return goja.Undefined()
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)

	if el := n.AsElement(); el != nil {
		obj.DefineAccessorProperty("tagName", vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(el.TagName())
		}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
		obj.DefineAccessorProperty("id", vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(el.Id())
		}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
		obj.DefineAccessorProperty("className", vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(el.ClassName())
		}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
			el.SetClassName(call.Argument(0).String())
			return goja.Undefined()
		}), goja.FLAG_FALSE, goja.FLAG_TRUE)
		obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			if !el.HasAttribute(name) {
				return goja.Null()
			}
			return vm.ToValue(el.GetAttribute(name))
		})
	}

	b.nodeMap[n] = obj
	return obj
}

// collectionObject wraps c. Indexed properties and length are a snapshot
// taken when the wrapper is made.
func (b *binder) collectionObject(c *query.Collection) *goja.Object {
	vm := b.vm
	obj := vm.NewObject()
	obj.Set("_goCollection", c)
	obj.Set("length", c.Len())
	for i, n := range c.Nodes() {
		obj.Set(strconv.Itoa(i), b.nodeObject(n))
	}

	derive := func(next *query.Collection, err error) goja.Value {
		if err != nil {
			b.throw(err)
		}
		return b.collectionObject(next)
	}

	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		if goja.IsUndefined(call.Argument(0)) {
			items := make([]any, 0, c.Len())
			for _, n := range c.Nodes() {
				items = append(items, b.nodeObject(n))
			}
			return vm.NewArray(items...)
		}
		i := int(call.Argument(0).ToInteger())
		if i < 0 {
			i += c.Len()
		}
		if n := c.Get(i); n != nil {
			return b.nodeObject(n)
		}
		return goja.Undefined()
	})
	obj.Set("eq", func(call goja.FunctionCall) goja.Value {
		return b.collectionObject(c.Eq(int(call.Argument(0).ToInteger())))
	})
	obj.Set("first", func(call goja.FunctionCall) goja.Value {
		return b.collectionObject(c.First())
	})
	obj.Set("find", func(call goja.FunctionCall) goja.Value {
		return derive(c.Find(call.Argument(0).String()))
	})
	obj.Set("filter", func(call goja.FunctionCall) goja.Value {
		return derive(c.Filter(call.Argument(0).String()))
	})
	obj.Set("is", func(call goja.FunctionCall) goja.Value {
		ok, err := c.Is(call.Argument(0).String())
		if err != nil {
			b.throw(err)
		}
		return vm.ToValue(ok)
	})
	obj.Set("add", func(call goja.FunctionCall) goja.Value {
		next := query.New(c.Nodes(), b.options())
		for _, arg := range call.Arguments {
			next.Push(b.collect(arg).Nodes()...)
		}
		return b.collectionObject(next)
	})
	obj.Set("each", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("each: callback is not a function"))
		}
		c.Each(func(i int, n *dom.Node) bool {
			ret := b.rt.call(fn, b.nodeObject(n), vm.ToValue(i), b.nodeObject(n))
			return !isFalse(ret)
		})
		return obj
	})
	obj.Set("text", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			if n := c.Get(0); n != nil {
				return vm.ToValue(n.TextContent())
			}
			return vm.ToValue("")
		}
		text := call.Argument(0).String()
		for _, n := range c.Nodes() {
			n.SetTextContent(text)
		}
		return obj
	})
	obj.Set("attr", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if len(call.Arguments) < 2 {
			if n := c.Get(0); n != nil && n.AsElement() != nil && n.AsElement().HasAttribute(name) {
				return vm.ToValue(n.AsElement().GetAttribute(name))
			}
			return goja.Undefined()
		}
		value := call.Argument(1).String()
		for _, n := range c.Nodes() {
			if el := n.AsElement(); el != nil {
				el.SetAttribute(name, value)
			}
		}
		return obj
	})

	b.installEvents(obj, c)
	b.installData(obj, c)
	return obj
}

func (b *binder) installData(obj *goja.Object, c *query.Collection) {
	vm := b.vm
	obj.Set("data", func(call goja.FunctionCall) goja.Value {
		switch len(call.Arguments) {
		case 0:
			out := vm.NewObject()
			for k, v := range c.DataAll() {
				out.Set(k, b.toValue(v))
			}
			return out
		case 1:
			if v, ok := c.Data(call.Argument(0).String()); ok {
				return b.toValue(v)
			}
			return goja.Undefined()
		}
		c.SetData(call.Argument(0).String(), call.Argument(1))
		return obj
	})
	obj.Set("removeData", func(call goja.FunctionCall) goja.Value {
		keys := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			keys = append(keys, arg.String())
		}
		c.RemoveData(keys...)
		return obj
	})
}

// toValue converts a Go value produced by the library into JavaScript.
func (b *binder) toValue(v any) goja.Value {
	switch v := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return v
	case *dom.Node:
		return b.nodeObject(v)
	case []*dom.Node:
		return b.collectionObject(query.New(v, b.options()))
	case *query.Collection:
		return b.collectionObject(v)
	case *deferred.Deferred:
		return b.deferredObject(v)
	case *ajax.Request:
		return b.xhrObject(v)
	case error:
		return b.vm.NewGoError(v)
	}
	return b.vm.ToValue(v)
}

func isFalse(v goja.Value) bool {
	if v == nil {
		return false
	}
	ok, isBool := v.Export().(bool)
	return isBool && !ok
}
