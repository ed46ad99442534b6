package js

import (
	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vquery/deferred"
)

// callback adapts a JavaScript function to a deferred.Callback. A return
// value other than undefined replaces the arguments of the next callback;
// an array return supplies them element by element.
func (b *binder) callback(fn goja.Callable) deferred.Callback {
	return func(this any, args ...any) []any {
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = b.toValue(a)
		}
		ret := b.rt.call(fn, b.toValue(this), jsArgs...)
		if ret == nil || goja.IsUndefined(ret) {
			return nil
		}
		return values(b.spread(ret))
	}
}

// callbacks collects the functions among args, flattening arrays.
func (b *binder) callbacks(args []goja.Value) []deferred.Callback {
	var cbs []deferred.Callback
	for _, arg := range args {
		if fn, ok := goja.AssertFunction(arg); ok {
			cbs = append(cbs, b.callback(fn))
			continue
		}
		if obj, ok := arg.(*goja.Object); ok && obj.ClassName() == "Array" {
			var items []goja.Value
			for _, k := range obj.Keys() {
				items = append(items, obj.Get(k))
			}
			cbs = append(cbs, b.callbacks(items)...)
		}
	}
	return cbs
}

func (b *binder) optionalCallback(v goja.Value) deferred.Callback {
	if fn, ok := goja.AssertFunction(v); ok {
		return b.callback(fn)
	}
	return nil
}

func values(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// deferredObject returns the wrapper of d.
func (b *binder) deferredObject(d *deferred.Deferred) *goja.Object {
	if obj, ok := b.deferMap[d]; ok {
		return obj
	}
	vm := b.vm
	obj := vm.NewObject()
	obj.Set("_goDeferred", d)

	obj.Set("resolve", func(call goja.FunctionCall) goja.Value {
		d.Resolve(values(call.Arguments)...)
		return obj
	})
	obj.Set("reject", func(call goja.FunctionCall) goja.Value {
		d.Reject(values(call.Arguments)...)
		return obj
	})
	obj.Set("resolveWith", func(call goja.FunctionCall) goja.Value {
		d.ResolveWith(call.Argument(0), values(b.spread(call.Argument(1)))...)
		return obj
	})
	obj.Set("rejectWith", func(call goja.FunctionCall) goja.Value {
		d.RejectWith(call.Argument(0), values(b.spread(call.Argument(1)))...)
		return obj
	})
	obj.Set("done", func(call goja.FunctionCall) goja.Value {
		d.Done(b.callbacks(call.Arguments)...)
		return obj
	})
	obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		d.Fail(b.callbacks(call.Arguments)...)
		return obj
	})
	obj.Set("always", func(call goja.FunctionCall) goja.Value {
		for _, cb := range b.callbacks(call.Arguments) {
			d.Always(cb)
		}
		return obj
	})
	obj.Set("then", func(call goja.FunctionCall) goja.Value {
		d.Then(b.optionalCallback(call.Argument(0)), b.optionalCallback(call.Argument(1)))
		return obj
	})
	obj.Set("state", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(d.State().String())
	})
	obj.Set("promise", func(call goja.FunctionCall) goja.Value {
		return b.promiseObject(d)
	})

	b.deferMap[d] = obj
	return obj
}

// promiseObject is the read-only view of d: it can observe settlement but
// not cause it.
func (b *binder) promiseObject(d *deferred.Deferred) *goja.Object {
	vm := b.vm
	p := d.Promise()
	obj := vm.NewObject()
	obj.Set("_goDeferred", d)

	obj.Set("done", func(call goja.FunctionCall) goja.Value {
		p.Done(b.callbacks(call.Arguments)...)
		return obj
	})
	obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		p.Fail(b.callbacks(call.Arguments)...)
		return obj
	})
	obj.Set("always", func(call goja.FunctionCall) goja.Value {
		for _, cb := range b.callbacks(call.Arguments) {
			p.Always(cb)
		}
		return obj
	})
	obj.Set("then", func(call goja.FunctionCall) goja.Value {
		p.Then(b.optionalCallback(call.Argument(0)), b.optionalCallback(call.Argument(1)))
		return obj
	})
	obj.Set("state", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(p.State().String())
	})
	obj.Set("promise", func(call goja.FunctionCall) goja.Value {
		return obj
	})
	return obj
}

// spread returns the elements of an array argument, or v itself.
func (b *binder) spread(v goja.Value) []goja.Value {
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return []goja.Value{v}
	}
	var items []goja.Value
	for _, k := range obj.Keys() {
		items = append(items, obj.Get(k))
	}
	return items
}

func (b *binder) goDeferred(v goja.Value) *deferred.Deferred {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	if dv := obj.Get("_goDeferred"); dv != nil && !goja.IsUndefined(dv) {
		if d, ok := dv.Export().(*deferred.Deferred); ok {
			return d
		}
	}
	return nil
}

// installDeferred defines $.Deferred and $.when.
func (b *binder) installDeferred(dollar *goja.Object) {
	dollar.Set("Deferred", func(call goja.FunctionCall) goja.Value {
		d := deferred.New(deferred.WithLogger(b.rt.logger))
		obj := b.deferredObject(d)
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			b.rt.call(fn, obj, obj)
		}
		return obj
	})

	// Arguments that are not deferreds count as already resolved with
	// themselves.
	dollar.Set("when", func(call goja.FunctionCall) goja.Value {
		inputs := make([]*deferred.Deferred, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			d := b.goDeferred(arg)
			if d == nil {
				d = deferred.New().Resolve(arg)
			}
			inputs = append(inputs, d)
		}
		return b.promiseObject(deferred.When(inputs...))
	})
}
