package js

import (
	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
	"github.com/chrisuehlinger/vquery/query"
)

// handlerFor returns the Go handler of a JavaScript function, creating it on
// first use. Binding the same function twice therefore yields the same
// *event.Handler, which is what makes duplicate binds and off work.
func (b *binder) handlerFor(fn *goja.Object) *event.Handler {
	if h, ok := b.handlers[fn]; ok {
		return h
	}
	callable, _ := goja.AssertFunction(fn)
	h := event.NewHandler(func(this *dom.Node, e *dom.Event) {
		ret := b.rt.call(callable, b.nodeObject(this), b.eventObject(e))
		if isFalse(ret) {
			e.PreventDefault()
			e.StopPropagation()
		}
	})
	b.handlers[fn] = h
	return h
}

// eventObject wraps a native event for one handler invocation.
func (b *binder) eventObject(e *dom.Event) *goja.Object {
	vm := b.vm
	obj := vm.NewObject()
	obj.Set("type", e.Type)
	obj.Set("target", b.nodeObject(e.Target()))
	obj.Set("currentTarget", b.nodeObject(e.CurrentTarget()))
	obj.Set("timeStamp", e.TimeStamp.UnixMilli())
	if e.Data != nil {
		obj.Set("data", b.toValue(e.Data))
	}
	if e.Detail != nil {
		obj.Set("detail", b.toValue(e.Detail))
	}

	obj.Set("preventDefault", func(call goja.FunctionCall) goja.Value {
		e.PreventDefault()
		return goja.Undefined()
	})
	obj.Set("stopPropagation", func(call goja.FunctionCall) goja.Value {
		e.StopPropagation()
		return goja.Undefined()
	})
	obj.Set("stopImmediatePropagation", func(call goja.FunctionCall) goja.Value {
		e.StopImmediatePropagation()
		return goja.Undefined()
	})
	obj.Set("isDefaultPrevented", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(e.DefaultPrevented())
	})
	obj.Set("isPropagationStopped", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(e.PropagationStopped())
	})
	return obj
}

// bindArgs parses (types, [selector], [data], handler).
type bindArgs struct {
	types    string
	selector string
	data     goja.Value
	handler  *goja.Object
}

func (b *binder) parseBind(call goja.FunctionCall) bindArgs {
	var a bindArgs
	a.types = call.Argument(0).String()
	rest := call.Arguments
	if len(rest) > 0 {
		rest = rest[1:]
	}
	if n := len(rest); n > 0 {
		if _, ok := goja.AssertFunction(rest[n-1]); ok {
			a.handler = rest[n-1].(*goja.Object)
			rest = rest[:n-1]
		}
	}
	if len(rest) > 0 {
		if s, ok := rest[0].Export().(string); ok {
			a.selector = s
			rest = rest[1:]
		} else if goja.IsNull(rest[0]) || goja.IsUndefined(rest[0]) {
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		a.data = rest[0]
	}
	return a
}

func (a bindArgs) options() []event.BindOption {
	var opts []event.BindOption
	if a.selector != "" {
		opts = append(opts, event.WithSelector(a.selector))
	}
	if a.data != nil {
		opts = append(opts, event.WithData(a.data))
	}
	return opts
}

func (b *binder) installEvents(obj *goja.Object, c *query.Collection) {
	vm := b.vm
	bind := func(once bool) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			a := b.parseBind(call)
			if a.handler == nil {
				panic(vm.NewTypeError("handler is not a function"))
			}
			opts := a.options()
			if once {
				opts = append(opts, event.Once())
			}
			if err := c.On(a.types, b.handlerFor(a.handler), opts...); err != nil {
				b.throw(err)
			}
			return obj
		}
	}
	obj.Set("on", bind(false))
	obj.Set("one", bind(true))

	// off(), off(types), off(types, selector), off(types, handler) and
	// off(types, selector, handler).
	obj.Set("off", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(c.OffAll())
		}
		a := b.parseBind(call)
		switch {
		case a.handler != nil && a.selector == "" && len(call.Arguments) == 2:
			h, ok := b.handlers[a.handler]
			return vm.ToValue(ok && c.OffHandler(a.types, h))
		case a.handler != nil:
			h, ok := b.handlers[a.handler]
			return vm.ToValue(ok && c.Undelegate(a.selector, a.types, h))
		case a.selector != "":
			return vm.ToValue(c.Undelegate(a.selector, a.types, nil))
		}
		return vm.ToValue(c.OffType(a.types))
	})

	obj.Set("trigger", func(call goja.FunctionCall) goja.Value {
		var detail any
		if len(call.Arguments) > 1 {
			detail = call.Argument(1)
		}
		c.Trigger(call.Argument(0).String(), detail)
		return obj
	})
}
