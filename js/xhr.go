package js

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/chrisuehlinger/vquery/ajax"
	"github.com/chrisuehlinger/vquery/deferred"
)

// xhrObject returns the wrapper of req, shaped like the jqXHR fields scripts
// read in callbacks.
func (b *binder) xhrObject(req *ajax.Request) *goja.Object {
	if obj, ok := b.xhrMap[req]; ok {
		return obj
	}
	vm := b.vm
	obj := vm.NewObject()
	obj.Set("id", req.ID())

	getter := func(name string, fn func() any) {
		obj.DefineAccessorProperty(name, vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(fn())
		}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	getter("readyState", func() any { return int(req.ReadyState()) })
	getter("status", func() any { return req.Status() })
	getter("statusText", func() any { return req.StatusText() })
	getter("responseText", func() any { return req.ResponseText() })

	obj.Set("getResponseHeader", func(call goja.FunctionCall) goja.Value {
		v := req.ResponseHeader(call.Argument(0).String())
		if v == "" {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	obj.Set("setRequestHeader", func(call goja.FunctionCall) goja.Value {
		if err := req.SetRequestHeader(call.Argument(0).String(), call.Argument(1).String()); err != nil {
			b.throw(err)
		}
		return obj
	})
	obj.Set("abort", func(call goja.FunctionCall) goja.Value {
		req.Abort()
		return goja.Undefined()
	})

	b.xhrMap[req] = obj
	return obj
}

// settings reads an ajax settings object. Success, error and complete
// callbacks are returned separately so they can be attached to the result.
func (b *binder) settings(obj *goja.Object) (ajax.Settings, []goja.Value) {
	s := ajax.Settings{Document: b.rt.doc}
	if obj == nil {
		return s, nil
	}
	str := func(name string) string {
		v := obj.Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return ""
		}
		return v.String()
	}

	s.URL = str("url")
	s.Method = str("method")
	if s.Method == "" {
		s.Method = str("type")
	}
	s.ContentType = str("contentType")
	s.DataType = str("dataType")
	if v := obj.Get("timeout"); v != nil && !goja.IsUndefined(v) {
		s.Timeout = time.Duration(v.ToInteger()) * time.Millisecond
	}

	if headers, ok := obj.Get("headers").(*goja.Object); ok {
		s.Header = make(map[string]string)
		for _, k := range headers.Keys() {
			s.Header[k] = headers.Get(k).String()
		}
	}

	if data := obj.Get("data"); data != nil && !goja.IsUndefined(data) && !goja.IsNull(data) {
		body := data.String()
		if form, ok := data.(*goja.Object); ok && form.ClassName() == "Object" {
			q := url.Values{}
			for _, k := range form.Keys() {
				q.Set(k, form.Get(k).String())
			}
			body = q.Encode()
			if s.ContentType == "" {
				s.ContentType = "application/x-www-form-urlencoded"
			}
		}
		if s.Method == "" || strings.EqualFold(s.Method, http.MethodGet) {
			sep := "?"
			if strings.Contains(s.URL, "?") {
				sep = "&"
			}
			s.URL += sep + body
		} else {
			s.Body = body
		}
	}

	if fn, ok := goja.AssertFunction(obj.Get("beforeSend")); ok {
		s.BeforeSend = func(req *ajax.Request) bool {
			return !isFalse(b.rt.call(fn, b.xhrObject(req), b.xhrObject(req)))
		}
	}

	return s, []goja.Value{obj.Get("success"), obj.Get("error"), obj.Get("complete")}
}

func (b *binder) request(s ajax.Settings, hooks []goja.Value) goja.Value {
	if b.rt.ajax == nil {
		panic(b.vm.NewTypeError("ajax is not available"))
	}
	d := b.rt.ajax.Do(s)
	b.attach(d, hooks)
	return b.promiseObject(d)
}

// attach registers success, error and complete on d.
func (b *binder) attach(d *deferred.Deferred, hooks []goja.Value) {
	for i, hook := range hooks {
		cb := b.optionalCallback(hook)
		if cb == nil {
			continue
		}
		switch i {
		case 0:
			d.Done(cb)
		case 1:
			d.Fail(cb)
		case 2:
			d.Always(cb)
		}
	}
}

// installAjax defines $.ajax, $.get, $.getJSON and $.post.
func (b *binder) installAjax(dollar *goja.Object) {
	// $.ajax(settings) or $.ajax(url, settings)
	dollar.Set("ajax", func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		opts, _ := arg.(*goja.Object)
		var target string
		if _, isString := arg.Export().(string); isString {
			target = arg.String()
			opts, _ = call.Argument(1).(*goja.Object)
		}
		s, hooks := b.settings(opts)
		if target != "" {
			s.URL = target
		}
		return b.request(s, hooks)
	})

	shorthand := func(method, dataType string) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			s := ajax.Settings{
				URL:      call.Argument(0).String(),
				Method:   method,
				DataType: dataType,
				Document: b.rt.doc,
			}
			success := call.Argument(1)
			if method == http.MethodPost {
				if data := call.Argument(1); !goja.IsUndefined(data) {
					if _, isFn := goja.AssertFunction(data); !isFn {
						s.Body = data.String()
						s.ContentType = "application/x-www-form-urlencoded"
						success = call.Argument(2)
					}
				}
			}
			return b.request(s, []goja.Value{success})
		}
	}
	dollar.Set("get", shorthand(http.MethodGet, ""))
	dollar.Set("getJSON", shorthand(http.MethodGet, ajax.DataTypeJSON))
	dollar.Set("post", shorthand(http.MethodPost, ""))
}
