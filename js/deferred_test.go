package js

import (
	"testing"
)

func TestDeferred_ResolvePipelinesArgs(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var log = [];
		var d = $.Deferred();
		d.done(function(a, b) { log.push(a + b); return a * 10; })
		 .done(function(x) { log.push(x); })
		 .fail(function() { log.push("fail"); });
		log.push(d.state());
		d.resolve(1, 2);
		d.reject("ignored");
		d.done(function(a, b) { log.push("late:" + a + b); });
		log.push(d.state());
		log.join(",")
	`)
	if got != "pending,3,10,late:12,resolved" {
		t.Errorf("Expected 'pending,3,10,late:12,resolved', got %v", got)
	}
}

func TestDeferred_ArrayReturnSpreadsArgs(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var log = [];
		var d = $.Deferred();
		d.done(function() { return [10]; })
		 .done(function(x) { log.push(x + 1); return [x, 5]; })
		 .done(function(a, b) { log.push(a + b); return []; })
		 .done(function() { log.push(arguments.length); });
		d.resolve(1);
		log.join(",")
	`)
	if got != "11,15,0" {
		t.Errorf("Expected '11,15,0', got %v", got)
	}
}

func TestDeferred_LateCallbacksOnPromiseGetContext(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var ctx = {name: "ctx"}, log = [];
		var d = $.Deferred();
		d.rejectWith(ctx, ["x", "y"]);
		var p = d.promise();
		p.fail(function(a, b) { log.push((this === ctx) + ":" + a + b); });
		p.always(function(a) { log.push((this === ctx) + ":" + a); });
		p.then(null, function(a, b) { log.push((this === ctx) + ":" + b); });
		log.join(",")
	`)
	if got != "true:xy,true:x,true:y" {
		t.Errorf("Expected 'true:xy,true:x,true:y', got %v", got)
	}
}

func TestDeferred_ContextAndWith(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var d = $.Deferred(), self, ctx = {name: "ctx"}, got;
		d.always(function() { self = this; });
		d.resolve();
		var e = $.Deferred();
		e.fail(function(a, b) { got = this.name + ":" + a + b; });
		e.rejectWith(ctx, ["x", "y"]);
		(self === d) + "," + got + "," + e.state()
	`)
	if got != "true,ctx:xy,rejected" {
		t.Errorf("Expected 'true,ctx:xy,rejected', got %v", got)
	}
}

func TestDeferred_PromiseIsReadOnly(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var d = $.Deferred(), seen;
		var p = d.promise();
		p.then(function(v) { seen = v; });
		d.resolve("ok");
		[typeof p.resolve, seen, p.state(), p.promise() === p].join(",")
	`)
	if got != "undefined,ok,resolved,true" {
		t.Errorf("Expected 'undefined,ok,resolved,true', got %v", got)
	}
}

func TestDeferred_Initializer(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	if got := mustExecute(t, r, `$.Deferred(function(d) { d.reject(); }).state()`); got != "rejected" {
		t.Errorf("Expected rejected, got %v", got)
	}
}

func TestWhen(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	got := mustExecute(t, r, `
		var out;
		var a = $.Deferred(), b = $.Deferred();
		$.when(a, 7, b.promise()).done(function(x, y, z) { out = [x, y, z].join("|"); });
		b.resolve("b", "ignored");
		a.resolve("a");
		out
	`)
	if got != "a|7|b" {
		t.Errorf("Expected 'a|7|b', got %v", got)
	}

	got = mustExecute(t, r, `
		var why;
		var c = $.Deferred();
		$.when(c, $.Deferred()).fail(function(reason) { why = reason; });
		c.reject("nope");
		why
	`)
	if got != "nope" {
		t.Errorf("Expected 'nope', got %v", got)
	}
}
