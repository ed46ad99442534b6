package js

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/loop"
)

func newTestRuntime(t *testing.T, markup string, opts ...Option) (*Runtime, *bytes.Buffer) {
	t.Helper()
	doc, err := dom.ParseHTML(markup)
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	lp := loop.New(nil)
	t.Cleanup(lp.Close)

	var out bytes.Buffer
	r := NewRuntime(lp, doc, append([]Option{WithOutput(&out)}, opts...)...)
	return r, &out
}

func drain(t *testing.T, r *Runtime) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.loop.RunUntilIdle(ctx); err != nil {
		t.Fatalf("RunUntilIdle failed: %v", err)
	}
}

func mustExecute(t *testing.T, r *Runtime, code string) string {
	t.Helper()
	result, err := r.Execute(code)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return result.String()
}

func TestRuntimeBasic(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	result, err := r.Execute("1 + 2")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.ToInteger() != 3 {
		t.Errorf("Expected 3, got %v", result.ToInteger())
	}
}

func TestRuntimeFunctions(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		function add(a, b) {
			return a + b;
		}
	`)
	if got := mustExecute(t, r, "add(3, 4)"); got != "7" {
		t.Errorf("Expected 7, got %v", got)
	}
}

func TestRuntimeConsole(t *testing.T) {
	r, out := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		console.log("test message", 1, {a: [1, 2]});
		console.warn("careful");
		console.error(null, undefined);
	`)

	want := "test message 1 {\"a\":[1,2]}\n[WARN] careful\n[ERROR] null undefined\n"
	if out.String() != want {
		t.Errorf("console output = %q, want %q", out.String(), want)
	}
}

func TestRuntimeSetTimeout(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		var order = [];
		setTimeout(function(tag) { order.push(tag); }, 20, "late");
		setTimeout(function() { order.push("early"); }, 0);
		order.push("sync");
	`)
	drain(t, r)

	if got := mustExecute(t, r, "order.join(',')"); got != "sync,early,late" {
		t.Errorf("Expected 'sync,early,late', got %v", got)
	}
	if r.timers.pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", r.timers.pending())
	}
}

func TestRuntimeClearTimeout(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		var called = false;
		var id = setTimeout(function() {
			called = true;
		}, 10);
		clearTimeout(id);
	`)
	drain(t, r)

	if got := mustExecute(t, r, "called"); got != "false" {
		t.Error("setTimeout callback was called after clearTimeout")
	}
}

func TestRuntimeSetInterval(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		var count = 0;
		var id = setInterval(function() {
			count++;
			if (count === 3) {
				clearInterval(id);
			}
		}, 5);
	`)
	drain(t, r)

	if got := mustExecute(t, r, "count"); got != "3" {
		t.Errorf("Expected count 3, got %v", got)
	}
}

func TestRuntimeGlobalThis(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	if got := mustExecute(t, r, "globalThis === window && self === window"); got != "true" {
		t.Error("Expected globalThis and self to be window")
	}
	r.Document().SetURL("https://example.com/page")
	if got := mustExecute(t, r, "location.href"); got != "https://example.com/page" {
		t.Errorf("Expected document URL, got %v", got)
	}
}

func TestRuntimeErrorHandling(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")
	var reported []error
	r.SetOnError(func(err error) { reported = append(reported, err) })

	_, err := r.Execute("this is not valid javascript")
	if err == nil {
		t.Error("Expected error for invalid JavaScript")
	}
	if len(r.Errors()) == 0 || len(reported) != 1 {
		t.Errorf("Expected error to be recorded and reported, got %d/%d", len(r.Errors()), len(reported))
	}

	r.ClearErrors()
	if len(r.Errors()) != 0 {
		t.Errorf("Expected errors to be cleared, got %d", len(r.Errors()))
	}
}

func TestRuntimeCallbackErrorsAreRecorded(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	mustExecute(t, r, `
		var after = false;
		setTimeout(function() { throw new Error("boom"); }, 0);
		setTimeout(function() { after = true; }, 1);
	`)
	drain(t, r)

	errs := r.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "boom") {
		t.Errorf("Expected one recorded 'boom' error, got %v", errs)
	}
	if got := mustExecute(t, r, "after"); got != "true" {
		t.Error("a throwing callback must not stop later tasks")
	}
}

func TestRuntimeRun(t *testing.T) {
	r, out := newTestRuntime(t, "<body></body>")

	err := r.Run(context.Background(), `
		setTimeout(function() { console.log("tick"); }, 5);
		console.log("start");
	`, "main.js")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "start\ntick\n" {
		t.Errorf("output = %q", out.String())
	}

	err = r.Run(context.Background(), `throw new Error("bad")`, "bad.js")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Expected script error, got %v", err)
	}
}

func TestRuntimePanicRecovery(t *testing.T) {
	r, _ := newTestRuntime(t, "<body></body>")

	// Unicode escapes like \u{10ffff} can cause some goja versions to panic.
	code := `var x = "\u{10ffff}";`
	if err := r.ExecuteScript(code, "test.js"); err != nil {
		t.Logf("Got error (expected for unicode escape): %v", err)
	}

	result, err := r.Execute("1 + 1")
	if err != nil {
		t.Errorf("Runtime should still work after panic recovery: %v", err)
	}
	if result.ToInteger() != 2 {
		t.Errorf("Expected 2, got %v", result.ToInteger())
	}
}
