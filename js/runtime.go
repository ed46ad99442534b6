// Package js runs scripts against a document with the goja JavaScript
// engine (pure Go ES5.1+ implementation). The global $ exposes
// collections, events, data, deferreds and ajax.
//
// A Runtime is not safe for concurrent use. Scripts, event handlers, timers
// and settlement callbacks all run on the goroutine that drives the loop.
package js

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/ajax"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/event"
	"github.com/chrisuehlinger/vquery/loop"
	"github.com/chrisuehlinger/vquery/network"
)

// Runtime wraps a goja JavaScript runtime bound to one document.
type Runtime struct {
	vm     *goja.Runtime
	loop   *loop.Loop
	doc    *dom.Document
	events *event.Dispatcher
	ajax   *ajax.Client
	logger *zap.Logger
	out    io.Writer
	binder *binder
	timers *timerManager

	mu      sync.Mutex
	errors  []error
	onError func(error)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput sets where console output is written. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) { r.out = w }
}

// WithDispatcher sets the event dispatcher used by collections.
func WithDispatcher(d *event.Dispatcher) Option {
	return func(r *Runtime) { r.events = d }
}

// WithAjax sets the client behind $.ajax. Without it the runtime creates one
// with default network settings.
func WithAjax(c *ajax.Client) Option {
	return func(r *Runtime) { r.ajax = c }
}

// NewRuntime creates a runtime whose $ queries doc and whose asynchronous
// work is scheduled on lp.
func NewRuntime(lp *loop.Loop, doc *dom.Document, opts ...Option) *Runtime {
	if doc == nil {
		doc = dom.NewDocument()
	}
	r := &Runtime{
		vm:     goja.New(),
		loop:   lp,
		doc:    doc,
		logger: zap.NewNop(),
		out:    os.Stdout,
		timers: newTimerManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("js")
	if r.events == nil {
		r.events = event.NewDispatcher(nil, r.logger)
	}
	if r.ajax == nil {
		if httpClient, err := network.NewClient(network.WithLogger(r.logger)); err == nil {
			r.ajax = ajax.NewClient(httpClient, lp, ajax.WithLogger(r.logger))
		} else {
			r.logger.Warn("ajax disabled", zap.Error(err))
		}
	}
	r.binder = newBinder(r)

	r.setupConsole()
	r.setupTimers()
	r.setupWindow()
	r.binder.install()

	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Document returns the document $ queries.
func (r *Runtime) Document() *dom.Document {
	return r.doc
}

// SetOnError sets a callback for JavaScript errors.
func (r *Runtime) SetOnError(handler func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = handler
}

// Execute runs JavaScript code and returns the result.
func (r *Runtime) Execute(code string) (result goja.Value, err error) {
	// Recover from panics in the goja parser/runtime
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script execution panic: %v", p)
			r.reportError(err)
		}
	}()

	result, err = r.vm.RunString(code)
	if err != nil {
		r.reportError(err)
	}
	return result, err
}

// ExecuteScript compiles and runs code, naming it src in stack traces.
// Scripts are compiled in non-strict mode.
func (r *Runtime) ExecuteScript(code, src string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script compilation panic in %s: %v", src, p)
			r.reportError(err)
		}
	}()

	program, err := goja.Compile(src, code, false)
	if err != nil {
		r.reportError(err)
		return err
	}

	_, err = r.vm.RunProgram(program)
	if err != nil {
		r.reportError(err)
	}
	return err
}

// Run executes code as a loop task and then drives the loop until no task,
// timer or request remains, or ctx is done. It returns the script's own
// error first.
func (r *Runtime) Run(ctx context.Context, code, src string) error {
	var scriptErr error
	if err := r.loop.Post(func() { scriptErr = r.ExecuteScript(code, src) }); err != nil {
		return fmt.Errorf("schedule %s: %w", src, err)
	}
	if err := r.loop.RunUntilIdle(ctx); err != nil {
		if scriptErr != nil {
			return scriptErr
		}
		return fmt.Errorf("run %s: %w", src, err)
	}
	return scriptErr
}

// Errors returns all errors that occurred during execution, including those
// thrown by handlers and callbacks.
func (r *Runtime) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error{}, r.errors...)
}

// ClearErrors clears the error list.
func (r *Runtime) ClearErrors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = r.errors[:0]
}

func (r *Runtime) reportError(err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	onError := r.onError
	r.mu.Unlock()

	r.logger.Debug("script error", zap.Error(err))
	if onError != nil {
		onError(err)
	}
}

// call invokes fn, recording a thrown exception instead of returning it.
func (r *Runtime) call(fn goja.Callable, this goja.Value, args ...goja.Value) goja.Value {
	ret, err := fn(this, args...)
	if err != nil {
		r.reportError(err)
		return nil
	}
	return ret
}

// setupConsole creates the console object with log, warn, error, info and debug.
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()
	levels := map[string]string{
		"log":   "",
		"info":  "[INFO] ",
		"warn":  "[WARN] ",
		"error": "[ERROR] ",
		"debug": "[DEBUG] ",
	}
	for name, prefix := range levels {
		console.Set(name, func(call goja.FunctionCall) goja.Value {
			fmt.Fprintln(r.out, prefix+formatArgs(call.Arguments))
			return goja.Undefined()
		})
	}
	r.vm.Set("console", console)
}

// setupWindow makes window, self and globalThis point to the global object
// and exposes the document location.
func (r *Runtime) setupWindow() {
	window := r.vm.GlobalObject()
	r.vm.Set("window", window)
	r.vm.Set("self", window)
	r.vm.Set("globalThis", window)

	location := r.vm.NewObject()
	location.DefineAccessorProperty("href", r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.doc.URL())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	location.Set("toString", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.doc.URL())
	})
	window.Set("location", location)
}

// formatArgs formats function call arguments for console output.
func formatArgs(args []goja.Value) string {
	if len(args) == 0 {
		return ""
	}

	result := ""
	for i, arg := range args {
		if i > 0 {
			result += " "
		}
		result += formatValue(arg)
	}
	return result
}

// formatValue formats a single value for output. Plain objects and arrays
// are rendered as JSON.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		switch obj.ClassName() {
		case "Object", "Array":
			if b, err := obj.MarshalJSON(); err == nil {
				return string(b)
			}
		}
	}
	return v.String()
}
