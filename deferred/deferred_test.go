package deferred

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferred_SettlesOnce(t *testing.T) {
	d := New()
	assert.Equal(t, Pending, d.State())
	assert.Nil(t, d.Args())

	ctx := "ctx"
	d.ResolveWith(ctx, 1, "two")
	assert.Equal(t, Resolved, d.State())

	d.RejectWith("other", "boom")
	d.ResolveWith("again", 3)
	assert.Equal(t, Resolved, d.State())
	assert.Equal(t, ctx, d.Context())
	assert.Equal(t, []any{1, "two"}, d.Args())
}

func TestDeferred_DoneAfterResolveRunsSynchronously(t *testing.T) {
	d := New().ResolveWith("ctx", 1, 2)

	var gotThis any
	var gotArgs []any
	ret := d.Done(func(this any, args ...any) []any {
		gotThis, gotArgs = this, args
		return nil
	})

	assert.Same(t, d, ret)
	assert.Equal(t, "ctx", gotThis)
	assert.Equal(t, []any{1, 2}, gotArgs)
}

func TestDeferred_PipelinesReturnedArgs(t *testing.T) {
	d := New()
	var second any
	d.Done(func(this any, args ...any) []any {
		return []any{10}
	}, func(this any, args ...any) []any {
		second = args[0].(int) + 1
		return nil
	})
	d.Resolve(1)
	assert.Equal(t, 11, second)

	// A nil return keeps the original arguments.
	d2 := New()
	var got []any
	d2.Done(func(this any, args ...any) []any { return nil })
	d2.Done(func(this any, args ...any) []any {
		got = args
		return nil
	})
	d2.Resolve("a", "b")
	assert.Equal(t, []any{"a", "b"}, got)

	assert.Equal(t, []any{1}, d.Args(), "stored args are the settlement args")
}

func TestDeferred_LateCallbacksGetStoredArgs(t *testing.T) {
	d := New()
	d.Done(func(this any, args ...any) []any { return []any{"replaced"} })
	d.Resolve("original")

	var got []any
	d.Done(func(this any, args ...any) []any {
		got = args
		return nil
	})
	assert.Equal(t, []any{"original"}, got)
}

func TestDeferred_QueuesRunInOrder(t *testing.T) {
	d := New()
	var order []string
	record := func(name string) Callback {
		return func(any, ...any) []any {
			order = append(order, name)
			return nil
		}
	}

	d.Done(record("done1"))
	d.Fail(record("fail1"))
	d.Always(record("always"))
	d.Then(record("then"), record("then-fail"))
	d.Done(record("done2"))
	assert.Empty(t, order, "nothing runs while pending")

	d.Reject("x")
	assert.Equal(t, []string{"fail1", "always", "then-fail"}, order)

	d.Done(record("late-done"))
	d.Fail(record("late-fail"))
	assert.Equal(t, []string{"fail1", "always", "then-fail", "late-fail"}, order)
}

func TestDeferred_ResolveUsesItselfAsContext(t *testing.T) {
	d := New()
	var this any
	d.Fail(func(ctx any, _ ...any) []any {
		this = ctx
		return nil
	})
	d.Reject()
	assert.Same(t, d, this)
	assert.Equal(t, Rejected, d.State())
}

func TestDeferred_NilCallbacks(t *testing.T) {
	d := New()
	assert.Same(t, d, d.Done(nil))
	assert.Same(t, d, d.Fail(nil, nil))
	assert.Same(t, d, d.Then(nil, nil))
	assert.Same(t, d, d.Always(nil))

	called := false
	d.Then(func(any, ...any) []any {
		called = true
		return nil
	}, nil)
	assert.NotPanics(t, func() { d.Resolve() })
	assert.True(t, called)
	assert.NotPanics(t, func() { d.Done(nil) })
}

func TestDeferred_CallbackMayRegisterMore(t *testing.T) {
	d := New()
	var nested []any
	d.Done(func(this any, args ...any) []any {
		d.Done(func(_ any, args ...any) []any {
			nested = args
			return nil
		})
		return nil
	})
	d.Resolve("v")
	assert.Equal(t, []any{"v"}, nested)
}

func TestDeferred_ConcurrentSettlement(t *testing.T) {
	d := New()
	var fired atomic.Int32
	d.Always(func(any, ...any) []any {
		fired.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				d.Resolve(i)
			} else {
				d.Reject(i)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	assert.NotEqual(t, Pending, d.State())
	require.Len(t, d.Args(), 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "unknown", State(9).String())
}
