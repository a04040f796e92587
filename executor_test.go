package gqlstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskLoop_RunPendingRunsNestedTasks(t *testing.T) {
	loop := NewTaskLoop()
	var order []int
	loop.Post(func() {
		order = append(order, 1)
		loop.Post(func() { order = append(order, 3) })
	})
	loop.Post(func() { order = append(order, 2) })

	deepEqual(t, loop.Len(), 2)
	deepEqual(t, loop.RunPending(), 3)
	deepEqual(t, order, []int{1, 2, 3})
	deepEqual(t, loop.Len(), 0)
}

func TestTaskLoop_Run(t *testing.T) {
	loop := NewTaskLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Post(func() { close(done) })
	}()

	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("** task posted from another goroutine never ran")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("** got %v, wanted context.Canceled", err)
	}
}

func TestEnvironment_RunPendingRequiresTaskLoop(t *testing.T) {
	env := setup(t, Options{Executor: NewTaskLoop()})
	assertPanics(t, func() { env.RunPending() })
}

func TestOnceDisposable(t *testing.T) {
	var n int
	d := onceDisposable(func() { n++ })
	d.Dispose()
	d.Dispose()
	deepEqual(t, n, 1)
}
