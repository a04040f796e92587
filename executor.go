package gqlstore

import (
	"context"
	"sync"
)

// Executor runs deferred work on the engine's single logical thread.
type Executor interface {
	// Post schedules task to run after the current synchronous turn. It must
	// be safe to call from any goroutine.
	Post(task func())
}

// TaskLoop is a cooperative FIFO task queue. Tasks run on whichever
// goroutine calls RunPending or Run, one at a time.
type TaskLoop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

func NewTaskLoop() *TaskLoop {
	return &TaskLoop{wake: make(chan struct{}, 1)}
}

func (l *TaskLoop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *TaskLoop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.tasks
	l.tasks = nil
	return tasks
}

func (l *TaskLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// RunPending runs queued tasks, including the ones they post, until the
// queue is empty. Returns the number of tasks run.
func (l *TaskLoop) RunPending() int {
	var n int
	for {
		tasks := l.take()
		if len(tasks) == 0 {
			return n
		}
		for _, task := range tasks {
			task()
			n++
		}
	}
}

// Run processes tasks as they arrive until ctx is done.
func (l *TaskLoop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

type Disposable interface {
	Dispose()
}

type disposeFunc func()

func (f disposeFunc) Dispose() {
	f()
}

var noopDisposable = disposeFunc(func() {})

// onceDisposable makes repeated Dispose calls harmless.
func onceDisposable(f func()) Disposable {
	var once sync.Once
	return disposeFunc(func() {
		once.Do(f)
	})
}
