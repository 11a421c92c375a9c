// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"sync"
	"sync/atomic"
	"time"
)

// nativeLoop is a self-contained RunnableLoop: a single goroutine draining
// a FIFO of callbacks, woken by a coalesced signal channel. It backs
// DelayedDispatcher's dedicated thread, and doubles as the loop any
// engine backend without a built-in event loop (engines/v8go,
// engines/quickjs-go) can run on its own dedicated, OS-thread-locked
// goroutine.
type nativeLoop struct {
	mu       sync.Mutex
	jobs     []func()
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewNativeLoop returns a fresh, unstarted RunnableLoop. Call Run on the
// goroutine that should own it.
func NewNativeLoop() RunnableLoop {
	return &nativeLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *nativeLoop) enqueue(cb func()) {
	l.mu.Lock()
	l.jobs = append(l.jobs, cb)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the job FIFO, blocking between batches, until Stop is called.
func (l *nativeLoop) Run() {
	for {
		select {
		case <-l.wake:
			l.drainOnce()
		case <-l.done:
			return
		}
	}
}

func (l *nativeLoop) drainOnce() {
	for {
		l.mu.Lock()
		if len(l.jobs) == 0 {
			l.mu.Unlock()
			return
		}
		job := l.jobs[0]
		l.jobs = l.jobs[1:]
		l.mu.Unlock()
		job()
	}
}

// Stop causes a blocked Run to return. Safe to call more than once, and
// safe to call from within a job callback running on the loop itself.
func (l *nativeLoop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *nativeLoop) CreateAsync(cb func()) AsyncHandle {
	return &nativeAsync{loop: l, cb: cb}
}

func (l *nativeLoop) CreateTimer() Timer {
	return &nativeTimer{loop: l}
}

// nativeAsync is the nativeLoop's AsyncHandle: Send enqueues the handle's
// fixed callback and coalesces the wakeup signal, exactly like a libuv
// uv_async_t.
type nativeAsync struct {
	loop   *nativeLoop
	cb     func()
	closed atomic.Bool
}

func (a *nativeAsync) Send() {
	if a.closed.Load() {
		return
	}
	a.loop.enqueue(a.cb)
}

func (a *nativeAsync) Unref() {}

func (a *nativeAsync) Close() { a.closed.Store(true) }

// nativeTimer is the nativeLoop's Timer, backed by time.AfterFunc; the
// timer's own goroutine only enqueues the callback onto the loop, so the
// callback still runs on the loop's goroutine.
type nativeTimer struct {
	mu     sync.Mutex
	loop   *nativeLoop
	timer  *time.Timer
	closed bool
}

func (t *nativeTimer) Start(timeoutMs int64, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		t.loop.enqueue(cb)
	})
}

func (t *nativeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *nativeTimer) Unref() {}

func (t *nativeTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
