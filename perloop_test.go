// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"sync/atomic"
	"testing"
	"time"
)

// onLoop runs fn on loop's goroutine and waits for it, for tests that need
// to poke at loop-thread-only state.
func onLoop(loop RunnableLoop, fn func()) {
	done := make(chan struct{})
	async := loop.CreateAsync(func() {
		defer close(done)
		fn()
	})
	async.Send()
	<-done
	async.Close()
}

func TestPerLoopRunner_FlushRunsPostedTasks(t *testing.T) {
	// The loop is deliberately not running; Flush is driven directly, the
	// way Platform.FlushForeground drives it from the loop thread.
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)

	var ran atomic.Bool
	r.Post(NewTask(func() { ran.Store(true) }, defaultTaskDetails()))

	if !r.Flush() {
		t.Error("flush with pending work should return true")
	}
	if !ran.Load() {
		t.Error("posted task did not run during flush")
	}
	if r.Flush() {
		t.Error("flush with no pending work should return false")
	}
}

func TestPerLoopRunner_FlushRunsTasksInPostOrder(t *testing.T) {
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.Post(NewTask(func() { order = append(order, i) }, defaultTaskDetails()))
	}
	r.Flush()

	if len(order) != 5 {
		t.Fatalf("flush ran %d tasks, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestPerLoopRunner_TaskPostedDuringFlushWaitsForNextPass(t *testing.T) {
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)

	var second atomic.Bool
	r.Post(NewTask(func() {
		r.Post(NewTask(func() { second.Store(true) }, defaultTaskDetails()))
	}, defaultTaskDetails()))

	r.Flush()
	if second.Load() {
		t.Error("task posted during flush must not run in the same pass")
	}
	if !r.Flush() {
		t.Error("second flush should find the newly posted task")
	}
	if !second.Load() {
		t.Error("task posted during flush never ran")
	}
}

func TestPerLoopRunner_AsyncWakeupFlushesOnLoopThread(t *testing.T) {
	loop := NewNativeLoop()
	go loop.Run()
	defer loop.Stop()
	r := newPerLoopRunner(loop, nil)

	fired := make(chan struct{})
	r.Post(NewTask(func() { close(fired) }, defaultTaskDetails()))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("posting should wake the loop and flush without an explicit Flush call")
	}
}

func TestPerLoopRunner_DelayedTaskRunsAfterTimer(t *testing.T) {
	loop := NewNativeLoop()
	go loop.Run()
	defer loop.Stop()
	r := newPerLoopRunner(loop, nil)

	fired := make(chan struct{})
	r.PostDelayed(NewTask(func() { close(fired) }, defaultTaskDetails()), 0)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed foreground task never ran")
	}

	// The scheduled-delayed collection empties once the timer has fired.
	var remaining int
	onLoop(loop, func() { remaining = len(r.scheduled) })
	if remaining != 0 {
		t.Errorf("scheduled-delayed collection has %d entries after fire, want 0", remaining)
	}
}

func TestPerLoopRunner_CancelPendingDelayed(t *testing.T) {
	loop := NewNativeLoop()
	go loop.Run()
	defer loop.Stop()
	r := newPerLoopRunner(loop, nil)

	var ran atomic.Bool
	r.PostDelayed(NewTask(func() { ran.Store(true) }, defaultTaskDetails()), 60)

	// Let the wakeup flush arm the timer, then cancel on the loop thread.
	var remaining int
	onLoop(loop, func() {
		r.CancelPendingDelayed()
		remaining = len(r.scheduled)
	})
	if remaining != 0 {
		t.Errorf("scheduled-delayed collection has %d entries after cancel, want 0", remaining)
	}

	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled delayed task must not run")
	}
}

func TestPerLoopRunner_ShutdownFlushesRemainingWork(t *testing.T) {
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)

	var ran atomic.Bool
	r.Post(NewTask(func() { ran.Store(true) }, defaultTaskDetails()))

	r.shutdown()
	if !ran.Load() {
		t.Error("shutdown should flush pending foreground tasks")
	}

	// A second shutdown is a no-op.
	r.shutdown()
}

func TestPerLoopRunner_PostIdlePanics(t *testing.T) {
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)
	defer func() {
		if recover() == nil {
			t.Error("PostIdle should panic")
		}
	}()
	r.PostIdle(noopTask())
}

func TestPerLoopRunner_IdleTasksDisabled(t *testing.T) {
	r := newPerLoopRunner(NewNativeLoop(), nil)
	if r.IdleTasksEnabled() {
		t.Error("idle tasks must be reported as disabled")
	}
}

func TestPerLoopRunner_PanickingTaskDoesNotStopFlush(t *testing.T) {
	loop := NewNativeLoop()
	r := newPerLoopRunner(loop, nil)

	var ran atomic.Bool
	r.Post(NewTask(func() { panic("boom") }, defaultTaskDetails()))
	r.Post(NewTask(func() { ran.Store(true) }, defaultTaskDetails()))

	r.Flush()
	if !ran.Load() {
		t.Error("a panicking task must not prevent later tasks from running")
	}
}
