// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestWorkerTaskRunner(t *testing.T, size int) (*WorkerTaskRunner, *Threadpool) {
	t.Helper()
	tp := NewThreadpool(size, nil)
	d := NewDelayedDispatcher(tp, nil)
	r := NewWorkerTaskRunner(tp, d)
	t.Cleanup(func() {
		tp.Stop()
	})
	t.Cleanup(r.Shutdown)
	return r, tp
}

func TestWorkerTaskRunner_Post(t *testing.T) {
	r, _ := newTestWorkerTaskRunner(t, 2)

	fired := make(chan struct{})
	state := r.Post(NewTask(func() { close(fired) }, defaultTaskDetails()))
	if state == nil {
		t.Fatal("Post should return the task's state handle")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("posted task never ran")
	}
}

func TestWorkerTaskRunner_PostDelayed(t *testing.T) {
	r, _ := newTestWorkerTaskRunner(t, 2)

	fired := make(chan struct{})
	r.PostDelayed(NewTask(func() { close(fired) }, defaultTaskDetails()), 0)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never ran")
	}
}

func TestWorkerTaskRunner_WorkerCount(t *testing.T) {
	r, _ := newTestWorkerTaskRunner(t, 3)
	if got := r.WorkerCount(); got != 3 {
		t.Errorf("WorkerCount = %d, want 3", got)
	}
}

func TestWorkerTaskRunner_BlockingDrain(t *testing.T) {
	r, _ := newTestWorkerTaskRunner(t, 2)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		r.Post(NewTask(func() { count.Add(1) }, defaultTaskDetails()))
	}
	r.BlockingDrain()
	if got := count.Load(); got != 10 {
		t.Errorf("only %d of 10 tasks completed before drain returned", got)
	}
}
