// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"sync"
	"testing"
	"time"
)

func noopTask() *Task {
	return NewTask(func() {}, defaultTaskDetails())
}

func TestTaskQueue_PushPopFIFO(t *testing.T) {
	q := NewTaskQueue()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		q.Push(NewTask(func() { order = append(order, i) }, defaultTaskDetails()))
	}
	if got := q.Length(); got != 3 {
		t.Fatalf("queue length = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		task := q.TryPop()
		if task == nil {
			t.Fatalf("TryPop returned nil at %d", i)
		}
		task.Run()
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks popped out of order: %v", order)
		}
	}
	if q.TryPop() != nil {
		t.Error("TryPop on an empty queue should return nil")
	}
}

func TestTaskQueue_PushTransitionsToQueued(t *testing.T) {
	q := NewTaskQueue()
	task := noopTask()
	task.attachState()
	q.Push(task)
	if got := task.State().Current(); got != StateQueued {
		t.Errorf("pushed task state = %v, want queued", got)
	}
}

func TestTaskQueue_PushKeepsCancelledTask(t *testing.T) {
	q := NewTaskQueue()
	task := noopTask()
	state := task.attachState()
	state.Cancel()
	if !q.Push(task) {
		t.Fatal("push of a cancelled task should still succeed")
	}
	if got := state.Current(); got != StateCancelled {
		t.Errorf("cancelled task state after push = %v, want cancelled", got)
	}
	if q.Length() != 1 {
		t.Error("cancelled task should still be enqueued")
	}
}

func TestTaskQueue_PushAfterStop(t *testing.T) {
	q := NewTaskQueue()
	if !q.Push(noopTask()) {
		t.Fatal("push before stop should succeed")
	}
	q.Stop()
	if q.Push(noopTask()) {
		t.Error("push after stop should return false")
	}
	// The element pushed before Stop remains poppable.
	if q.BlockingPop() == nil {
		t.Error("element pushed before stop should remain poppable")
	}
	if q.BlockingPop() != nil {
		t.Error("BlockingPop on a stopped empty queue should return nil")
	}
}

func TestTaskQueue_BlockingPopWakesOnPush(t *testing.T) {
	q := NewTaskQueue()
	popped := make(chan *Task, 1)
	go func() { popped <- q.BlockingPop() }()

	time.Sleep(10 * time.Millisecond)
	q.Push(noopTask())

	select {
	case task := <-popped:
		if task == nil {
			t.Error("BlockingPop should have returned the pushed task")
		}
	case <-time.After(time.Second):
		t.Fatal("BlockingPop did not wake after push")
	}
}

func TestTaskQueue_BlockingPopWakesOnStop(t *testing.T) {
	q := NewTaskQueue()
	popped := make(chan *Task, 1)
	go func() { popped <- q.BlockingPop() }()

	time.Sleep(10 * time.Millisecond)
	q.Stop()

	select {
	case task := <-popped:
		if task != nil {
			t.Error("BlockingPop woken by stop should return nil")
		}
	case <-time.After(time.Second):
		t.Fatal("BlockingPop did not wake after stop")
	}
}

func TestTaskQueue_BlockingDrain(t *testing.T) {
	q := NewTaskQueue()
	for i := 0; i < 5; i++ {
		q.Push(noopTask())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			q.BlockingPop()
			q.NotifyComplete()
		}
	}()

	done := make(chan struct{})
	go func() {
		q.BlockingDrain()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockingDrain did not return after all tasks completed")
	}
	wg.Wait()

	// An already-drained queue does not block.
	q.BlockingDrain()
}

func TestTaskQueue_NotifyCompleteUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NotifyComplete on a queue with no outstanding tasks should panic")
		}
	}()
	NewTaskQueue().NotifyComplete()
}

func TestTaskQueue_PopAll(t *testing.T) {
	q := NewTaskQueue()
	for i := 0; i < 4; i++ {
		q.Push(noopTask())
	}
	tasks := q.PopAll()
	if len(tasks) != 4 {
		t.Fatalf("PopAll returned %d tasks, want 4", len(tasks))
	}
	if q.Length() != 0 {
		t.Error("queue should be empty after PopAll")
	}
	if got := q.PopAll(); len(got) != 0 {
		t.Error("PopAll on an empty queue should return nothing")
	}
}
