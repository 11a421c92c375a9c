// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import "sync"

// TaskQueue is a thread-safe, bounded-signal multi-producer/multi-consumer
// FIFO of *Task, with drain and stop semantics. It is the queue shared by a
// Threadpool's Workers, and is reused as the foreground queue of a
// PerLoopRunner.
type TaskQueue struct {
	mu               sync.Mutex
	available        sync.Cond
	drained          sync.Cond
	tasks            []*Task
	outstandingTasks int
	stopped          bool
}

// NewTaskQueue returns an empty, running TaskQueue.
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.available.L = &q.mu
	q.drained.L = &q.mu
	return q
}

// Push enqueues task, transitioning it to StateQueued (the transition may
// be a no-op if the task was already StateCancelled; it is enqueued either
// way). Returns false without enqueueing if the queue has been stopped.
func (q *TaskQueue) Push(task *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	task.TryTransition(StateQueued)

	q.tasks = append(q.tasks, task)
	q.outstandingTasks++
	q.available.Signal()
	return true
}

// TryPop returns and removes the front task, or nil if the queue is empty.
func (q *TaskQueue) TryPop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *TaskQueue) popLocked() *Task {
	if len(q.tasks) == 0 {
		return nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task
}

// BlockingPop waits until the queue is non-empty or stopped. It returns the
// front task, or nil if it woke because the queue was stopped and is empty.
func (q *TaskQueue) BlockingPop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.stopped {
		q.available.Wait()
	}
	return q.popLocked()
}

// NotifyComplete decrements the outstanding-tasks counter, broadcasting to
// any blocked BlockingDrain callers once it reaches zero.
func (q *TaskQueue) NotifyComplete() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstandingTasks--
	if q.outstandingTasks < 0 {
		panic("platform: TaskQueue outstanding task count went negative")
	}
	if q.outstandingTasks == 0 {
		q.drained.Broadcast()
	}
}

// BlockingDrain waits until the outstanding-tasks counter reaches zero.
func (q *TaskQueue) BlockingDrain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.outstandingTasks > 0 {
		q.drained.Wait()
	}
}

// Stop marks the queue stopped and wakes every blocked waiter. After Stop,
// Push always returns false. Tasks pushed before Stop remain poppable
// until drained.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.available.Broadcast()
}

// Length returns the current number of queued (not yet popped) tasks.
func (q *TaskQueue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// PopAll atomically removes and returns the entire contents of the queue,
// in FIFO order. Used by PerLoopRunner to snapshot the foreground queue
// before flushing it.
func (q *TaskQueue) PopAll() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}
