// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"log/slog"
)

// worker is a single dedicated goroutine that pops tasks from a shared
// TaskQueue and executes them, honoring cancellation. Go's scheduler is
// left to decide which OS thread actually runs it.
type worker struct {
	name   string
	queue  *TaskQueue
	logger *slog.Logger
	done   chan struct{}
}

func newWorker(name string, queue *TaskQueue, logger *slog.Logger) *worker {
	return &worker{name: name, queue: queue, logger: logger, done: make(chan struct{})}
}

// start runs the worker loop in a new goroutine.
func (w *worker) start() {
	go w.run()
}

// run is the worker's main loop:
//  1. pop a task, blocking until one is available or the queue stops
//  2. try to move it to StateAssigned
//  3. if that succeeded, run it; otherwise it was cancelled while queued, skip
//  4. move it to StateCompleted and notify the queue
func (w *worker) run() {
	defer close(w.done)
	for {
		task := w.queue.BlockingPop()
		if task == nil {
			return
		}
		w.execute(task)
	}
}

func (w *worker) execute(task *Task) {
	defer w.queue.NotifyComplete()
	defer task.finish()

	s := task.TryTransition(StateAssigned)
	if s == StateAssigned {
		w.runTask(task)
	} else if w.logger != nil {
		w.logger.Debug("worker skipped cancelled task", "worker", w.name, "state", s)
	}

	task.TryTransition(StateCompleted)
}

// runTask executes the task's action, recovering from panics so that a
// single misbehaving task cannot kill the worker goroutine.
func (w *worker) runTask(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			if w.logger != nil {
				w.logger.Error("panic recovered while running task", "worker", w.name, "error", fmt.Sprint(r))
			}
		}
	}()
	task.Run()
}

// join blocks until the worker's run loop has returned, which happens once
// its queue is stopped and drained of poppable tasks.
func (w *worker) join() {
	<-w.done
}
