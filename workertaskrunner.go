// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

// WorkerTaskRunner is a thin facade combining a Threadpool and a
// DelayedDispatcher for "any thread" task posting.
type WorkerTaskRunner struct {
	pool       *Threadpool
	dispatcher *DelayedDispatcher
}

// NewWorkerTaskRunner combines an existing pool and its dispatcher.
func NewWorkerTaskRunner(pool *Threadpool, dispatcher *DelayedDispatcher) *WorkerTaskRunner {
	return &WorkerTaskRunner{pool: pool, dispatcher: dispatcher}
}

// Post forwards to the Threadpool.
func (r *WorkerTaskRunner) Post(task *Task) *TaskState {
	return r.pool.Post(task)
}

// PostDelayed forwards to the DelayedDispatcher.
func (r *WorkerTaskRunner) PostDelayed(task *Task, delaySeconds float64) {
	r.dispatcher.PostDelayed(task, delaySeconds)
}

// WorkerCount forwards to the Threadpool.
func (r *WorkerTaskRunner) WorkerCount() int {
	return r.pool.WorkerCount()
}

// BlockingDrain forwards to the Threadpool, blocking until every
// outstanding worker task has completed.
func (r *WorkerTaskRunner) BlockingDrain() {
	r.pool.BlockingDrain()
}

// Shutdown stops the DelayedDispatcher. The Threadpool's own teardown is
// driven separately by Platform.Shutdown, which must happen after the
// dispatcher can no longer post to the pool.
func (r *WorkerTaskRunner) Shutdown() {
	r.dispatcher.Stop()
}
