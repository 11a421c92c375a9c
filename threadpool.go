// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
)

// ThreadpoolSizeEnvVar is the environment variable consulted when no
// explicit pool size is configured, shared with libuv's worker pool.
const ThreadpoolSizeEnvVar = "UV_THREADPOOL_SIZE"

// defaultThreadpoolSize is the fallback used when no explicit size is
// given, the env var is unset or unparseable, and the detected CPU count
// is unavailable. Same fallback as libuv's default pool size.
const defaultThreadpoolSize = 4

// resolveThreadpoolSize implements the explicit > env > detected-CPU-count
// > 4 precedence chain.
func resolveThreadpoolSize(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if raw := os.Getenv(ThreadpoolSizeEnvVar); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return defaultThreadpoolSize
}

// Threadpool owns N workers and a single shared TaskQueue. Its size is
// fixed once constructed.
type Threadpool struct {
	queue   *TaskQueue
	workers []*worker
	logger  *slog.Logger
}

// NewThreadpool constructs and starts a Threadpool. size <= 0 triggers the
// env-var / CPU-count / default resolution chain.
func NewThreadpool(size int, logger *slog.Logger) *Threadpool {
	resolved := resolveThreadpoolSize(size)
	if resolved < 1 {
		panic("platform: resolved threadpool size must be >= 1")
	}

	tp := &Threadpool{
		queue:  NewTaskQueue(),
		logger: logger,
	}
	for i := 0; i < resolved; i++ {
		w := newWorker(fmt.Sprintf("worker-%d", i), tp.queue, logger)
		w.start()
		tp.workers = append(tp.workers, w)
	}
	if logger != nil {
		logger.Debug("threadpool started", "size", resolved)
	}
	return tp
}

// Post attaches a fresh TaskState to task, pushes it onto the shared queue,
// and returns the state handle. Posting never fails in the lifetime of a
// Threadpool that hasn't been stopped yet; a post after Stop is a contract
// violation.
func (tp *Threadpool) Post(task *Task) *TaskState {
	state := task.attachState()
	if !tp.queue.Push(task) {
		panic("platform: Threadpool.Post called after Stop")
	}
	return state
}

// QueueLength returns the number of tasks currently sitting in the shared
// queue (not counting tasks already popped by a worker).
func (tp *Threadpool) QueueLength() int {
	return tp.queue.Length()
}

// BlockingDrain waits until every outstanding task (queued or assigned)
// has completed.
func (tp *Threadpool) BlockingDrain() {
	tp.queue.BlockingDrain()
}

// WorkerCount returns the number of workers in the pool.
func (tp *Threadpool) WorkerCount() int {
	return len(tp.workers)
}

// Stop stops the shared queue (so Push starts returning false) and joins
// every worker. Tasks still queued when Stop is called are silently
// dropped: they are removed from the queue and never run, and their
// TaskState remains StateQueued forever. Only tasks already popped by a
// worker are allowed to finish.
func (tp *Threadpool) Stop() {
	dropped := tp.queue.PopAll()
	for range dropped {
		tp.queue.NotifyComplete()
	}
	tp.queue.Stop()
	for _, w := range tp.workers {
		w.join()
	}
	if tp.logger != nil {
		tp.logger.Debug("threadpool stopped", "droppedTasks", len(dropped))
	}
}
