// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"log/slog"
	"sync"
)

// foregroundDelayed is a foreground task waiting to have a timer armed for
// it, paired with its requested delay. It sits in the PerLoopRunner's
// delayed queue between PostDelayed and the next Flush on the loop thread.
type foregroundDelayed struct {
	task  *Task
	delay float64
}

// PerLoopRunner runs foreground tasks on the single loop thread that owns
// one registered engine instance. Any goroutine may post to it; execution
// always happens on the owning loop's thread, driven by an async-wakeup
// handle whose callback is Flush.
type PerLoopRunner struct {
	loop  Loop
	async AsyncHandle

	foreground *TaskQueue

	delayedMu sync.Mutex
	delayed   []foregroundDelayed

	// scheduled holds the timer-backed delayed tasks currently armed on
	// the loop. Loop thread only; no lock.
	scheduled map[Timer]*Task

	// refs counts live registrations of the owning engine instance.
	// Guarded by the Platform's engine-map mutex.
	refs int

	logger *slog.Logger
}

// newPerLoopRunner registers an async-wakeup handle on loop whose callback
// is the runner's Flush, and unrefs it so the handle does not by itself
// keep the loop alive.
func newPerLoopRunner(loop Loop, logger *slog.Logger) *PerLoopRunner {
	r := &PerLoopRunner{
		loop:       loop,
		foreground: NewTaskQueue(),
		scheduled:  make(map[Timer]*Task),
		logger:     logger,
	}
	r.async = loop.CreateAsync(func() { r.Flush() })
	r.async.Unref()
	return r
}

// Post enqueues task for execution on the loop thread and wakes the loop.
// Safe to call from any goroutine.
func (r *PerLoopRunner) Post(task *Task) {
	r.foreground.Push(task)
	r.async.Send()
}

// PostDelayed enqueues task to be executed on the loop thread no sooner
// than delaySeconds from now, and wakes the loop so it can arm the timer.
// Safe to call from any goroutine.
func (r *PerLoopRunner) PostDelayed(task *Task, delaySeconds float64) {
	r.delayedMu.Lock()
	r.delayed = append(r.delayed, foregroundDelayed{task: task, delay: delaySeconds})
	r.delayedMu.Unlock()
	r.async.Send()
}

// PostIdle is part of the engine-facing runner contract but idle tasks are
// unsupported; calling it is a contract violation.
func (r *PerLoopRunner) PostIdle(task *Task) {
	panic("platform: idle tasks are not supported")
}

// IdleTasksEnabled reports whether this runner accepts idle tasks. It never
// does.
func (r *PerLoopRunner) IdleTasksEnabled() bool {
	return false
}

func (r *PerLoopRunner) popAllDelayed() []foregroundDelayed {
	r.delayedMu.Lock()
	defer r.delayedMu.Unlock()
	delayed := r.delayed
	r.delayed = nil
	return delayed
}

// Flush runs pending foreground work on the calling goroutine, which must
// be the loop's owning thread. It first arms one unreferenced timer per
// queued delayed task, then snapshots the foreground queue and executes
// every task in it, in push order. Tasks posted while Flush is executing
// are not run in this pass; their Post already signalled a follow-up
// wakeup. Returns true iff a timer was armed or a task was executed.
func (r *PerLoopRunner) Flush() bool {
	didWork := false

	for _, d := range r.popAllDelayed() {
		timer := r.loop.CreateTimer()
		r.scheduled[timer] = d.task
		timer.Start(delayMillis(d.delay), func() { r.fireTimer(timer) })
		timer.Unref()
		didWork = true
	}

	for _, task := range r.foreground.PopAll() {
		r.runTask(task)
		didWork = true
	}

	return didWork
}

// fireTimer runs on the loop thread when a scheduled-delayed task's timer
// expires: execute the task, then retire the timer.
func (r *PerLoopRunner) fireTimer(timer Timer) {
	task, ok := r.scheduled[timer]
	if !ok {
		return
	}
	r.runTask(task)
	delete(r.scheduled, timer)
	timer.Stop()
	timer.Close()
}

// runTask executes one foreground task, recovering from panics so a
// misbehaving task cannot take down the loop thread.
func (r *PerLoopRunner) runTask(task *Task) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("panic recovered while running foreground task", "error", fmt.Sprint(rec))
			}
		}
	}()
	task.Run()
}

// CancelPendingDelayed drops every scheduled-delayed task whose timer has
// not fired yet, closing the timers. Loop thread only.
func (r *PerLoopRunner) CancelPendingDelayed() {
	for timer := range r.scheduled {
		delete(r.scheduled, timer)
		timer.Stop()
		timer.Close()
	}
}

// shutdown flushes until no work remains, drops all pending delayed tasks,
// and closes the async handle. Called by the Platform, on the loop thread,
// once the runner's last registration is released.
func (r *PerLoopRunner) shutdown() {
	if r.async == nil {
		return
	}
	for r.Flush() {
	}
	r.CancelPendingDelayed()
	r.async.Close()
	r.async = nil
	if r.logger != nil {
		r.logger.Debug("per-loop runner shut down")
	}
}
