// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"log/slog"
	"sync"
)

// delayMillis converts a delay in seconds to milliseconds: seconds + 0.5
// truncated to an integer, then multiplied by 1000. Round-half-up, and
// sub-second precision is lost before the multiply (0.001s becomes 0ms).
func delayMillis(seconds float64) int64 {
	return int64(seconds+0.5) * 1000
}

// DelayedDispatcher runs one dedicated goroutine driving a private
// nativeLoop. It accepts delayed worker-task submissions from any
// goroutine, arms a one-shot timer for each on its own loop, and posts
// expired tasks to a Threadpool.
type DelayedDispatcher struct {
	pool *Threadpool
	loop RunnableLoop
	wake AsyncHandle

	mu       sync.Mutex
	commands []dispatcherCommand

	timers map[Timer]*Task

	ready   chan struct{}
	stopped chan struct{}
}

type dispatcherCommand struct {
	kind  dispatcherCommandKind
	task  *Task
	delay float64
}

type dispatcherCommandKind int

const (
	cmdSchedule dispatcherCommandKind = iota
	cmdStop
)

// NewDelayedDispatcher constructs and starts a DelayedDispatcher backed by
// pool. It blocks until the dispatcher's private loop has finished
// initializing.
func NewDelayedDispatcher(pool *Threadpool, logger *slog.Logger) *DelayedDispatcher {
	d := &DelayedDispatcher{
		pool:    pool,
		loop:    NewNativeLoop(),
		timers:  make(map[Timer]*Task),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
	d.wake = d.loop.CreateAsync(d.flushCommands)

	go d.run(logger)
	<-d.ready
	return d
}

func (d *DelayedDispatcher) run(logger *slog.Logger) {
	close(d.ready)
	d.loop.Run()
	close(d.stopped)
	if logger != nil {
		logger.Debug("delayed dispatcher stopped")
	}
}

// PostDelayed pushes a schedule command for task and wakes the dispatcher
// thread. Safe to call from any goroutine.
func (d *DelayedDispatcher) PostDelayed(task *Task, delaySeconds float64) {
	d.mu.Lock()
	d.commands = append(d.commands, dispatcherCommand{kind: cmdSchedule, task: task, delay: delaySeconds})
	d.mu.Unlock()
	d.wake.Send()
}

// Stop pushes a stop command and waits for the dispatcher thread to drain
// in-flight timers and exit. In-flight delayed worker tasks are silently
// dropped: their timers are closed and they are never run.
func (d *DelayedDispatcher) Stop() {
	d.mu.Lock()
	d.commands = append(d.commands, dispatcherCommand{kind: cmdStop})
	d.mu.Unlock()
	d.wake.Send()
	<-d.stopped
}

// flushCommands runs on the dispatcher's own loop goroutine: it drains the
// command FIFO, scheduling a timer for each "schedule" command and
// tearing the loop down on "stop".
func (d *DelayedDispatcher) flushCommands() {
	d.mu.Lock()
	commands := d.commands
	d.commands = nil
	d.mu.Unlock()

	for _, cmd := range commands {
		switch cmd.kind {
		case cmdSchedule:
			d.scheduleTimer(cmd.task, cmd.delay)
		case cmdStop:
			d.drainAndStop()
			return
		}
	}
}

func (d *DelayedDispatcher) scheduleTimer(task *Task, delaySeconds float64) {
	timer := d.loop.CreateTimer()
	d.timers[timer] = task
	timer.Start(delayMillis(delaySeconds), func() {
		d.fireTimer(timer)
	})
}

func (d *DelayedDispatcher) fireTimer(timer Timer) {
	task, ok := d.timers[timer]
	if !ok {
		return
	}
	delete(d.timers, timer)
	timer.Stop()
	timer.Close()

	wrapped := NewTask(task.run, task.Details)
	wrapped.onFinish = task.onFinish
	d.pool.Post(wrapped)
}

// drainAndStop cancels every in-flight timer (dropping its pending task
// without running it) and stops the loop.
func (d *DelayedDispatcher) drainAndStop() {
	for timer := range d.timers {
		timer.Stop()
		timer.Close()
		delete(d.timers, timer)
	}
	d.wake.Close()
	d.loop.Stop()
}
