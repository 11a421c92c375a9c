// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package platform implements a two-tier task scheduler for embedded
// script engines: a threadpool plus delayed dispatcher for worker tasks
// that may run on any thread, and one PerLoopRunner per registered engine
// instance for foreground tasks that must run on that engine's own loop
// thread.
package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EngineHandle identifies one registered engine instance. Any comparable
// value works; the engines/ backends pass their *Engine pointer.
type EngineHandle any

// monotonicBase anchors MonotonicTime. time.Since reads Go's monotonic
// clock, so the result is immune to wall-clock adjustment.
var monotonicBase = time.Now()

// Platform is the top-level scheduler object. It owns the worker tier
// (Threadpool + DelayedDispatcher behind a WorkerTaskRunner) and a mapping
// from registered engine instances to their PerLoopRunners.
type Platform struct {
	workerRunner *WorkerTaskRunner
	pool         *Threadpool
	tracing      TracingController

	mu      sync.Mutex
	runners map[EngineHandle]*PerLoopRunner

	poolSize int
	logger   *slog.Logger
}

// NewPlatform creates and starts a Platform. With no options the worker
// tier's size follows the UV_THREADPOOL_SIZE / CPU-count / default chain.
func NewPlatform(opts ...func(*Platform)) *Platform {
	p := &Platform{
		tracing: NewTracingController(),
		runners: make(map[EngineHandle]*PerLoopRunner),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.pool = NewThreadpool(p.poolSize, p.logger)
	dispatcher := NewDelayedDispatcher(p.pool, p.logger)
	p.workerRunner = NewWorkerTaskRunner(p.pool, dispatcher)

	p.logger.Debug("platform started", "workers", p.pool.WorkerCount())
	return p
}

// WithThreadpoolSize fixes the worker-tier size, bypassing the env-var and
// CPU-count resolution. Ignored if size <= 0.
func WithThreadpoolSize(size int) func(*Platform) {
	return func(p *Platform) {
		if size > 0 {
			p.poolSize = size
		}
	}
}

// WithLogger configures the logger for the platform and everything it owns.
func WithLogger(logger *slog.Logger) func(*Platform) {
	return func(p *Platform) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracingController configures the tracing sink handed back to the
// engine via TracingController.
func WithTracingController(tc TracingController) func(*Platform) {
	return func(p *Platform) {
		if tc != nil {
			p.tracing = tc
		}
	}
}

// RegisterEngine associates engine with loop. Registering the same engine
// again bumps the existing runner's reference count; the loop must match
// the one it was first registered with.
func (p *Platform) RegisterEngine(engine EngineHandle, loop Loop) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.runners[engine]; ok {
		if r.loop != loop {
			panic(fmt.Sprintf("platform: engine %v re-registered with a different loop", engine))
		}
		r.refs++
		return
	}

	r := newPerLoopRunner(loop, p.logger)
	r.refs = 1
	p.runners[engine] = r
	p.logger.Debug("engine registered", "engines", len(p.runners))
}

// UnregisterEngine releases one registration of engine. When the last
// registration is released the runner is shut down (on the calling
// goroutine, which must be the engine's loop thread) and removed.
// Unregistering an engine that is not registered is a contract violation.
func (p *Platform) UnregisterEngine(engine EngineHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.runners[engine]
	if !ok {
		panic(fmt.Sprintf("platform: engine %v is not registered", engine))
	}
	r.refs--
	if r.refs == 0 {
		r.shutdown()
		delete(p.runners, engine)
		p.logger.Debug("engine unregistered", "engines", len(p.runners))
	}
}

// lookupRunner returns engine's runner or panics; a lookup of an engine
// that was never registered (or already fully unregistered) is a contract
// violation.
func (p *Platform) lookupRunner(engine EngineHandle) *PerLoopRunner {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.runners[engine]
	if !ok {
		panic(fmt.Sprintf("platform: engine %v is not registered", engine))
	}
	return r
}

// ForegroundRunner returns the runner that executes engine's foreground
// tasks on its loop thread.
func (p *Platform) ForegroundRunner(engine EngineHandle) *PerLoopRunner {
	return p.lookupRunner(engine)
}

// NumberOfWorkerThreads returns the worker-tier size.
func (p *Platform) NumberOfWorkerThreads() int {
	return p.workerRunner.WorkerCount()
}

// IdleTasksEnabled reports whether engine may post idle tasks. Idle tasks
// are unsupported; this is always false.
func (p *Platform) IdleTasksEnabled(engine EngineHandle) bool {
	return false
}

// CallOnWorker posts task to the worker tier and returns its cancel
// handle.
func (p *Platform) CallOnWorker(task *Task) *TaskState {
	return p.workerRunner.Post(task)
}

// CallDelayedOnWorker posts task to run on the worker tier no sooner than
// delaySeconds from now.
func (p *Platform) CallDelayedOnWorker(task *Task, delaySeconds float64) {
	p.workerRunner.PostDelayed(task, delaySeconds)
}

// CallOnForeground posts task to engine's loop thread.
func (p *Platform) CallOnForeground(engine EngineHandle, task *Task) {
	p.lookupRunner(engine).Post(task)
}

// CallDelayedOnForeground posts task to engine's loop thread no sooner
// than delaySeconds from now.
func (p *Platform) CallDelayedOnForeground(engine EngineHandle, task *Task, delaySeconds float64) {
	p.lookupRunner(engine).PostDelayed(task, delaySeconds)
}

// FlushForeground runs engine's pending foreground work on the calling
// goroutine, which must be the engine's loop thread. Returns true iff any
// work was done.
func (p *Platform) FlushForeground(engine EngineHandle) bool {
	return p.lookupRunner(engine).Flush()
}

// CancelPendingDelayed drops engine's scheduled-delayed foreground tasks.
// Must be called on the engine's loop thread.
func (p *Platform) CancelPendingDelayed(engine EngineHandle) {
	p.lookupRunner(engine).CancelPendingDelayed()
}

// DrainTasks blocks until the worker tier is drained and engine's
// foreground runner has no more work, alternating between the two until a
// flush does nothing. Must be called on the engine's loop thread.
func (p *Platform) DrainTasks(engine EngineHandle) {
	r := p.lookupRunner(engine)
	for {
		p.workerRunner.BlockingDrain()
		if !r.Flush() {
			return
		}
	}
}

// MonotonicTime returns seconds on a high-resolution monotonic clock.
func (p *Platform) MonotonicTime() float64 {
	return time.Since(monotonicBase).Seconds()
}

// CurrentClockMillis returns the wall-clock time in milliseconds.
func (p *Platform) CurrentClockMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}

// TracingController returns the platform's tracing sink. Its lifetime
// equals the Platform's.
func (p *Platform) TracingController() TracingController {
	return p.tracing
}

// Shutdown stops the delayed dispatcher, tears down the threadpool
// (joining every worker), and clears the engine map. Engines should be
// unregistered before Shutdown; any still-registered runners are dropped
// without being flushed.
func (p *Platform) Shutdown() {
	p.workerRunner.Shutdown()
	p.pool.Stop()

	p.mu.Lock()
	p.runners = make(map[EngineHandle]*PerLoopRunner)
	p.mu.Unlock()

	p.logger.Debug("platform shut down")
}
