// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package gojaengine adapts the pure-Go goja JavaScript engine to the
// platform scheduler. The goja_nodejs event loop owns the runtime and
// doubles as the engine's platform.Loop: foreground tasks posted through
// the platform are executed by the loop's own goroutine.
package gojaengine

import (
	"fmt"
	"sync/atomic"
	"time"

	platform "github.com/buke/engine-platform"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// Engine is one goja runtime driven by its own event loop. Register it
// with a platform.Platform to route foreground tasks onto the loop.
type Engine struct {
	// Loop owns and serializes all access to the runtime.
	Loop *eventloop.EventLoop

	// Option holds the engine configuration.
	Option *EngineOption

	platformLoop *loopAdapter
}

// New creates a goja engine and starts its event loop.
func New(opts ...Option) (*Engine, error) {
	loop := eventloop.NewEventLoop()

	e := &Engine{
		Loop:   loop,
		Option: &EngineOption{},
	}
	e.platformLoop = &loopAdapter{loop: loop}

	// Start the event loop *before* applying options; options run on it.
	loop.Start()

	// Default field name mapper; user options may override it.
	if err := WithFieldNameMapper(goja.TagFieldNameMapper("json", true))(e); err != nil {
		loop.Stop()
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			loop.Stop()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return e, nil
}

// PlatformLoop returns the platform.Loop view of this engine's event
// loop. The same value is returned on every call, so it stays stable
// across repeated registrations of the engine.
func (e *Engine) PlatformLoop() platform.Loop {
	return e.platformLoop
}

// Register registers this engine and its loop with p.
func (e *Engine) Register(p *platform.Platform) {
	p.RegisterEngine(e, e.platformLoop)
}

// Unregister releases one registration of this engine from p. Releasing
// the last registration shuts the runner down on the calling goroutine,
// so call it from the loop thread (via Do) in that case.
func (e *Engine) Unregister(p *platform.Platform) {
	p.UnregisterEngine(e)
}

// Do runs fn on the loop thread with the runtime and waits for it to
// return.
func (e *Engine) Do(fn func(vm *goja.Runtime)) {
	done := make(chan struct{})
	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		fn(vm)
	})
	<-done
}

// RunScript evaluates src on the loop thread and waits for the result.
func (e *Engine) RunScript(fileName, src string) error {
	var err error
	e.Do(func(vm *goja.Runtime) {
		if _, runErr := vm.RunScript(fileName, src); runErr != nil {
			err = fmt.Errorf("failed to run script %s: %w", fileName, runErr)
		}
	})
	return err
}

// Close stops the event loop and releases its resources.
func (e *Engine) Close() error {
	if e.Loop != nil {
		e.Loop.Stop()
	}
	return nil
}

// loopAdapter exposes the goja_nodejs event loop as a platform.Loop. Both
// primitives hand their callbacks to the loop, so they always fire on the
// loop's own goroutine.
type loopAdapter struct {
	loop *eventloop.EventLoop
}

func (l *loopAdapter) CreateAsync(cb func()) platform.AsyncHandle {
	return &asyncHandle{loop: l.loop, cb: cb}
}

func (l *loopAdapter) CreateTimer() platform.Timer {
	return &timerHandle{loop: l.loop}
}

// asyncHandle wakes the loop by scheduling the handle's callback as a loop
// job. RunOnLoop is safe from any goroutine, which gives Send the "any
// thread" contract for free.
type asyncHandle struct {
	loop   *eventloop.EventLoop
	cb     func()
	closed atomic.Bool
}

func (a *asyncHandle) Send() {
	if a.closed.Load() {
		return
	}
	a.loop.RunOnLoop(func(*goja.Runtime) {
		if !a.closed.Load() {
			a.cb()
		}
	})
}

func (a *asyncHandle) Unref() {}

func (a *asyncHandle) Close() { a.closed.Store(true) }

// timerHandle backs a platform.Timer with the loop's SetTimeout, so the
// callback fires on the loop goroutine.
type timerHandle struct {
	loop  *eventloop.EventLoop
	timer *eventloop.Timer
}

func (t *timerHandle) Start(timeoutMs int64, cb func()) {
	t.Stop()
	t.timer = t.loop.SetTimeout(func(*goja.Runtime) {
		cb()
	}, time.Duration(timeoutMs)*time.Millisecond)
}

func (t *timerHandle) Stop() {
	if t.timer != nil {
		t.loop.ClearTimeout(t.timer)
		t.timer = nil
	}
}

func (t *timerHandle) Unref() {}

func (t *timerHandle) Close() { t.Stop() }
