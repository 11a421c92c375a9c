// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package quickjsengine adapts the QuickJS engine (via quickjs-go) to the
// platform scheduler. A QuickJS runtime must be driven from a single
// thread, so the engine pins one goroutine to an OS thread, runs a
// platform native loop on it, and creates the runtime and context there.
// That loop is the engine's platform.Loop.
package quickjsengine

import (
	"fmt"
	"runtime"

	platform "github.com/buke/engine-platform"
	"github.com/buke/quickjs-go"
)

// Engine is one QuickJS runtime plus context, owned by a dedicated
// OS-thread-locked goroutine running a platform native loop.
type Engine struct {
	// Runtime is the QuickJS runtime instance. Loop thread only; use Do.
	Runtime *quickjs.Runtime

	// Ctx is the QuickJS context instance. Loop thread only; use Do.
	Ctx *quickjs.Context

	// Option holds the engine configuration options.
	Option *EngineOption

	loop platform.RunnableLoop
}

// New creates a QuickJS engine. The runtime and context are constructed
// on the engine's own loop thread, and all options applied there, before
// New returns.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Option: &EngineOption{
			MemoryLimit:        0,  // no limit
			GCThreshold:        -1, // no threshold
			Timeout:            0,  // no timeout
			MaxStackSize:       0,  // default stack size
			CanBlock:           false,
			EnableModuleImport: false,
			Strip:              1,
		},
		loop: platform.NewNativeLoop(),
	}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.loop.Run()
	}()

	e.Do(func() {
		e.Runtime = quickjs.NewRuntime()
		e.Ctx = e.Runtime.NewContext()
	})

	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return e, nil
}

// PlatformLoop returns the platform.Loop view of this engine's loop
// thread. The same value is returned on every call.
func (e *Engine) PlatformLoop() platform.Loop {
	return e.loop
}

// Register registers this engine and its loop with p.
func (e *Engine) Register(p *platform.Platform) {
	p.RegisterEngine(e, e.loop)
}

// Unregister releases one registration of this engine from p. Releasing
// the last registration shuts the runner down on the calling goroutine,
// so call it from the loop thread (via Do) in that case.
func (e *Engine) Unregister(p *platform.Platform) {
	p.UnregisterEngine(e)
}

// Do runs fn on the engine's loop thread and waits for it to return.
func (e *Engine) Do(fn func()) {
	done := make(chan struct{})
	async := e.loop.CreateAsync(func() {
		defer close(done)
		fn()
	})
	async.Send()
	<-done
	async.Close()
}

// RunScript evaluates src in the engine's context on the loop thread and
// waits for the result.
func (e *Engine) RunScript(fileName, src string) error {
	var err error
	e.Do(func() {
		ret := e.Ctx.Eval(src, quickjs.EvalFileName(fileName), quickjs.EvalAwait(true))
		defer ret.Free()
		if ret.IsException() {
			err = fmt.Errorf("failed to run script %s: %w", fileName, e.Ctx.Exception())
		}
	})
	return err
}

// Close releases the context and runtime on the loop thread, then stops
// the loop.
func (e *Engine) Close() error {
	e.Do(func() {
		if e.Ctx != nil {
			e.Ctx.Close()
			e.Ctx = nil
		}
		if e.Runtime != nil {
			e.Runtime.Close()
			e.Runtime = nil
		}
	})
	e.loop.Stop()
	return nil
}
