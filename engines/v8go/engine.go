//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package v8engine adapts the V8 engine (via v8go) to the platform
// scheduler. V8 isolates are single-threaded, so the engine pins one
// goroutine to an OS thread, runs a platform native loop on it, and
// creates the isolate and context there. That loop is the engine's
// platform.Loop: foreground tasks posted through the platform execute on
// the isolate's thread.
package v8engine

import (
	"fmt"
	"runtime"

	platform "github.com/buke/engine-platform"
	"github.com/tommie/v8go"
)

// Make these functions variables so they can be mocked in tests.
var (
	v8NewIsolate = v8go.NewIsolate
	v8NewContext = func(iso *v8go.Isolate) *v8go.Context { return v8go.NewContext(iso) }
)

// Engine is one V8 isolate plus context, owned by a dedicated
// OS-thread-locked goroutine running a platform native loop.
type Engine struct {
	// Iso is the V8 Isolate, representing a single-threaded VM instance.
	// It must only be touched from the loop thread; use Do.
	Iso *v8go.Isolate

	// Ctx is the V8 Context, representing the execution environment.
	// It must only be touched from the loop thread; use Do.
	Ctx *v8go.Context

	// Option holds the engine-specific configurations.
	Option *EngineOption

	loop platform.RunnableLoop
}

// New creates a V8 engine. The isolate and context are constructed on the
// engine's own loop thread before New returns.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Option: &EngineOption{},
		loop:   platform.NewNativeLoop(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	go func() {
		// V8 requires every touch of an isolate to happen on the thread
		// that entered it, so the loop goroutine is pinned for its
		// whole lifetime.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.loop.Run()
	}()

	var err error
	e.Do(func() {
		iso := v8NewIsolate()
		if iso == nil {
			err = fmt.Errorf("failed to create v8 isolate")
			return
		}
		ctx := v8NewContext(iso)
		if ctx == nil {
			iso.Dispose()
			err = fmt.Errorf("failed to create v8 context")
			return
		}
		e.Iso = iso
		e.Ctx = ctx
	})
	if err != nil {
		e.loop.Stop()
		return nil, err
	}

	for _, script := range e.Option.InitScripts {
		if err := e.RunScript(script.FileName, script.Content); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to execute init script %s: %w", script.FileName, err)
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
		if _, runErr := e.Ctx.RunScript(src, fileName); runErr != nil {
			err = fmt.Errorf("failed to run script %s: %w", fileName, runErr)
		}
	})
	return err
}

// Close disposes the context and isolate on the loop thread, then stops
// the loop.
func (e *Engine) Close() error {
	e.Do(func() {
		if e.Ctx != nil {
			e.Ctx.Close()
			e.Ctx = nil
		}
		if e.Iso != nil {
			e.Iso.Dispose()
			e.Iso = nil
		}
	})
	e.loop.Stop()
	return nil
}
