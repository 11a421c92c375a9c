// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

// AsyncHandle is a wakeup handle registered on a Loop. Send is safe to
// call from any goroutine; it causes the handle's callback to run on the
// loop's owning goroutine. This mirrors a libuv uv_async_t.
type AsyncHandle interface {
	// Send wakes the loop and schedules the handle's callback to run on
	// the loop's thread. Safe to call from any goroutine, any number of
	// times; sends may be coalesced.
	Send()
	// Unref marks the handle as not keeping the loop alive by itself.
	Unref()
	// Close releases the handle. After Close, Send is a no-op.
	Close()
}

// Timer is a one-shot timer registered on a Loop. Its callback always runs
// on the loop's owning goroutine. This mirrors a libuv uv_timer_t.
type Timer interface {
	// Start arms the timer to fire cb after timeoutMs milliseconds.
	Start(timeoutMs int64, cb func())
	// Stop disarms the timer if it hasn't fired yet.
	Stop()
	// Unref marks the timer as not keeping the loop alive by itself.
	Unref()
	// Close releases the timer.
	Close()
}

// Loop is the minimal timer + async-wakeup contract this package consumes
// from an external loop runtime. An engine backend (engines/goja, engines/v8go,
// engines/quickjs-go) supplies one Loop per registered engine instance; the
// core's own nativeLoop additionally satisfies RunnableLoop and backs
// DelayedDispatcher's private dedicated-thread loop.
type Loop interface {
	// CreateAsync registers a new async handle whose callback is cb.
	CreateAsync(cb func()) AsyncHandle
	// CreateTimer registers a new, initially unarmed timer.
	CreateTimer() Timer
}

// RunnableLoop is a Loop that also owns its own run/stop lifecycle. Within
// this package only DelayedDispatcher's private loop needs this (the
// engines/v8go and engines/quickjs-go backends also run one); a
// PerLoopRunner's loop is owned and driven by the embedding engine, not by
// this package.
type RunnableLoop interface {
	Loop
	// Run blocks, dispatching async and timer callbacks, until Stop is
	// called from within a callback or from another goroutine.
	Run()
	// Stop causes a blocked Run to return once its current callback (if
	// any) finishes.
	Stop()
}
