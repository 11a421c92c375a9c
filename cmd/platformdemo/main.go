// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Command platformdemo wires a Platform to a goja engine and pushes work
// through both scheduler tiers: worker tasks on the pool, foreground tasks
// on the engine's event loop.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	platform "github.com/buke/engine-platform"
	gojaengine "github.com/buke/engine-platform/engines/goja"
	"github.com/dop251/goja"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := platform.NewPlatform(
		platform.WithThreadpoolSize(4),
		platform.WithLogger(logger),
		platform.WithTracingController(platform.NewSlogTracingController(logger)),
	)

	engine, err := gojaengine.New(gojaengine.WithEnableConsole())
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	engine.Register(p)

	if err := engine.RunScript("sum.js", `var total = 0; function addTo(n) { total += n; return total; }`); err != nil {
		logger.Error("failed to load script", "error", err)
		os.Exit(1)
	}

	tc := p.TracingController()
	tc.AddTraceEvent("demo", "start", "workers", p.NumberOfWorkerThreads())

	// Each worker task computes off-loop, then posts its result onto the
	// engine's loop, where touching the runtime is safe.
	var vm *goja.Runtime
	engine.Do(func(r *goja.Runtime) { vm = r })

	var posted atomic.Int32
	for i := 1; i <= 10; i++ {
		n := int64(i)
		p.CallOnWorker(platform.NewTask(func() {
			square := n * n
			p.CallOnForeground(engine, platform.NewTask(func() {
				if _, err := vm.RunString(fmt.Sprintf("addTo(%d)", square)); err != nil {
					logger.Error("addTo failed", "error", err)
				}
				posted.Add(1)
			}, platform.TaskDetails{Category: platform.CategoryEngine}))
		}, platform.TaskDetails{Category: platform.CategoryUserCPU}))
	}

	// A delayed worker task, scheduled through the dispatcher.
	fired := make(chan struct{})
	p.CallDelayedOnWorker(platform.NewTask(func() { close(fired) }, platform.TaskDetails{}), 0)
	<-fired

	// Drain both tiers from the loop thread, then read the total back.
	var total int64
	engine.Do(func(r *goja.Runtime) {
		p.DrainTasks(engine)
		v, err := r.RunString("total")
		if err != nil {
			logger.Error("failed to read total", "error", err)
			return
		}
		total = v.ToInteger()
	})

	tc.AddTraceEvent("demo", "done", "total", total)
	fmt.Printf("sum of squares 1..10 = %d (foreground tasks run: %d, monotonic %.3fs)\n",
		total, posted.Load(), p.MonotonicTime())

	engine.Do(func(*goja.Runtime) { engine.Unregister(p) })
	engine.Close()
	p.Shutdown()
}
