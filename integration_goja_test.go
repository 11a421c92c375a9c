// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform_test

import (
	"sync/atomic"
	"testing"
	"time"

	platform "github.com/buke/engine-platform"
	gojaengine "github.com/buke/engine-platform/engines/goja"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

// TestIntegration_PlatformWithGoja drives the full scheduler stack with a
// real goja engine: foreground tasks land on the goja loop, worker tasks
// land on the pool, and drain sees both through.
func TestIntegration_PlatformWithGoja(t *testing.T) {
	p := platform.NewPlatform(platform.WithThreadpoolSize(2))
	defer p.Shutdown()

	engine, err := gojaengine.New()
	require.NoError(t, err)
	require.NotNil(t, engine)
	defer engine.Close()

	engine.Register(p)

	require.NoError(t, engine.RunScript("counter.js", `var count = 0; function bump() { return ++count; }`))

	// Foreground tasks execute on the loop thread, so they may touch the
	// runtime directly.
	var vm *goja.Runtime
	engine.Do(func(r *goja.Runtime) { vm = r })

	const n = 10
	fired := make(chan error, n)
	for i := 0; i < n; i++ {
		p.CallOnForeground(engine, platform.NewTask(func() {
			_, runErr := vm.RunString(`bump()`)
			fired <- runErr
		}, platform.TaskDetails{}))
	}
	for i := 0; i < n; i++ {
		select {
		case runErr := <-fired:
			require.NoError(t, runErr)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d foreground tasks ran", i, n)
		}
	}

	var count int64
	var readErr error
	engine.Do(func(r *goja.Runtime) {
		var v goja.Value
		if v, readErr = r.RunString(`count`); readErr == nil {
			count = v.ToInteger()
		}
	})
	require.NoError(t, readErr)
	require.Equal(t, int64(n), count)

	engine.Do(func(*goja.Runtime) { engine.Unregister(p) })
}

func TestIntegration_PlatformWithGoja_WorkerPostsForeground(t *testing.T) {
	p := platform.NewPlatform(platform.WithThreadpoolSize(2))
	defer p.Shutdown()

	engine, err := gojaengine.New()
	require.NoError(t, err)
	defer engine.Close()
	engine.Register(p)

	var foregroundRan atomic.Bool
	state := p.CallOnWorker(platform.NewTask(func() {
		p.CallOnForeground(engine, platform.NewTask(func() {
			foregroundRan.Store(true)
		}, platform.TaskDetails{}))
	}, platform.TaskDetails{}))

	engine.Do(func(*goja.Runtime) { p.DrainTasks(engine) })

	require.True(t, foregroundRan.Load())
	require.Equal(t, platform.StateCompleted, state.Current())

	engine.Do(func(*goja.Runtime) { engine.Unregister(p) })
}

func TestIntegration_PlatformWithGoja_DelayedForeground(t *testing.T) {
	p := platform.NewPlatform(platform.WithThreadpoolSize(1))
	defer p.Shutdown()

	engine, err := gojaengine.New()
	require.NoError(t, err)
	defer engine.Close()
	engine.Register(p)

	fired := make(chan struct{})
	p.CallDelayedOnForeground(engine, platform.NewTask(func() { close(fired) }, platform.TaskDetails{}), 0)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed foreground task never ran on the goja loop")
	}

	engine.Do(func(*goja.Runtime) { engine.Unregister(p) })
}
