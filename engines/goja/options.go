// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// Option configures an Engine during New.
type Option func(*Engine) error

// EngineOption holds configuration for a goja engine instance.
type EngineOption struct {
	MaxCallStackSize int
	EnableConsole    bool
	EnableRequire    bool
	FieldNameMapper  goja.FieldNameMapper
}

// WithMaxCallStackSize sets the maximum call stack size for the runtime.
// A value of 0 or less means no limit.
func WithMaxCallStackSize(size int) Option {
	return func(e *Engine) error {
		e.Option.MaxCallStackSize = size
		e.Do(func(vm *goja.Runtime) {
			vm.SetMaxCallStackSize(size)
		})
		return nil
	}
}

// WithEnableConsole enables the console object (console.log, etc.) in the
// runtime.
func WithEnableConsole() Option {
	return func(e *Engine) error {
		e.Option.EnableConsole = true
		e.Do(func(vm *goja.Runtime) {
			console.Enable(vm)
		})
		return nil
	}
}

// WithRequire enables the require() function for loading CommonJS modules.
func WithRequire() Option {
	return func(e *Engine) error {
		e.Option.EnableRequire = true
		e.Do(func(vm *goja.Runtime) {
			new(require.Registry).Enable(vm)
		})
		return nil
	}
}

// WithFieldNameMapper sets the field name mapper for Go-to-JS struct
// conversions.
func WithFieldNameMapper(mapper goja.FieldNameMapper) Option {
	return func(e *Engine) error {
		if mapper != nil {
			e.Option.FieldNameMapper = mapper
			e.Do(func(vm *goja.Runtime) {
				vm.SetFieldNameMapper(mapper)
			})
		}
		return nil
	}
}
