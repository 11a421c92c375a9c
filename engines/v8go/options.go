//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import "fmt"

// Option configures an Engine during New.
type Option func(*Engine) error

// EngineOption holds specific configurations for the V8 engine.
type EngineOption struct {
	// InitScripts are evaluated, in order, on the loop thread once the
	// context exists, before New returns.
	InitScripts []InitScript
}

// InitScript is a named script evaluated at engine startup.
type InitScript struct {
	FileName string
	Content  string
}

// WithInitScript appends a script to evaluate when the engine starts.
// The script must not be empty.
func WithInitScript(fileName, content string) Option {
	return func(e *Engine) error {
		if content == "" {
			return fmt.Errorf("init script cannot be empty")
		}
		e.Option.InitScripts = append(e.Option.InitScripts, InitScript{FileName: fileName, Content: content})
		return nil
	}
}
