// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import "log/slog"

// TracingController is the trace-emission handle the Platform exposes to
// the engine. The handle is part of the engine-facing contract and must
// always exist; whether anything listens is up to the embedder.
type TracingController interface {
	// Enabled reports whether events for category are currently recorded.
	Enabled(category string) bool
	// AddTraceEvent records one event. args come in key/value pairs.
	AddTraceEvent(category, name string, args ...any)
}

// noopTracingController is the default controller: it records nothing.
type noopTracingController struct{}

func (noopTracingController) Enabled(string) bool               { return false }
func (noopTracingController) AddTraceEvent(string, string, ...any) {}

// NewTracingController returns the default no-op TracingController.
func NewTracingController() TracingController {
	return noopTracingController{}
}

// slogTracingController forwards trace events to a *slog.Logger at Debug
// level. Useful for embedders that want visibility without a real tracing
// backend.
type slogTracingController struct {
	logger *slog.Logger
}

// NewSlogTracingController returns a TracingController that logs every
// event through logger.
func NewSlogTracingController(logger *slog.Logger) TracingController {
	return &slogTracingController{logger: logger}
}

func (c *slogTracingController) Enabled(string) bool { return true }

func (c *slogTracingController) AddTraceEvent(category, name string, args ...any) {
	kv := append([]any{"category", category}, args...)
	c.logger.Debug(name, kv...)
}
