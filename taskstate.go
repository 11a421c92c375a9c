// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

import "sync"

// State is a Task's lifecycle state, shared between the Task and any
// external cancel handle.
type State int

const (
	StateInitial State = iota
	StateQueued
	StateAssigned
	StateCancelled
	StateCompleted
)

// String implements fmt.Stringer for readable log lines.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateQueued:
		return "queued"
	case StateAssigned:
		return "assigned"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// validTransition is the legal-transitions table:
//
//	INITIAL   -> {QUEUED, CANCELLED}
//	QUEUED    -> {ASSIGNED, CANCELLED}
//	ASSIGNED  -> {COMPLETED, CANCELLED}
//	CANCELLED -> {COMPLETED}
//	COMPLETED -> {}
func validTransition(old, new State) bool {
	switch old {
	case StateInitial:
		return new == StateQueued || new == StateCancelled
	case StateQueued:
		return new == StateAssigned || new == StateCancelled
	case StateAssigned:
		return new == StateCompleted || new == StateCancelled
	case StateCancelled:
		return new == StateCompleted
	case StateCompleted:
		return false
	default:
		return false
	}
}

// TaskState is a small, mutex-guarded lifecycle state machine shared
// between a Task, the queue that holds it, the worker that runs it, and
// any external holder of a cancel handle.
type TaskState struct {
	mu    sync.Mutex
	state State
}

// NewTaskState returns a TaskState in StateInitial.
func NewTaskState() *TaskState {
	return &TaskState{state: StateInitial}
}

// Current returns the current state.
func (ts *TaskState) Current() State {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.state
}

// TryTransition attempts to move to newState. If the transition is not in
// the legal-transitions table the call is a no-op. Either way the
// post-operation state is returned.
func (ts *TaskState) TryTransition(newState State) State {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if validTransition(ts.state, newState) {
		ts.state = newState
	}
	return ts.state
}

// Cancel attempts to move to StateCancelled and reports whether it
// succeeded.
func (ts *TaskState) Cancel() bool {
	return ts.TryTransition(StateCancelled) == StateCancelled
}
