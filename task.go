// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

// Category classifies a Task for the benefit of external schedulers that
// want to reason about what kind of work a task represents. It has no
// effect on how this package schedules the task.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryFilesystem
	CategoryDNS
	CategoryUserIO
	CategoryUserCPU
	CategoryEngine
)

// TaskDetails is an immutable record describing a Task's category,
// priority, and whether the submitter considers it cancelable.
type TaskDetails struct {
	Category   Category
	Priority   int
	Cancelable bool
}

// defaultTaskDetails is used when a submission carries no options:
// unknown category, priority -1, not cancelable.
func defaultTaskDetails() TaskDetails {
	return TaskDetails{Category: CategoryUnknown, Priority: -1, Cancelable: false}
}

// Task is a unit of deferred work. It owns an action to run and shares a
// TaskState with anyone holding a cancel handle.
type Task struct {
	Details TaskDetails

	run      func()
	onFinish func()
	state    *TaskState
}

// NewTask wraps run into a Task with the given details. run must not be
// nil. The returned Task has no TaskState attached yet; a TaskState is
// attached when the Task is posted to a Threadpool.
func NewTask(run func(), details TaskDetails) *Task {
	if run == nil {
		panic("platform: NewTask called with a nil run function")
	}
	return &Task{Details: details, run: run}
}

// OnFinish registers fn to run once the task's lifecycle ends on a
// Threadpool worker: after run() returns, or when the task is skipped due
// to cancellation. It runs exactly once on either path. It is not run for
// a task that no worker pops (dropped at Threadpool.Stop or
// DelayedDispatcher.Stop), nor for a task run by a PerLoopRunner.
func (t *Task) OnFinish(fn func()) {
	t.onFinish = fn
}

// finish invokes the registered finish callback, if any. Called by the
// Worker after a task's lifecycle has fully completed.
func (t *Task) finish() {
	if t.onFinish != nil {
		t.onFinish()
	}
}

// Run executes the task's action. It does not itself manage TaskState
// transitions; callers (the Worker, or a loop's foreground flush) are
// responsible for that.
func (t *Task) Run() {
	t.run()
}

// attachState assigns a fresh TaskState to the task and returns it. Called
// once, at submission time, by Threadpool.Post. Tasks posted to a
// PerLoopRunner never get a TaskState.
func (t *Task) attachState() *TaskState {
	t.state = NewTaskState()
	return t.state
}

// TryTransition forwards to the attached TaskState. A Task with no state
// attached yet (never submitted) always reports StateInitial.
func (t *Task) TryTransition(newState State) State {
	if t.state == nil {
		return StateInitial
	}
	return t.state.TryTransition(newState)
}

// State returns the task's current TaskState, or nil if it was never
// submitted to a Threadpool.
func (t *Task) State() *TaskState {
	return t.state
}
