// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package platform

// WorkType enumerates the work categories a loop-runtime caller can tag a
// submission with.
type WorkType int

const (
	WorkTypeUnspecified WorkType = iota
	WorkTypeFS
	WorkTypeDNS
	WorkTypeUserIO
	WorkTypeUserCPU
)

// SubmitOptions mirrors the loop-runtime's work-submission options record.
type SubmitOptions struct {
	Type       WorkType
	Priority   int
	Cancelable bool
}

func (o *SubmitOptions) toDetails() TaskDetails {
	if o == nil {
		return defaultTaskDetails()
	}
	var category Category
	switch o.Type {
	case WorkTypeFS:
		category = CategoryFilesystem
	case WorkTypeDNS:
		category = CategoryDNS
	case WorkTypeUserIO:
		category = CategoryUserIO
	case WorkTypeUserCPU:
		category = CategoryUserCPU
	default:
		category = CategoryUnknown
	}
	return TaskDetails{Category: category, Priority: o.Priority, Cancelable: o.Cancelable}
}

// CancelResult is the int-code vocabulary exposed to the loop runtime.
type CancelResult int

const (
	// CancelOK mirrors a 0 return: cancellation succeeded.
	CancelOK CancelResult = iota
	// CancelInvalid mirrors EINVAL: the request carries no cookie.
	CancelInvalid
	// CancelBusy mirrors EBUSY: the task was already assigned or completed.
	CancelBusy
)

// WorkRequest is the minimal identity a loop runtime needs to track one
// in-flight submission across Submit/Cancel/Done calls. Callers embed this
// (or an equivalent opaque handle) in their own request type.
type WorkRequest struct {
	cookie *TaskState
}

// LoopRuntime is the subset of the external async I/O runtime's callback
// surface that LoopExecutor needs: notification that a submitted request's
// wrapping task has finished (run or been skipped).
type LoopRuntime interface {
	// Done is called after the wrapping Task for req has finished running
	// or been skipped due to cancellation.
	Done(req *WorkRequest)
}

// LoopExecutor adapts a Threadpool to a generic cancellable
// work-submission interface in the style of uv_queue_work/uv_cancel:
// each submission becomes a Threadpool Task with cancellable state.
type LoopExecutor struct {
	pool    *Threadpool
	runtime LoopRuntime
}

// NewLoopExecutor returns a LoopExecutor backed by pool. runtime receives
// the Done callback once a submitted request's task finishes.
func NewLoopExecutor(pool *Threadpool, runtime LoopRuntime) *LoopExecutor {
	return &LoopExecutor{pool: pool, runtime: runtime}
}

// Submit wraps work into a Task whose details are derived from opts,
// posts it to the Threadpool, stores the task's TaskState as req's
// cookie, and returns immediately. Submit must not fail.
func (le *LoopExecutor) Submit(req *WorkRequest, work func(), opts *SubmitOptions) {
	details := opts.toDetails()
	task := NewTask(work, details)
	task.OnFinish(func() { le.runtime.Done(req) })
	state := le.pool.Post(task)
	req.cookie = state
}

// Cancel attempts to cancel req's outstanding task. It returns
// CancelInvalid if req has no cookie (never submitted), CancelBusy if the
// task was already assigned or completed, and CancelOK on success. The
// cookie is not detached when the task finishes, so a finished request
// reports CancelBusy.
func (le *LoopExecutor) Cancel(req *WorkRequest) CancelResult {
	if req == nil || req.cookie == nil {
		return CancelInvalid
	}
	ts := req.cookie
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.state == StateAssigned {
		return CancelBusy
	}
	if validTransition(ts.state, StateCancelled) {
		ts.state = StateCancelled
	}
	if ts.state == StateCancelled {
		return CancelOK
	}
	return CancelBusy
}
