package task

import (
	"sync/atomic"

	"github.com/viant/taskor/internal/idgen"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
)

// ComputePlace is the slice of a scheduler compute place the task model is
// allowed to see. The concrete type lives in the CPU registry.
type ComputePlace interface {
	VirtualID() int
	DeviceType() place.DeviceType
}

// Workflow is implemented by the execution workflow bound to a task.
type Workflow interface {
	Start()
}

// Step is implemented by workflow steps; the task records its execution step
// so a re-entry can restart it.
type Step interface {
	Start()
}

// ClusterContext carries the identity a remote (offloaded) task has on its
// offloader node.
type ClusterContext struct {
	OffloaderNode int
	RemoteID      string
}

// Body is the user payload executed by a worker on the bound CPU.
type Body func(cp ComputePlace)

// Task is the unit of work the scheduler admits and the workflow engine
// runs. The scheduler treats it as opaque; all state transitions belong to
// the workflow engine and the dependency subsystem.
type Task struct {
	id         string
	label      string
	priority   int
	deviceType place.DeviceType
	body       Body

	accesses []*access.DataAccess

	remote         bool
	clusterContext *ClusterContext

	// wait corresponds to the wait clause: dependency release is delayed
	// until all children have finished.
	wait bool

	finished       atomic.Bool
	blocked        atomic.Bool
	delayedRelease atomic.Bool

	// removalCount reaches zero when the task may be disposed.
	removalCount atomic.Int32
	// liveChildren tracks children that have not finished yet.
	liveChildren atomic.Int32

	workflow      Workflow
	executionStep Step

	computePlace ComputePlace
	memoryPlace  *place.MemoryPlace

	successor *Task

	onDispose func(*Task)
}

// Option mutates a task at construction time.
type Option func(*Task)

// WithLabel sets a human readable label.
func WithLabel(label string) Option {
	return func(t *Task) { t.label = label }
}

// WithPriority sets the scheduling priority; higher runs earlier when the
// priority queue is enabled.
func WithPriority(priority int) Option {
	return func(t *Task) { t.priority = priority }
}

// WithDeviceType targets the task at a device class; the default is the
// host.
func WithDeviceType(deviceType place.DeviceType) Option {
	return func(t *Task) { t.deviceType = deviceType }
}

// WithAccesses declares the task data accesses.
func WithAccesses(accesses ...*access.DataAccess) Option {
	return func(t *Task) { t.accesses = accesses }
}

// WithWait enables the wait clause: the task delays dependency release until
// its children complete.
func WithWait() Option {
	return func(t *Task) { t.wait = true }
}

// WithClusterContext marks the task as remote and records its offloader
// identity.
func WithClusterContext(ctx *ClusterContext) Option {
	return func(t *Task) {
		t.remote = true
		t.clusterContext = ctx
	}
}

// WithDisposeFunc registers a hook invoked exactly once when the task is
// disposed.
func WithDisposeFunc(fn func(*Task)) Option {
	return func(t *Task) { t.onDispose = fn }
}

// New creates a task around the supplied body.
func New(body Body, options ...Option) *Task {
	t := &Task{
		id:   idgen.New(),
		body: body,
	}
	t.removalCount.Store(1)
	for _, option := range options {
		option(t)
	}
	return t
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// Label returns the task label, falling back to the id.
func (t *Task) Label() string {
	if t.label != "" {
		return t.label
	}
	return t.id
}

// Priority returns the scheduling priority.
func (t *Task) Priority() int { return t.priority }

// TargetDeviceType returns the device class the task runs on.
func (t *Task) TargetDeviceType() place.DeviceType { return t.deviceType }

// Body returns the user payload.
func (t *Task) Body() Body { return t.body }

// Accesses returns the declared data accesses.
func (t *Task) Accesses() []*access.DataAccess { return t.accesses }

// IsRemoteTask reports whether the task was offloaded from another node.
func (t *Task) IsRemoteTask() bool { return t.remote }

// GetClusterContext returns the remote identity, nil for local tasks.
func (t *Task) GetClusterContext() *ClusterContext { return t.clusterContext }

// SetWorkflow binds the execution workflow; it is set exactly once per
// workflow lifetime and cleared when the workflow finishes (by the
// notification continuation, or by the delayed-release re-entry).
func (t *Task) SetWorkflow(workflow Workflow) { t.workflow = workflow }

// GetWorkflow returns the bound workflow, nil when none is active.
func (t *Task) GetWorkflow() Workflow { return t.workflow }

// SetExecutionStep records the workflow execution step.
func (t *Task) SetExecutionStep(step Step) { t.executionStep = step }

// GetExecutionStep returns the recorded execution step; nil after the task
// has executed.
func (t *Task) GetExecutionStep() Step { return t.executionStep }

// SetComputePlace records where the task runs.
func (t *Task) SetComputePlace(cp ComputePlace) { t.computePlace = cp }

// GetComputePlace returns where the task runs.
func (t *Task) GetComputePlace() ComputePlace { return t.computePlace }

// SetMemoryPlace records the memory place used to update access locations
// after completion.
func (t *Task) SetMemoryPlace(mp *place.MemoryPlace) { t.memoryPlace = mp }

// GetMemoryPlace returns the recorded memory place.
func (t *Task) GetMemoryPlace() *place.MemoryPlace { return t.memoryPlace }

// SetSuccessor records the immediate-successor hint.
func (t *Task) SetSuccessor(successor *Task) { t.successor = successor }

// Successor returns the immediate-successor hint, if any.
func (t *Task) Successor() *Task { return t.successor }

// AddChild registers a live child and holds disposal until it is released.
func (t *Task) AddChild() {
	t.liveChildren.Add(1)
	t.removalCount.Add(1)
}

// FinishChild marks one child as finished and returns the number of children
// still alive.
func (t *Task) FinishChild() int32 {
	return t.liveChildren.Add(-1)
}

// HasLiveChildren reports whether any child has not finished yet.
func (t *Task) HasLiveChildren() bool { return t.liveChildren.Load() > 0 }

// HasFinished reports whether the task body has completed.
func (t *Task) HasFinished() bool { return t.finished.Load() }

// MarkAsFinished flags the task body as completed. It returns true when the
// dependencies may be unregistered right away, and false when the task has a
// wait clause with live children, in which case the release is delayed and
// completed by a later ExecuteTask re-entry.
func (t *Task) MarkAsFinished(cp ComputePlace) bool {
	t.finished.Store(true)
	t.computePlace = cp
	if t.wait && t.HasLiveChildren() {
		t.delayedRelease.Store(true)
		t.MarkAsBlocked()
		return false
	}
	return true
}

// MustDelayRelease reports whether the task is parked in the delayed-release
// (wait for children) state.
func (t *Task) MustDelayRelease() bool { return t.delayedRelease.Load() }

// CompleteDelayedRelease leaves the delayed-release state.
func (t *Task) CompleteDelayedRelease() {
	t.delayedRelease.Store(false)
}

// MarkAsBlocked flags the task as blocked.
func (t *Task) MarkAsBlocked() { t.blocked.Store(true) }

// MarkAsUnblocked clears the blocked flag.
func (t *Task) MarkAsUnblocked() { t.blocked.Store(false) }

// IsBlocked reports whether the task is blocked.
func (t *Task) IsBlocked() bool { return t.blocked.Load() }

// MarkAsReleased drops one disposal reference and reports whether the task
// became disposable.
func (t *Task) MarkAsReleased() bool {
	return t.removalCount.Add(-1) == 0
}

// Dispose runs the disposal hook. The workflow engine calls it exactly once,
// after MarkAsReleased returned true.
func (t *Task) Dispose() {
	if t.onDispose != nil {
		t.onDispose(t)
	}
}
