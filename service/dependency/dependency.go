package dependency

import (
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
)

// CPUData is the per-CPU dependency scratch area. It exists so the hot
// dependency paths can accumulate side effects (tasks becoming ready,
// satisfiability updates) without allocating; a worker always passes its
// CPU's instance, callbacks without a compute place use a fresh local one.
type CPUData struct {
	SatisfiedOriginators []*task.Task
	SatisfiedAccesses    []*access.DataAccess
}

// Clear resets the scratch without releasing its backing storage.
func (d *CPUData) Clear() {
	d.SatisfiedOriginators = d.SatisfiedOriginators[:0]
	d.SatisfiedAccesses = d.SatisfiedAccesses[:0]
}

// Subsystem is the contract the runtime core consumes from the
// dependency-tracking implementation. The core never inspects dependency
// state directly; it only drives these entry points at the right moments of
// a task's execution workflow.
type Subsystem interface {
	// ProcessAllDataAccesses visits every data access of the task until the
	// visitor returns false.
	ProcessAllDataAccesses(t *task.Task, visitor func(*access.DataAccess) bool)

	// UnregisterTaskDataAccesses releases all accesses of a finished task.
	// The finalizer runs after the accesses are unlinked but strictly before
	// any satisfiability is propagated to successor tasks; cluster mode
	// relies on this to send the task-finished message first.
	UnregisterTaskDataAccesses(t *task.Task, cp task.ComputePlace, deps *CPUData, location *place.MemoryPlace, fromBusyThread bool, finalizer func())

	// UnregisterLocallyPropagatedTaskDataAccesses handles the early release
	// of accesses propagated in the local namespace.
	UnregisterLocallyPropagatedTaskDataAccesses(t *task.Task, cp task.ComputePlace, deps *CPUData)

	// HandleExitTaskwait re-links the task into the dependency domain after
	// its taskwait completed.
	HandleExitTaskwait(t *task.Task, cp task.ComputePlace, deps *CPUData)

	// ReleaseTaskwaitFragment releases one taskwait fragment region.
	ReleaseTaskwaitFragment(t *task.Task, region access.Region, cp task.ComputePlace, deps *CPUData, isWait bool)
}
