package workflow

import (
	"context"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/internal/fatal"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/dependency"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// Dispatcher re-admits a task whose execution step was released from
// outside its worker; the runtime implements it over the scheduler and the
// worker pool.
type Dispatcher interface {
	AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint)
}

// Config represents engine configuration.
type Config struct {
	// Debug enables the structural checks that are too expensive for
	// release builds; failures are fatal.
	Debug bool
}

// Engine builds and drives per-task execution workflows: the step DAG that
// gates a task's launch on its data movement and chains its release and
// finalization behind the body.
type Engine struct {
	config     Config
	deps       dependency.Subsystem
	transport  cluster.Transport
	dispatcher Dispatcher

	hostMemory *place.MemoryPlace
}

// New creates the engine.
func New(config Config, deps dependency.Subsystem, transport cluster.Transport, dispatcher Dispatcher) *Engine {
	return &Engine{
		config:     config,
		deps:       deps,
		transport:  transport,
		dispatcher: dispatcher,
		hostMemory: place.NewMemoryPlace(0, place.HostDevice),
	}
}

// Execute runs one ready task on the given cpu; it is the worker pool entry
// point. The target memory place is the current cluster node in cluster
// mode and plain host memory otherwise.
func (e *Engine) Execute(t *task.Task, cpu *registry.CPU) {
	target := e.hostMemory
	if e.transport.InClusterMode() {
		target = e.transport.CurrentMemoryNode()
	}
	e.ExecuteTask(t, cpu, target)
}

// ExecuteTask drives the task's workflow. On first entry it builds the step
// DAG and starts the roots. A re-entry either restarts the execution step
// (the task went back through the scheduler while its copies completed) or,
// when the notification already ran but the release was delayed by a wait
// clause, finishes the delayed release and disposes the task.
func (e *Engine) ExecuteTask(t *task.Task, cpu *registry.CPU, targetMemoryPlace *place.MemoryPlace) {
	if wf, ok := t.GetWorkflow().(*Workflow); ok && wf != nil {
		if step := t.GetExecutionStep(); step != nil {
			e.runExecutionStep(step.(*Step), cpu)
			return
		}
		e.completeDelayedRelease(wf, t, cpu, targetMemoryPlace)
		return
	}

	// The target memory place is used later, once the task has completed,
	// to update the location of its data accesses.
	t.SetMemoryPlace(targetMemoryPlace)

	wf := newWorkflow(e, t)
	executionStep := wf.createExecutionStep(t, cpu)
	notificationStep := wf.createNotificationStep(func() {
		e.notifyCompletion(wf, t, targetMemoryPlace)
	})
	releaseStep := wf.createDataReleaseStep(t)
	wf.EnforceOrder(executionStep, releaseStep)
	wf.EnforceOrder(releaseStep, notificationStep)

	e.deps.ProcessAllDataAccesses(t, func(a *access.DataAccess) bool {
		currentLocation := a.Location
		if e.config.Debug && !a.Weak {
			// A non-weak access still in the directory on a host compute
			// place under cluster mode names a region the runtime never
			// learned about.
			fatal.FailIf(e.transport.InClusterMode() && place.IsDirectory(currentLocation),
				"non-weak access %v of %v is an unknown region", a.Region, t.Label())
		}
		copyStep := wf.createDataCopyStep(currentLocation, targetMemoryPlace, a.Region, a, false)
		wf.EnforceOrder(copyStep, executionStep)
		wf.AddRootStep(copyStep)
		releaseStep.addAccess(a)
		return true
	})

	if executionStep.Ready() {
		wf.AddRootStep(executionStep)
	}

	t.SetWorkflow(wf)
	t.SetComputePlace(cpu)

	// Starting the workflow either executes the task to completion (no
	// pending transfers) or leaves the execution step armed for the last
	// copy completion.
	wf.start(cpu)
}

// runExecutionStep restarts an execution step on the worker that picked the
// task back up; the step already started once through the requeue path, so
// only the body phase remains.
func (e *Engine) runExecutionStep(step *Step, cpu *registry.CPU) {
	fatal.FailIf(step.kind != StepExecHost, "restarted step is not a host execution step")
	e.executeBody(step, cpu)
}

// executeBody runs the task body on the given cpu and advances the DAG.
func (e *Engine) executeBody(step *Step, cpu *registry.CPU) {
	t := step.task
	if body := t.Body(); body != nil {
		body(cpu)
	}
	t.SetExecutionStep(nil)
	step.ReleaseSuccessors()
}

// notifyCompletion is the notification-step continuation: unregister the
// locally propagated accesses, then, unless the task must wait for its
// children, unregister everything; the finalizer inside sends the cluster
// task-finished message before any satisfiability propagates.
func (e *Engine) notifyCompletion(wf *Workflow, t *task.Task, targetMemoryPlace *place.MemoryPlace) {
	cp := t.GetComputePlace()
	depsData := e.dependencyData(cp)

	e.deps.UnregisterLocallyPropagatedTaskDataAccesses(t, cp, depsData)

	if t.MarkAsFinished(cp) {
		e.deps.UnregisterTaskDataAccesses(t, cp, depsData, targetMemoryPlace, false, func() {
			e.taskFinished(t, cp)
			if t.MarkAsReleased() {
				t.Dispose()
			}
		})
		wf.setState(StateDone)
		t.SetWorkflow(nil)
		return
	}
	// The task holds a wait clause with live children; the workflow stays
	// bound in the awaiting state until the delayed-release re-entry.
	wf.setState(StateAwaitingChildren)
}

// completeDelayedRelease is the delayed-release tail: everything that was
// cut short when MarkAsFinished returned false, executed now that the wait
// clause is satisfied.
func (e *Engine) completeDelayedRelease(wf *Workflow, t *task.Task, cpu *registry.CPU, targetMemoryPlace *place.MemoryPlace) {
	fatal.FailIf(wf.State() != StateAwaitingChildren,
		"delayed release re-entry on a workflow in state %d", wf.State())
	fatal.FailIf(!t.MustDelayRelease(), "delayed release re-entry without a pending wait clause")

	depsData := e.dependencyData(cpu)

	t.CompleteDelayedRelease()
	t.MarkAsUnblocked()
	e.deps.HandleExitTaskwait(t, cpu, depsData)

	fatal.FailIf(!t.HasFinished(), "delayed release of a task that never finished")
	e.deps.UnregisterTaskDataAccesses(t, cpu, depsData, targetMemoryPlace, false, func() {
		e.taskFinished(t, cpu)
		if t.MarkAsReleased() {
			t.Dispose()
		}
	})

	wf.setState(StateDone)
	t.SetWorkflow(nil)
}

// SetupTaskwaitWorkflow places taskwait data at its requested output
// location before the taskwait completes. Without an output location the
// fragment is released on the spot; otherwise a two-step copy-notify
// workflow does it once the data landed.
func (e *Engine) SetupTaskwaitWorkflow(t *task.Task, fragment *access.DataAccess, cpu *registry.CPU) {
	instrument.Active().EnterSetupTaskwaitWorkflow()
	defer instrument.Active().ExitSetupTaskwaitWorkflow()

	region := fragment.Region
	targetLocation := fragment.OutputLocation

	if targetLocation == nil {
		e.deps.ReleaseTaskwaitFragment(t, region, cpu, e.dependencyData(cpu), false)
		return
	}

	wf := newWorkflow(e, t)
	notificationStep := wf.createNotificationStep(func() {
		// Always a fresh scratch here: this can run while the releasing
		// thread is already inside the dependency system using its own
		// CPU's scratch.
		localData := &dependency.CPUData{}
		e.deps.ReleaseTaskwaitFragment(t, region, nil, localData, true)
		wf.setState(StateDone)
	})

	copyStep := wf.createDataCopyStep(fragment.Location, targetLocation, region, fragment, true)
	wf.AddRootStep(copyStep)
	wf.EnforceOrder(copyStep, notificationStep)
	wf.start(nil)
}

// taskFinished finalizes the task on this node; for remote tasks that means
// the task-finished message to the offloader.
func (e *Engine) taskFinished(t *task.Task, cp task.ComputePlace) {
	if t.IsRemoteTask() {
		err := e.transport.NotifyTaskFinished(context.Background(), t)
		fatal.Handle(err, " when finalizing remote task ", t.Label())
	}
}

// dependencyData picks the cpu's scratch when the caller runs on a worker
// and a fresh local one otherwise (poller threads, external callers).
func (e *Engine) dependencyData(cp task.ComputePlace) *dependency.CPUData {
	if cpu, ok := cp.(*registry.CPU); ok && cpu != nil {
		return cpu.DependencyData()
	}
	return &dependency.CPUData{}
}
