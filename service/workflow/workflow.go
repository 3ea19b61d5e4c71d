package workflow

import (
	"sync/atomic"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/internal/fatal"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/registry"
)

// State tracks a workflow through its lifetime. AwaitingChildren replaces
// the original dangling-pointer idiom: a task whose notification ran but
// whose release was delayed by a wait clause keeps its workflow in this
// state until the delayed-release re-entry finishes it.
type State int32

const (
	// StateRunning covers construction through the notification step.
	StateRunning State = iota
	// StateAwaitingChildren marks a delayed release pending children.
	StateAwaitingChildren
	// StateDone marks the workflow finished and unbound from its task.
	StateDone
)

// Workflow owns a task's step DAG: the steps, and the root set with no
// unresolved predecessors. It is created by ExecuteTask and finished by its
// own terminal notification step.
type Workflow struct {
	engine *Engine
	task   *task.Task

	steps []*Step
	roots []*Step

	// inlineCPU is non-nil only while the owning worker synchronously
	// releases the root steps; an execution step released in that window
	// runs its body inline instead of going back through the scheduler.
	inlineCPU *registry.CPU

	state atomic.Int32
}

func newWorkflow(engine *Engine, t *task.Task) *Workflow {
	return &Workflow{engine: engine, task: t}
}

// State returns the workflow lifecycle state.
func (w *Workflow) State() State { return State(w.state.Load()) }

func (w *Workflow) setState(state State) { w.state.Store(int32(state)) }

// RootSteps returns the steps with no unresolved predecessors.
func (w *Workflow) RootSteps() []*Step { return w.roots }

// EnforceOrder gates successor on predecessor.
func (w *Workflow) EnforceOrder(predecessor, successor *Step) {
	if predecessor == nil || successor == nil {
		return
	}
	predecessor.addSuccessor(successor)
}

// AddRootStep registers a step with no predecessors.
func (w *Workflow) AddRootStep(step *Step) {
	w.roots = append(w.roots, step)
}

func (w *Workflow) newStep(kind StepKind) *Step {
	step := &Step{kind: kind, engine: w.engine, workflow: w, task: w.task}
	w.steps = append(w.steps, step)
	return step
}

// createExecutionStep builds the step gating the task body for the target
// device class: inline host execution on a registry cpu, offload for
// cluster-targeted tasks. Other device classes have no execution step yet.
func (w *Workflow) createExecutionStep(t *task.Task, cpu *registry.CPU) *Step {
	switch {
	case t.TargetDeviceType() == place.HostDevice:
		return w.newStep(StepExecHost)
	case t.TargetDeviceType() == place.ClusterDevice:
		return w.newStep(StepExecCluster)
	default:
		fatal.FailIf(true, "execution workflow does not support device %v yet", t.TargetDeviceType())
		return nil
	}
}

// createNotificationStep builds the terminal step around a single-shot
// continuation.
func (w *Workflow) createNotificationStep(callback func()) *Step {
	step := w.newStep(StepNotification)
	step.callback = callback
	return step
}

// createDataReleaseStep builds the release step; remote tasks additionally
// notify their offloader per released access.
func (w *Workflow) createDataReleaseStep(t *task.Task) *Step {
	if t.IsRemoteTask() {
		return w.newStep(StepReleaseCluster)
	}
	return w.newStep(StepReleaseLocal)
}

// createDataCopyStep picks the transfer for a (source, target) pair.
// Reduction, commutative and concurrent accesses get a no-op step: devices
// do not support them and the placeholder keeps the DAG shape uniform.
func (w *Workflow) createDataCopyStep(source, target *place.MemoryPlace, region access.Region, a *access.DataAccess, isTaskwait bool) *Step {
	instrument.Active().EnterCreateDataCopyStep(isTaskwait)
	defer instrument.Active().ExitCreateDataCopyStep(isTaskwait)

	if !a.SupportsDataCopy() {
		return w.newStep(StepNull)
	}

	fatal.FailIf(target == nil, "data copy step without a target memory place")
	fatal.FailIf(place.IsDirectory(target), "data copy step targeting the directory")

	// A nil source means the access is not yet read satisfied, which is
	// only possible for weak accesses: neither copy nor registration happens
	// now, the satisfiability message drives it later.
	sourceType := place.HostDevice
	if source != nil {
		sourceType = source.Type
	}

	currentNode := w.engine.transport.CurrentMemoryNode()
	if target.Type == place.HostDevice || target == currentNode {
		a.SetValidNamespace(currentNode.Index)
	}

	if place.IsDirectory(source) && w.engine.transport.InClusterMode() {
		// Data in the directory is uninitialized, so nothing is copied, but
		// the new location may still need registering in the remote
		// dependency system.
		return w.clusterCopy(source, target, region, a, isTaskwait)
	}

	if transferNeedsWire(sourceType, target.Type) {
		return w.clusterCopy(source, target, region, a, isTaskwait)
	}
	return w.newStep(StepNull)
}

// transferNeedsWire is the (source, target) policy matrix: only transfers
// with a cluster endpoint invoke the cluster copy today, the device slots
// are reserved.
func transferNeedsWire(source, target place.DeviceType) bool {
	switch {
	case source == place.HostDevice && target == place.ClusterDevice:
		return true
	case source == place.ClusterDevice && target == place.HostDevice:
		return true
	case source == place.ClusterDevice && target == place.ClusterDevice:
		return true
	}
	return false
}

func (w *Workflow) clusterCopy(source, target *place.MemoryPlace, region access.Region, a *access.DataAccess, isTaskwait bool) *Step {
	step := w.newStep(StepDataCopyCluster)
	step.dataAccess = a
	step.region = region
	step.source = source
	step.target = target
	step.fragments = 1
	step.isTaskwait = isTaskwait
	step.needsTransfer = source != nil && !place.IsDirectory(source) && source != target
	return step
}

// Start releases the root steps. Cluster copies destined for the current
// node are grouped by source and fetched with one transport call per source
// to amortize round-trips; every other root starts directly.
func (w *Workflow) Start() { w.start(nil) }

// start is Start with the calling worker's cpu: an execution-step root runs
// its task body inline instead of bouncing through the scheduler.
func (w *Workflow) start(cpu *registry.CPU) {
	fragments := map[*place.MemoryPlace]int{}
	groups := map[*place.MemoryPlace][]cluster.Fetchable{}
	var sources []*place.MemoryPlace

	w.inlineCPU = cpu
	for _, step := range w.roots {
		if step.kind == StepDataCopyCluster {
			// RequiresDataFetch immediately releases successors when no
			// wire traffic is needed.
			if !step.RequiresDataFetch() {
				continue
			}
			fatal.FailIf(step.target != w.engine.transport.CurrentMemoryNode(),
				"grouped fetch targeting a foreign node")
			source := step.source
			if _, seen := fragments[source]; !seen {
				sources = append(sources, source)
			}
			fragments[source] += step.NumFragments()
			groups[source] = append(groups[source], step)
			continue
		}
		step.Start()
	}
	w.inlineCPU = nil

	for _, source := range sources {
		w.engine.transport.FetchVector(fragments[source], groups[source], source)
	}
}
