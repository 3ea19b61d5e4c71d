package workflow

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/viant/taskor/internal/fatal"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// StepKind discriminates the closed set of step variants. Steps are a
// tagged sum rather than a class hierarchy; Start dispatches on the kind.
type StepKind int

const (
	// StepNull completes immediately; used for accesses that do not
	// participate in data copies and for same-place transfers.
	StepNull StepKind = iota
	// StepDataCopyCluster fetches a region from another cluster node.
	StepDataCopyCluster
	// StepExecHost gates the task body on the local host.
	StepExecHost
	// StepExecCluster offloads the task to a remote node.
	StepExecCluster
	// StepReleaseLocal releases the task's accesses locally.
	StepReleaseLocal
	// StepReleaseCluster additionally notifies the offloader node.
	StepReleaseCluster
	// StepNotification runs the terminal single-shot continuation.
	StepNotification
)

// Step is a node of a task's execution workflow. A step starts exactly
// once, when its last unresolved predecessor completes; completing releases
// the successors in turn. The predecessor counter is the only cross-step
// mutation, so concurrent completions cannot double-start a successor.
type Step struct {
	kind StepKind

	predecessors atomic.Int32
	started      atomic.Bool

	mu         sync.Mutex
	successors []*Step

	engine   *Engine
	workflow *Workflow
	task     *task.Task

	// callback is the notification continuation; consumed on first run.
	callback func()

	// data-copy payload
	dataAccess    *access.DataAccess
	region        access.Region
	source        *place.MemoryPlace
	target        *place.MemoryPlace
	fragments     int
	needsTransfer bool
	isTaskwait    bool

	// release payload
	releaseAccesses []*access.DataAccess
}

// Kind returns the step variant.
func (s *Step) Kind() StepKind { return s.kind }

// Ready reports whether every predecessor has completed.
func (s *Step) Ready() bool { return s.predecessors.Load() == 0 }

// addSuccessor wires pre -> s; callers go through Workflow.EnforceOrder.
func (s *Step) addSuccessor(successor *Step) {
	s.mu.Lock()
	s.successors = append(s.successors, successor)
	s.mu.Unlock()
	successor.predecessors.Add(1)
}

// markStarted enforces the start-exactly-once invariant.
func (s *Step) markStarted() {
	fatal.FailIf(!s.started.CompareAndSwap(false, true), "workflow step started twice")
}

// Start runs the step's action. It must only be called when Ready; the
// workflow releases it through the predecessor counter.
func (s *Step) Start() {
	s.markStarted()
	switch s.kind {
	case StepNull:
		s.ReleaseSuccessors()

	case StepDataCopyCluster:
		// Cluster copies are normally grouped and driven through
		// FetchVector; a direct start stands for a transfer that needs no
		// wire traffic.
		s.ReleaseSuccessors()

	case StepExecHost:
		// Within the owning worker's start of the workflow the body runs
		// inline. Released from anywhere else (a transfer poller, a peer)
		// the task goes back to the scheduler and the worker that picks it
		// up restarts the execution step.
		if cpu := s.workflow.inlineCPU; cpu != nil {
			s.engine.executeBody(s, cpu)
			return
		}
		s.task.SetExecutionStep(s)
		cpu, _ := s.task.GetComputePlace().(*registry.CPU)
		s.engine.dispatcher.AddReadyTask(s.task, cpu, scheduler.UnblockedTaskHint)

	case StepExecCluster:
		err := s.engine.transport.OffloadTask(context.Background(), s.task)
		fatal.Handle(err, " when offloading task ", s.task.Label())
		s.task.SetExecutionStep(nil)
		s.ReleaseSuccessors()

	case StepReleaseLocal:
		s.ReleaseSuccessors()

	case StepReleaseCluster:
		for _, a := range s.releaseAccesses {
			err := s.engine.transport.NotifyRelease(context.Background(), s.task, a.Region)
			fatal.Handle(err, " when releasing access ", a.Region.String(), " of task ", s.task.Label())
		}
		s.ReleaseSuccessors()

	case StepNotification:
		callback := s.callback
		s.callback = nil
		if callback != nil {
			callback()
		}
		s.ReleaseSuccessors()
	}
}

// ReleaseSuccessors marks this step complete: every successor loses one
// unresolved predecessor and starts when it reaches zero.
func (s *Step) ReleaseSuccessors() {
	s.mu.Lock()
	successors := s.successors
	s.successors = nil
	s.mu.Unlock()
	for _, successor := range successors {
		if successor.predecessors.Add(-1) == 0 {
			successor.Start()
		}
	}
}

// addAccess records an access released by a release step.
func (s *Step) addAccess(a *access.DataAccess) {
	s.releaseAccesses = append(s.releaseAccesses, a)
}

// RequiresDataFetch reports whether the copy needs wire traffic. A copy that
// does not (and is not a taskwait placement) completes on the spot by
// releasing its successors.
func (s *Step) RequiresDataFetch() bool {
	if s.kind != StepDataCopyCluster {
		return false
	}
	if !s.needsTransfer && !s.isTaskwait {
		s.markStarted()
		s.ReleaseSuccessors()
		return false
	}
	return true
}

// NumFragments returns how many wire fragments the copy contributes.
func (s *Step) NumFragments() int { return s.fragments }

// SourceMemoryPlace returns the node the data comes from.
func (s *Step) SourceMemoryPlace() *place.MemoryPlace { return s.source }

// TargetMemoryPlace returns the node the data lands on.
func (s *Step) TargetMemoryPlace() *place.MemoryPlace { return s.target }

// Region returns the copied region.
func (s *Step) Region() access.Region { return s.region }

var _ cluster.Fetchable = (*Step)(nil)
