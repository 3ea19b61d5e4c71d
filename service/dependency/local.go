package dependency

import (
	"sync"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
)

// Local is a minimal in-process dependency implementation. It keeps no
// inter-task edges: every submitted task is already ready, so unregistering
// reduces to updating access locations and honoring the finalizer ordering
// contract. It is the default Subsystem and the reference used by tests.
type Local struct {
	mu sync.Mutex

	// onSatisfiability observes satisfiability propagation; tests use it to
	// assert the task-finished message is sent first.
	onSatisfiability func(t *task.Task, a *access.DataAccess)
}

// NewLocal returns the in-process dependency implementation.
func NewLocal() *Local { return &Local{} }

// OnSatisfiability registers the propagation observer.
func (l *Local) OnSatisfiability(fn func(t *task.Task, a *access.DataAccess)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSatisfiability = fn
}

// ProcessAllDataAccesses visits every access of the task.
func (l *Local) ProcessAllDataAccesses(t *task.Task, visitor func(*access.DataAccess) bool) {
	for _, a := range t.Accesses() {
		if !visitor(a) {
			return
		}
	}
}

// UnregisterTaskDataAccesses updates access locations, runs the finalizer
// and only then propagates satisfiability.
func (l *Local) UnregisterTaskDataAccesses(t *task.Task, cp task.ComputePlace, deps *CPUData, location *place.MemoryPlace, fromBusyThread bool, finalizer func()) {
	instrument.Active().EnterUnregisterTaskDataAccesses()
	defer instrument.Active().ExitUnregisterTaskDataAccesses()

	for _, a := range t.Accesses() {
		if location != nil {
			a.Location = location
		}
		if deps != nil {
			deps.SatisfiedAccesses = append(deps.SatisfiedAccesses, a)
		}
	}

	if finalizer != nil {
		finalizer()
	}

	l.mu.Lock()
	observer := l.onSatisfiability
	l.mu.Unlock()
	if observer != nil {
		for _, a := range t.Accesses() {
			observer(t, a)
		}
	}
	if deps != nil {
		deps.Clear()
	}
}

// UnregisterLocallyPropagatedTaskDataAccesses is a no-op without namespace
// propagation.
func (l *Local) UnregisterLocallyPropagatedTaskDataAccesses(t *task.Task, cp task.ComputePlace, deps *CPUData) {
}

// HandleExitTaskwait re-links the task after its taskwait; nothing to do
// without tracked edges.
func (l *Local) HandleExitTaskwait(t *task.Task, cp task.ComputePlace, deps *CPUData) {
	instrument.Active().EnterHandleExitTaskwait()
	defer instrument.Active().ExitHandleExitTaskwait()
}

// ReleaseTaskwaitFragment releases one taskwait fragment region.
func (l *Local) ReleaseTaskwaitFragment(t *task.Task, region access.Region, cp task.ComputePlace, deps *CPUData, isWait bool) {
	instrument.Active().EnterReleaseTaskwaitFragment()
	defer instrument.Active().ExitReleaseTaskwaitFragment()
}

var _ Subsystem = (*Local)(nil)
