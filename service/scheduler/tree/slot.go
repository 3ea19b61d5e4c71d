package tree

import (
	"sync/atomic"

	"github.com/viant/taskor/model/task"
)

// pollingSlot is the single-task hand-off cell of a leaf. Cross-CPU
// submitters prefer it over the queue because landing a task here can wake
// the owning cpu directly; the polling worker spins on it while the parent
// prepares a batch.
type pollingSlot struct {
	t atomic.Pointer[task.Task]
}

// set publishes the task; it fails when the slot is occupied.
func (s *pollingSlot) set(t *task.Task) bool {
	return s.t.CompareAndSwap(nil, t)
}

// get takes the task out of the slot, nil when empty.
func (s *pollingSlot) get() *task.Task {
	return s.t.Swap(nil)
}
