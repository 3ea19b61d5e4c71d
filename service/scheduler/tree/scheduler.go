package tree

import (
	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// Scheduler is the hierarchical implementation: one leaf per admissible cpu
// under a single interior node. Submissions from a cpu's own worker land in
// that leaf; foreign submissions prefer the polling slot of an idle leaf so
// the cpu can be woken directly.
type Scheduler struct {
	root   *Node
	leaves []*Leaf

	registry *registry.Service
	config   scheduler.Config
}

// Option mutates the scheduler at construction time.
type Option func(*options)

type options struct {
	minThreshold int
}

// WithMinQueueThreshold floors the per-leaf queue threshold.
func WithMinQueueThreshold(threshold int) Option {
	return func(o *options) { o.minThreshold = threshold }
}

// New builds the tree over the registry fleet.
func New(config scheduler.Config, reg *registry.Service, resumer scheduler.Resumer, opts ...Option) *Scheduler {
	o := options{minThreshold: 1}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scheduler{
		root:     newNode(o.minThreshold),
		registry: reg,
		config:   config,
	}
	for _, cpu := range reg.CPUs() {
		s.leaves = append(s.leaves, newLeaf(config, cpu, s.root, reg, resumer, o.minThreshold))
	}
	return s
}

// Leaf exposes the per-CPU leaf; tests use it to inspect queue state.
func (s *Scheduler) Leaf(cpu *registry.CPU) *Leaf {
	return s.leaves[cpu.VirtualID()]
}

// Root exposes the interior node; tests use it to inspect buffered load.
func (s *Scheduler) Root() *Node { return s.root }

// AddReadyTask routes the task to a leaf. cpu names the target leaf; a
// ChildTaskHint means the submitter is the worker bound there and may bypass
// the polling slot. With no target the task goes to an idle leaf when one
// exists, to leaf zero otherwise. Wake-ups happen inside the leaf, so no
// compute place is returned to the caller.
func (s *Scheduler) AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint) *registry.CPU {
	instrument.Active().EnterSchedulerAddTask()
	defer instrument.Active().ExitSchedulerAddTask()

	leaf := s.targetLeaf(cpu)
	leaf.AddTask(t, cpu != nil && hint == scheduler.ChildTaskHint)
	return nil
}

// TaskGetsUnblocked re-admits the task through its leaf's polling slot.
func (s *Scheduler) TaskGetsUnblocked(t *task.Task, cpu *registry.CPU) {
	leaf := s.targetLeaf(cpu)
	leaf.AddTask(t, false)
}

// GetReadyTask polls the cpu's leaf, busy-waiting on the slot before giving
// up and parking the leaf.
func (s *Scheduler) GetReadyTask(cpu *registry.CPU) *task.Task {
	instrument.Active().EnterSchedulerGetTask()
	defer instrument.Active().ExitSchedulerGetTask()

	return s.leaves[cpu.VirtualID()].GetTask(true)
}

// GetIdleComputePlace pops an idle cpu from the registry.
func (s *Scheduler) GetIdleComputePlace(force bool) *registry.CPU {
	return s.registry.GetIdleCPU()
}

// Disable drains the cpu's leaf into the node.
func (s *Scheduler) Disable(cpu *registry.CPU) {
	s.leaves[cpu.VirtualID()].Disable()
}

// Enable re-admits the cpu's leaf.
func (s *Scheduler) Enable(cpu *registry.CPU) {
	s.leaves[cpu.VirtualID()].Enable()
}

func (s *Scheduler) targetLeaf(cpu *registry.CPU) *Leaf {
	if cpu != nil {
		return s.leaves[cpu.VirtualID()]
	}
	for _, leaf := range s.leaves {
		if leaf.IsIdle() {
			return leaf
		}
	}
	return s.leaves[0]
}

var _ scheduler.Scheduler = (*Scheduler)(nil)
