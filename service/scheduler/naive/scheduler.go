package naive

import (
	"sync"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// Scheduler is the reference implementation: one global lock guarding a
// ready queue, an unblocked queue and an idle-CPU deque. Correctness comes
// from single-lock mutual exclusion; throughput is not its job.
type Scheduler struct {
	mu sync.Mutex

	ready     *scheduler.TaskQueue
	unblocked []*task.Task
	idleCPUs  []*registry.CPU

	registry *registry.Service
	config   scheduler.Config
}

// New creates a naive scheduler over the registry fleet.
func New(config scheduler.Config, reg *registry.Service) *Scheduler {
	return &Scheduler{
		ready:    scheduler.NewTaskQueue(config.Policy, config.Priority),
		registry: reg,
		config:   config,
	}
}

// AddReadyTask queues the task and, when a cpu is idle, pops it for the
// caller to resume.
func (s *Scheduler) AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint) *registry.CPU {
	instrument.Active().EnterSchedulerAddTask()
	defer instrument.Active().ExitSchedulerAddTask()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready.Add(t)
	return s.popIdleLocked()
}

// TaskGetsUnblocked queues the task ahead of the ready queue.
func (s *Scheduler) TaskGetsUnblocked(t *task.Task, cpu *registry.CPU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unblocked = append(s.unblocked, t)
}

// GetReadyTask serves unblocked tasks first, then ready tasks; on empty the
// cpu joins the idle deque.
func (s *Scheduler) GetReadyTask(cpu *registry.CPU) *task.Task {
	instrument.Active().EnterSchedulerGetTask()
	defer instrument.Active().ExitSchedulerGetTask()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unblocked) > 0 {
		t := s.unblocked[0]
		s.unblocked = s.unblocked[1:]
		return t
	}
	if t := s.ready.Get(); t != nil {
		return t
	}
	s.cpuBecomesIdleLocked(cpu)
	return nil
}

// GetIdleComputePlace pops an idle cpu; force also consults the registry in
// case a cpu parked without passing through this scheduler.
func (s *Scheduler) GetIdleComputePlace(force bool) *registry.CPU {
	s.mu.Lock()
	cpu := s.popIdleLocked()
	s.mu.Unlock()
	if cpu == nil && force {
		cpu = s.registry.GetIdleCPU()
	}
	return cpu
}

// Disable forgets the cpu's idle record; queued tasks are global already.
func (s *Scheduler) Disable(cpu *registry.CPU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, idle := range s.idleCPUs {
		if idle == cpu {
			s.idleCPUs = append(s.idleCPUs[:i], s.idleCPUs[i+1:]...)
			s.registry.UnidleCPU(cpu)
			return
		}
	}
}

// Enable has nothing to restore.
func (s *Scheduler) Enable(cpu *registry.CPU) {}

func (s *Scheduler) cpuBecomesIdleLocked(cpu *registry.CPU) {
	s.idleCPUs = append(s.idleCPUs, cpu)
	s.registry.CPUBecomesIdle(cpu)
}

func (s *Scheduler) popIdleLocked() *registry.CPU {
	if len(s.idleCPUs) == 0 {
		return nil
	}
	cpu := s.idleCPUs[0]
	s.idleCPUs = s.idleCPUs[1:]
	s.registry.UnidleCPU(cpu)
	return cpu
}

var _ scheduler.Scheduler = (*Scheduler)(nil)
