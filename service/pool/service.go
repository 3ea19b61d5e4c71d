package pool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/internal/cpuset"
	"github.com/viant/taskor/internal/fatal"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// TaskExecutor runs one ready task to completion on the given cpu; the
// workflow engine implements it.
type TaskExecutor interface {
	Execute(t *task.Task, cpu *registry.CPU)
}

// Config represents worker pool configuration.
type Config struct {
	// BindThreads pins each worker's OS thread to its cpu via kernel
	// affinity. Disabled in tests that model a fleet different from the
	// process affinity mask.
	BindThreads bool

	// ImmediateSuccessor lets a worker run a finished task's designated
	// successor without a scheduler round-trip.
	ImmediateSuccessor bool
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{BindThreads: true, ImmediateSuccessor: true}
}

// Service owns one long-lived worker per admissible cpu. Workers park when
// the scheduler runs dry and are resumed by peers: submitters with work,
// or shutdown controllers during teardown.
type Service struct {
	config    Config
	registry  *registry.Service
	scheduler scheduler.Scheduler
	executor  TaskExecutor

	workers []*Worker

	idleMu      sync.Mutex
	idleWorkers []*Worker

	mustExit               atomic.Bool
	shutdownThreads        atomic.Int64
	mainShutdownController atomic.Pointer[Worker]
}

// New creates the pool over the registry fleet. The scheduler and executor
// are attached later; they are constructed around the pool (the scheduler
// needs the pool as its resumer).
func New(config Config, reg *registry.Service) *Service {
	return &Service{
		config:   config,
		registry: reg,
	}
}

// SetScheduler attaches the scheduler; must precede Initialize.
func (s *Service) SetScheduler(sched scheduler.Scheduler) { s.scheduler = sched }

// SetExecutor attaches the workflow engine; must precede Initialize.
func (s *Service) SetExecutor(executor TaskExecutor) { s.executor = executor }

// TotalThreads returns the number of workers the pool launched.
func (s *Service) TotalThreads() int { return len(s.workers) }

// ShutdownThreads returns the number of workers still alive during
// teardown; zero after Shutdown returns.
func (s *Service) ShutdownThreads() int64 { return s.shutdownThreads.Load() }

// Initialize launches one worker per admissible cpu. Each worker parks
// right after its startup handshake and is immediately resumed onto its own
// cpu, mirroring that the unparker is always a peer.
func (s *Service) Initialize() error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}
	if s.executor == nil {
		return fmt.Errorf("task executor is required")
	}
	for _, cpu := range s.registry.CPUs() {
		worker := newWorker(int32(len(s.workers)), cpu)
		s.workers = append(s.workers, worker)
		go s.run(worker)
		worker.cpuToBeResumedOn = cpu
		worker.resume()
	}
	s.registry.MarkInitializationFinished()
	return nil
}

// run is the worker body: startup handshake, immediate park, then the
// task loop until shutdown.
func (s *Service) run(w *Worker) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	w.tid = cpuset.ThreadID()
	if s.config.BindThreads {
		err := cpuset.BindCurrentThread(w.cpu.SystemID())
		fatal.Handle(err, " when binding worker thread ", w.tid, " to cpu ", w.cpu.SystemID())
	}
	w.cpu.BindWorker(w.index)
	w.instrumentationID = instrument.Active().CreatedThread(w.cpu.VirtualID())
	w.cpu.MarkInitialized()

	// The thread suspends itself after initialization; the activator
	// unparks it when needed.
	w.suspend()
	w.adoptResumeCPU()
	w.cpu.BindWorker(w.index)
	instrument.Active().ThreadHasResumed(w.instrumentationID, w.cpu.VirtualID())

	for {
		if w.shutdownSignaled() {
			s.shutdownSequence(w)
			return
		}

		t := s.scheduler.GetReadyTask(w.cpu)
		if t != nil {
			s.handleTask(w, t)
			continue
		}

		instrument.Active().ThreadWillSuspend(w.instrumentationID, w.cpu.VirtualID())
		s.addIdler(w)
		w.suspend()
		w.adoptResumeCPU()
		w.cpu.BindWorker(w.index)
		instrument.Active().ThreadHasResumed(w.instrumentationID, w.cpu.VirtualID())
	}
}

func (s *Service) handleTask(w *Worker, t *task.Task) {
	for t != nil {
		w.current = t
		s.executor.Execute(t, w.cpu)
		w.current = nil

		if !s.config.ImmediateSuccessor {
			return
		}
		successor := t.Successor()
		t.SetSuccessor(nil)
		t = successor
	}
}

// ResumeIdle wakes one parked worker on the given cpu, migrating it there
// when it last ran elsewhere. A cpu is only reported idle between marking
// itself and its worker entering the idle queue, so an empty queue here
// means a parking is in flight: wait it out rather than lose the wake-up.
func (s *Service) ResumeIdle(cpu *registry.CPU) {
	w := s.getIdleWorker()
	for w == nil && !s.mustExit.Load() {
		runtime.Gosched()
		w = s.getIdleWorker()
	}
	if w != nil {
		s.resumeOnCPU(w, cpu)
	}
}

func (s *Service) resumeOnCPU(w *Worker, cpu *registry.CPU) {
	w.cpuToBeResumedOn = cpu
	if w.cpu != cpu && s.config.BindThreads {
		err := cpuset.BindThread(w.tid, cpu.SystemID())
		fatal.Handle(err, " when migrating worker thread ", w.tid, " to cpu ", cpu.SystemID())
	}
	w.resume()
}

func (s *Service) addIdler(w *Worker) {
	s.idleMu.Lock()
	s.idleWorkers = append(s.idleWorkers, w)
	s.idleMu.Unlock()
}

func (s *Service) getIdleWorker() *Worker {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if len(s.idleWorkers) == 0 {
		return nil
	}
	w := s.idleWorkers[0]
	s.idleWorkers = s.idleWorkers[1:]
	return w
}

// Shutdown drains every worker. One idle worker per cpu is elected as that
// cpu's shutdown controller; the first elected is the main controller,
// which keeps absorbing stragglers whose parking was still in flight when
// teardown began. Returns once every worker has exited.
func (s *Service) Shutdown() {
	s.mustExit.Store(true)
	total := int64(len(s.workers))
	s.shutdownThreads.Store(total)

	var controllers []*Worker
	for _, cpu := range s.registry.CPUs() {
		for !cpu.Initialized() {
			runtime.Gosched()
		}

		idle := s.getIdleWorker()
		// Workers can be lagging behind (not in the idle queue yet), but at
		// least one is needed; the ones already shutting down may deplete
		// the rest.
		for idle == nil && s.shutdownThreads.Load() > 0 {
			runtime.Gosched()
			idle = s.getIdleWorker()
		}
		if idle == nil {
			continue
		}

		cpu.SetShutdownController(idle.index)
		s.mainShutdownController.CompareAndSwap(nil, idle)

		idle.signalShutdown()
		s.resumeOnCPU(idle, cpu)
		controllers = append(controllers, idle)
	}

	fatal.FailIf(s.mainShutdownController.Load() == nil, "shutdown found no idle worker to elect as controller")

	for _, controller := range controllers {
		<-controller.done
	}

	fatal.FailIf(s.shutdownThreads.Load() != 0, "shutdown finished with %d workers unaccounted", s.shutdownThreads.Load())
}

// shutdownSequence runs on a worker that received the shutdown signal. A
// controller keeps pulling idle workers, migrating them to its cpu,
// resuming and joining them. A non-main controller stops when the idle
// queue is empty; the main controller continues until it is the last worker
// alive so stragglers are never leaked.
func (s *Service) shutdownSequence(w *Worker) {
	cpu := w.cpu
	if cpu.ShutdownController() == w.index {
		isMainController := s.mainShutdownController.Load() == w

		done := false
		for !done {
			next := s.getIdleWorker()
			if next != nil {
				fatal.FailIf(next.Task() != nil, "idle worker %d still owns a task during shutdown", next.index)

				next.signalShutdown()
				s.resumeOnCPU(next, cpu)
				<-next.done
			} else if !isMainController {
				// The main controller handles any worker that did not enter
				// the idle queue yet.
				done = true
			} else if s.shutdownThreads.Load() == 1 {
				done = true
			} else {
				runtime.Gosched()
			}
		}
	}

	s.shutdownThreads.Add(-1)
	instrument.Active().ThreadWillShutdown(w.instrumentationID)
}

var _ scheduler.Resumer = (*Service)(nil)
