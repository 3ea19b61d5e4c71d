package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/viant/taskor/internal/cpuset"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/dependency"
)

// None marks an unset worker index on a CPU.
const None = int32(-1)

// CPU is one admissible logical processor. The pool owns the workers; a CPU
// only carries non-owning worker indices.
type CPU struct {
	systemID  int
	virtualID int

	depsData dependency.CPUData

	// boundWorker is the index of the worker last bound here, None until a
	// worker first binds; it is not reset when the cpu goes idle.
	boundWorker atomic.Int32

	// shutdownController is the worker elected to drive this CPU's teardown.
	shutdownController atomic.Int32

	initialized atomic.Bool
}

// SystemID returns the kernel affinity index.
func (c *CPU) SystemID() int { return c.systemID }

// VirtualID returns the dense runtime index.
func (c *CPU) VirtualID() int { return c.virtualID }

// DeviceType returns the device class; registry CPUs are host processors.
func (c *CPU) DeviceType() place.DeviceType { return place.HostDevice }

// DependencyData returns the per-CPU dependency scratch.
func (c *CPU) DependencyData() *dependency.CPUData { return &c.depsData }

// BindWorker records the worker index bound to this cpu.
func (c *CPU) BindWorker(workerIndex int32) { c.boundWorker.Store(workerIndex) }

// BoundWorker returns the bound worker index, None when unbound.
func (c *CPU) BoundWorker() int32 { return c.boundWorker.Load() }

// SetShutdownController elects a worker as this CPU's shutdown controller.
func (c *CPU) SetShutdownController(workerIndex int32) {
	c.shutdownController.Store(workerIndex)
}

// ShutdownController returns the elected worker index, None when unset.
func (c *CPU) ShutdownController() int32 { return c.shutdownController.Load() }

// MarkInitialized flags the cpu's worker as started.
func (c *CPU) MarkInitialized() { c.initialized.Store(true) }

// Initialized reports whether the cpu's worker has started.
func (c *CPU) Initialized() bool { return c.initialized.Load() }

func (c *CPU) String() string {
	return fmt.Sprintf("cpu(virtual=%d,system=%d)", c.virtualID, c.systemID)
}

var _ task.ComputePlace = (*CPU)(nil)

// Service enumerates the admissible CPUs and tracks the idle set. Every
// admissible CPU is either in the idle set or hosting exactly one runnable
// worker.
type Service struct {
	cpus []*CPU

	finishedInit atomic.Bool

	idleMu    sync.Mutex
	idleBits  []bool
	idleCount int
}

// Option mutates the service at construction time.
type Option func(*options)

type options struct {
	systemCPUs []int
	explicit   bool
}

// WithSystemCPUs overrides the admissible system cpu set; tests use it to
// model a fixed fleet regardless of the host affinity mask.
func WithSystemCPUs(systemCPUs ...int) Option {
	return func(o *options) {
		o.systemCPUs = systemCPUs
		o.explicit = true
	}
}

// New preinitializes the registry: the admissible system cpus are read from
// the process affinity mask and mapped to dense virtual ids. All CPUs start
// non-idle with no worker launched yet.
func New(opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	systemCPUs := o.systemCPUs
	if !o.explicit {
		var err error
		systemCPUs, err = cpuset.ProcessMask()
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve the process affinity: %w", err)
		}
	}
	if len(systemCPUs) == 0 {
		return nil, fmt.Errorf("process affinity mask admits no cpu")
	}
	s := &Service{
		cpus:     make([]*CPU, 0, len(systemCPUs)),
		idleBits: make([]bool, len(systemCPUs)),
	}
	for virtualID, systemID := range systemCPUs {
		cpu := &CPU{systemID: systemID, virtualID: virtualID}
		cpu.boundWorker.Store(None)
		cpu.shutdownController.Store(None)
		s.cpus = append(s.cpus, cpu)
	}
	return s, nil
}

// CPUs returns every admissible CPU indexed by virtual id.
func (s *Service) CPUs() []*CPU { return s.cpus }

// CPU returns the CPU with the given virtual id, nil when out of range.
func (s *Service) CPU(virtualID int) *CPU {
	if virtualID < 0 || virtualID >= len(s.cpus) {
		return nil
	}
	return s.cpus[virtualID]
}

// TotalCPUs returns the number of admissible CPUs.
func (s *Service) TotalCPUs() int { return len(s.cpus) }

// MarkInitializationFinished flags that every CPU launched its worker.
func (s *Service) MarkInitializationFinished() { s.finishedInit.Store(true) }

// FinishedInitialization reports whether initialization completed.
func (s *Service) FinishedInitialization() bool { return s.finishedInit.Load() }

// CPUBecomesIdle adds the cpu to the idle set.
func (s *Service) CPUBecomesIdle(cpu *CPU) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if !s.idleBits[cpu.virtualID] {
		s.idleBits[cpu.virtualID] = true
		s.idleCount++
	}
}

// UnidleCPU removes the cpu from the idle set.
func (s *Service) UnidleCPU(cpu *CPU) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if s.idleBits[cpu.virtualID] {
		s.idleBits[cpu.virtualID] = false
		s.idleCount--
	}
}

// IsIdle reports whether the cpu is in the idle set.
func (s *Service) IsIdle(cpu *CPU) bool {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	return s.idleBits[cpu.virtualID]
}

// GetIdleCPU pops one cpu from the idle set, nil when none is idle.
func (s *Service) GetIdleCPU() *CPU {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if s.idleCount == 0 {
		return nil
	}
	for i, idle := range s.idleBits {
		if idle {
			s.idleBits[i] = false
			s.idleCount--
			return s.cpus[i]
		}
	}
	return nil
}

// IdleCount returns the size of the idle set.
func (s *Service) IdleCount() int {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	return s.idleCount
}
