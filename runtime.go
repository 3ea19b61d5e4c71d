package taskor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	clustermemory "github.com/viant/taskor/service/cluster/memory"
	"github.com/viant/taskor/service/dependency"
	"github.com/viant/taskor/service/messaging"
	"github.com/viant/taskor/service/messaging/memory"
	"github.com/viant/taskor/service/pool"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
	"github.com/viant/taskor/service/scheduler/naive"
	"github.com/viant/taskor/service/scheduler/tree"
	"github.com/viant/taskor/service/transfer"
	"github.com/viant/taskor/service/workflow"
)

// Runtime is the task-parallel core: the cpu registry, the worker pool, the
// schedulers, the workflow engine and the transfer-completion service, owned
// as fields and brought up in that order (torn down in reverse). There are
// no process-wide singletons; embedding applications may run several
// runtimes side by side.
type Runtime struct {
	config *Config

	registry      *registry.Service
	workers       *pool.Service
	hostScheduler scheduler.Scheduler
	devices       []place.DeviceType
	deviceScheds  map[place.DeviceType]scheduler.Scheduler
	engine        *workflow.Engine
	poller        *transfer.Service

	deps      dependency.Subsystem
	transport cluster.Transport
	outbox    messaging.Queue[cluster.Message]

	systemCPUs       []int
	clusterNodeIndex int
	clusterNodeCount int

	started atomic.Bool
}

// New assembles a runtime. Configuration errors (bad policy, unsupported
// device class) surface here, before any thread is launched.
func New(options ...Option) (*Runtime, error) {
	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		config:           config,
		clusterNodeCount: 1,
	}
	for _, option := range options {
		option(r)
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	for _, device := range r.devices {
		switch device {
		case place.CUDADevice, place.OpenACCDevice:
		case place.OpenCLDevice, place.FPGADevice:
			return nil, fmt.Errorf("%v is not supported yet", device)
		default:
			return nil, fmt.Errorf("unknown device class %v", device)
		}
	}

	var registryOptions []registry.Option
	if r.systemCPUs != nil {
		registryOptions = append(registryOptions, registry.WithSystemCPUs(r.systemCPUs...))
	}
	if r.registry, err = registry.New(registryOptions...); err != nil {
		return nil, err
	}

	poolConfig := pool.DefaultConfig()
	if r.config.Pool.BindThreads != nil {
		poolConfig.BindThreads = *r.config.Pool.BindThreads
	}
	schedulerConfig := r.config.schedulerConfig()
	poolConfig.ImmediateSuccessor = schedulerConfig.ImmediateSuccessor
	r.workers = pool.New(poolConfig, r.registry)

	switch r.config.Scheduler.Implementation {
	case "naive":
		r.hostScheduler = naive.New(schedulerConfig, r.registry)
	default:
		var treeOptions []tree.Option
		if r.config.Scheduler.MinQueueThreshold > 0 {
			treeOptions = append(treeOptions, tree.WithMinQueueThreshold(r.config.Scheduler.MinQueueThreshold))
		}
		r.hostScheduler = tree.New(schedulerConfig, r.registry, r.workers, treeOptions...)
	}

	// Device schedulers share the contract; their compute places belong to
	// the corresponding driver, which polls them with its own threads.
	r.deviceScheds = map[place.DeviceType]scheduler.Scheduler{}
	for _, device := range r.devices {
		r.deviceScheds[device] = naive.New(schedulerConfig, r.registry)
	}

	r.poller = transfer.New(transfer.Config{PollingInterval: r.config.Transfer.PollingInterval})

	if r.transport == nil {
		r.outbox = memory.NewQueue[cluster.Message](memory.DefaultConfig())
		r.transport = clustermemory.New(r.clusterNodeIndex, r.clusterNodeCount, r.outbox, r.poller)
	}
	if r.deps == nil {
		r.deps = dependency.NewLocal()
	}

	r.engine = workflow.New(workflow.Config{Debug: r.config.Debug}, r.deps, r.transport, dispatcher{r})
	r.workers.SetScheduler(r.hostScheduler)
	r.workers.SetExecutor(r.engine)
	return r, nil
}

// Registry returns the cpu registry.
func (r *Runtime) Registry() *registry.Service { return r.registry }

// Workers returns the worker pool.
func (r *Runtime) Workers() *pool.Service { return r.workers }

// Scheduler returns the host scheduler.
func (r *Runtime) Scheduler() scheduler.Scheduler { return r.hostScheduler }

// DeviceScheduler returns the scheduler instance of a device class, nil
// when the class is not enabled.
func (r *Runtime) DeviceScheduler(device place.DeviceType) scheduler.Scheduler {
	return r.deviceScheds[device]
}

// Engine returns the workflow engine.
func (r *Runtime) Engine() *workflow.Engine { return r.engine }

// Poller returns the transfer-completion service.
func (r *Runtime) Poller() *transfer.Service { return r.poller }

// Transport returns the cluster transport.
func (r *Runtime) Transport() cluster.Transport { return r.transport }

// Outbox returns the in-process transport's message queue, nil when a
// custom transport is installed.
func (r *Runtime) Outbox() messaging.Queue[cluster.Message] { return r.outbox }

// Dependencies returns the dependency subsystem.
func (r *Runtime) Dependencies() dependency.Subsystem { return r.deps }

// Start launches the workers and the completion poller. Idempotent.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.workers.Initialize(); err != nil {
		return err
	}
	r.poller.RegisterDataTransferCompletion()
	return nil
}

// Shutdown tears the runtime down in reverse of the bring-up order: the
// completion poller first, then the worker drain protocol.
func (r *Runtime) Shutdown() {
	if !r.started.CompareAndSwap(true, false) {
		return
	}
	r.poller.UnregisterDataTransferCompletion()
	r.workers.Shutdown()
}

// AddReadyTask admits a task whose dependencies are satisfied, routing it
// to the scheduler of its device class. cpu is the submitter's compute
// place (nil for foreign threads); when the scheduler hands back an idle
// compute place the matching worker is resumed.
func (r *Runtime) AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint) {
	sched := r.hostScheduler
	device := t.TargetDeviceType()
	if device != place.HostDevice && device != place.ClusterDevice {
		if deviceSched, ok := r.deviceScheds[device]; ok {
			sched = deviceSched
		}
	}
	if idle := sched.AddReadyTask(t, cpu, hint); idle != nil {
		r.workers.ResumeIdle(idle)
	}
}

// Submit admits a ready task from outside the fleet.
func (r *Runtime) Submit(t *task.Task) {
	r.AddReadyTask(t, nil, scheduler.NoHint)
}

// TaskGetsUnblocked re-admits a task that left a blocking condition.
func (r *Runtime) TaskGetsUnblocked(t *task.Task, cpu *registry.CPU) {
	r.hostScheduler.TaskGetsUnblocked(t, cpu)
}

// dispatcher adapts the runtime for the workflow engine's requeue path.
type dispatcher struct {
	runtime *Runtime
}

func (d dispatcher) AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint) {
	d.runtime.AddReadyTask(t, cpu, hint)
}
