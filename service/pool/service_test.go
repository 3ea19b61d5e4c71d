package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// stubScheduler hands out queued tasks and reports idle cpus to the
// registry so the pool parks its workers.
type stubScheduler struct {
	mu       sync.Mutex
	tasks    []*task.Task
	registry *registry.Service
}

func (s *stubScheduler) AddReadyTask(t *task.Task, cpu *registry.CPU, hint scheduler.Hint) *registry.CPU {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
	return nil
}

func (s *stubScheduler) TaskGetsUnblocked(t *task.Task, cpu *registry.CPU) {}

func (s *stubScheduler) GetReadyTask(cpu *registry.CPU) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		s.registry.CPUBecomesIdle(cpu)
		return nil
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.registry.UnidleCPU(cpu)
	return t
}

func (s *stubScheduler) GetIdleComputePlace(force bool) *registry.CPU { return nil }
func (s *stubScheduler) Disable(cpu *registry.CPU)                    {}
func (s *stubScheduler) Enable(cpu *registry.CPU)                     {}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []*task.Task
	onCPU    []*registry.CPU
	done     chan struct{}
}

func (e *recordingExecutor) Execute(t *task.Task, cpu *registry.CPU) {
	if body := t.Body(); body != nil {
		body(cpu)
	}
	e.mu.Lock()
	e.executed = append(e.executed, t)
	e.onCPU = append(e.onCPU, cpu)
	e.mu.Unlock()
	select {
	case e.done <- struct{}{}:
	default:
	}
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executed)
}

func (e *recordingExecutor) get(i int) *task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executed[i]
}

func newFixture(t *testing.T, cpus int) (*Service, *stubScheduler, *recordingExecutor, *registry.Service) {
	systemCPUs := make([]int, cpus)
	for i := range systemCPUs {
		systemCPUs[i] = i
	}
	reg, err := registry.New(registry.WithSystemCPUs(systemCPUs...))
	require.NoError(t, err)

	config := DefaultConfig()
	config.BindThreads = false
	service := New(config, reg)
	sched := &stubScheduler{registry: reg}
	executor := &recordingExecutor{done: make(chan struct{}, cpus*4)}
	service.SetScheduler(sched)
	service.SetExecutor(executor)
	return service, sched, executor, reg
}

func TestInitializeAndShutdown(t *testing.T) {
	service, _, _, reg := newFixture(t, 4)
	require.NoError(t, service.Initialize())
	assert.Equal(t, 4, service.TotalThreads())
	assert.True(t, reg.FinishedInitialization())

	service.Shutdown()
	assert.Equal(t, int64(0), service.ShutdownThreads())

	// every worker goroutine has exited
	for _, worker := range service.workers {
		select {
		case <-worker.done:
		default:
			t.Fatalf("worker %d still alive after shutdown", worker.index)
		}
	}
}

func TestExecutesSubmittedTask(t *testing.T) {
	service, sched, executor, _ := newFixture(t, 2)

	executed := make(chan *registry.CPU, 1)
	submitted := task.New(func(cp task.ComputePlace) {
		executed <- cp.(*registry.CPU)
	})
	sched.AddReadyTask(submitted, nil, scheduler.NoHint)

	require.NoError(t, service.Initialize())

	select {
	case cpu := <-executed:
		assert.NotNil(t, cpu)
	case <-time.After(5 * time.Second):
		t.Fatal("task was never executed")
	}

	service.Shutdown()
	assert.Equal(t, 1, executor.count())
}

func TestResumeIdleWakesParkedWorker(t *testing.T) {
	service, sched, executor, reg := newFixture(t, 2)
	require.NoError(t, service.Initialize())

	// wait until the fleet parks
	deadline := time.Now().Add(5 * time.Second)
	for reg.IdleCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 2, reg.IdleCount())

	sched.AddReadyTask(task.New(nil), nil, scheduler.NoHint)
	service.ResumeIdle(reg.CPU(1))

	select {
	case <-executor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("resumed worker never executed the task")
	}

	service.Shutdown()
	assert.Equal(t, int64(0), service.ShutdownThreads())
}

func TestImmediateSuccessorRunsWithoutScheduler(t *testing.T) {
	service, sched, executor, _ := newFixture(t, 1)

	successor := task.New(nil, task.WithLabel("successor"))
	first := task.New(nil, task.WithLabel("first"))
	first.SetSuccessor(successor)
	sched.AddReadyTask(first, nil, scheduler.NoHint)

	require.NoError(t, service.Initialize())

	deadline := time.Now().Add(5 * time.Second)
	for executor.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 2, executor.count())
	assert.Same(t, first, executor.get(0))
	assert.Same(t, successor, executor.get(1))

	service.Shutdown()
}

func TestShutdownAbsorbsStraggler(t *testing.T) {
	service, sched, _, _ := newFixture(t, 4)

	started := make(chan struct{})
	slow := task.New(func(task.ComputePlace) {
		close(started)
		time.Sleep(100 * time.Millisecond)
	})
	sched.AddReadyTask(slow, nil, scheduler.NoHint)

	require.NoError(t, service.Initialize())

	// begin teardown while one worker is still busy and not yet parked
	<-started
	service.Shutdown()

	assert.Equal(t, int64(0), service.ShutdownThreads())
	for _, worker := range service.workers {
		select {
		case <-worker.done:
		default:
			t.Fatalf("worker %d leaked past shutdown", worker.index)
		}
	}
}
