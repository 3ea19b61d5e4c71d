package naive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

func newFixture(t *testing.T, cpus int) (*Scheduler, *registry.Service) {
	systemCPUs := make([]int, cpus)
	for i := range systemCPUs {
		systemCPUs[i] = i
	}
	reg, err := registry.New(registry.WithSystemCPUs(systemCPUs...))
	require.NoError(t, err)
	return New(scheduler.DefaultConfig(), reg), reg
}

func TestRoundTrip(t *testing.T) {
	s, reg := newFixture(t, 2)
	submitted := task.New(nil, task.WithLabel("only"))
	assert.Nil(t, s.AddReadyTask(submitted, nil, scheduler.NoHint))

	// polling from every cpu yields the task exactly once
	var got []*task.Task
	for _, cpu := range reg.CPUs() {
		if polled := s.GetReadyTask(cpu); polled != nil {
			got = append(got, polled)
		}
	}
	require.Len(t, got, 1)
	assert.Same(t, submitted, got[0])

	// further polls return nil
	for _, cpu := range reg.CPUs() {
		assert.Nil(t, s.GetReadyTask(cpu))
	}
}

func TestUnblockedPrecedence(t *testing.T) {
	s, reg := newFixture(t, 1)
	cpu := reg.CPU(0)

	ready := task.New(nil, task.WithLabel("ready"))
	unblocked := task.New(nil, task.WithLabel("unblocked"))
	s.AddReadyTask(ready, cpu, scheduler.ChildTaskHint)
	s.TaskGetsUnblocked(unblocked, cpu)

	assert.Same(t, unblocked, s.GetReadyTask(cpu))
	assert.Same(t, ready, s.GetReadyTask(cpu))
}

func TestIdleCPUHandOff(t *testing.T) {
	s, reg := newFixture(t, 2)
	cpu := reg.CPU(0)

	// the cpu polls dry and parks
	require.Nil(t, s.GetReadyTask(cpu))
	assert.True(t, reg.IsIdle(cpu))

	// the next submission pops it for the caller to resume
	idle := s.AddReadyTask(task.New(nil), nil, scheduler.NoHint)
	require.NotNil(t, idle)
	assert.Same(t, cpu, idle)
	assert.False(t, reg.IsIdle(cpu))

	// nobody else is idle
	assert.Nil(t, s.AddReadyTask(task.New(nil), nil, scheduler.NoHint))
}

func TestGetIdleComputePlace(t *testing.T) {
	s, reg := newFixture(t, 2)
	assert.Nil(t, s.GetIdleComputePlace(false))

	require.Nil(t, s.GetReadyTask(reg.CPU(1)))
	idle := s.GetIdleComputePlace(false)
	require.NotNil(t, idle)
	assert.Equal(t, 1, idle.VirtualID())
}

func TestDisableForgetsIdleRecord(t *testing.T) {
	s, reg := newFixture(t, 2)
	cpu := reg.CPU(0)
	require.Nil(t, s.GetReadyTask(cpu))
	require.True(t, reg.IsIdle(cpu))

	s.Disable(cpu)
	assert.False(t, reg.IsIdle(cpu))
	assert.Nil(t, s.GetIdleComputePlace(false))
}
