package taskor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/scheduler"
)

func testConfig(t *testing.T) *Config {
	config, err := DefaultConfig()
	require.NoError(t, err)
	// keep the leaf busy-wait short so cpus park quickly in tests
	config.Scheduler.PollingIterations = 256
	return config
}

func TestSingleCPUSingleTask(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)), WithSystemCPUs(0))
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))

	ran := make(chan task.ComputePlace, 1)
	disposed := make(chan struct{})
	rt.Submit(task.New(func(cp task.ComputePlace) { ran <- cp },
		task.WithLabel("only"),
		task.WithDisposeFunc(func(*task.Task) { close(disposed) })))

	select {
	case cp := <-ran:
		assert.Equal(t, 0, cp.VirtualID())
	case <-time.After(10 * time.Second):
		t.Fatal("task never ran")
	}
	select {
	case <-disposed:
	case <-time.After(10 * time.Second):
		t.Fatal("task never finalized")
	}

	rt.Shutdown()
	assert.Equal(t, int64(0), rt.Workers().ShutdownThreads())
	assert.Equal(t, 0, rt.Poller().PendingCount())
}

func TestManyTasksAcrossCPUs(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)), WithSystemCPUs(0, 1))
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))

	const total = 50
	var finished atomic.Int32
	done := make(chan struct{})
	for i := 0; i < total; i++ {
		rt.Submit(task.New(func(task.ComputePlace) {},
			task.WithDisposeFunc(func(*task.Task) {
				if finished.Add(1) == total {
					close(done)
				}
			})))
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("only %d of %d tasks finished", finished.Load(), total)
	}

	rt.Shutdown()
	assert.Equal(t, int64(0), rt.Workers().ShutdownThreads())
}

func TestRuntimeWithNaiveScheduler(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)), WithNaiveScheduler(), WithSystemCPUs(0, 1))
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))

	disposed := make(chan struct{})
	rt.Submit(task.New(func(task.ComputePlace) {},
		task.WithDisposeFunc(func(*task.Task) { close(disposed) })))

	select {
	case <-disposed:
	case <-time.After(10 * time.Second):
		t.Fatal("task never finalized")
	}
	rt.Shutdown()
	assert.Equal(t, int64(0), rt.Workers().ShutdownThreads())
}

func TestUnsupportedDeviceClassesAreFatalAtInit(t *testing.T) {
	_, err := New(WithSystemCPUs(0), WithDevices(place.OpenCLDevice))
	assert.Error(t, err)
	_, err = New(WithSystemCPUs(0), WithDevices(place.FPGADevice))
	assert.Error(t, err)
}

func TestDeviceSchedulerRouting(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)), WithSystemCPUs(0), WithDevices(place.CUDADevice))
	require.NoError(t, err)

	deviceScheduler := rt.DeviceScheduler(place.CUDADevice)
	require.NotNil(t, deviceScheduler)
	assert.Nil(t, rt.DeviceScheduler(place.OpenACCDevice))

	// a cuda task lands on the device scheduler, not the host one
	cudaTask := task.New(nil, task.WithDeviceType(place.CUDADevice))
	rt.AddReadyTask(cudaTask, nil, scheduler.NoHint)
	polled := deviceScheduler.GetReadyTask(rt.Registry().CPU(0))
	assert.Same(t, cudaTask, polled)
}

func TestShutdownIsIdempotent(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)), WithSystemCPUs(0))
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))
	rt.Shutdown()
	rt.Shutdown()
	assert.Equal(t, int64(0), rt.Workers().ShutdownThreads())
}
