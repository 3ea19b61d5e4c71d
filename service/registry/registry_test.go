package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerationFromExplicitMask(t *testing.T) {
	service, err := New(WithSystemCPUs(2, 5, 7))
	require.NoError(t, err)

	assert.Equal(t, 3, service.TotalCPUs())
	for i, systemID := range []int{2, 5, 7} {
		cpu := service.CPU(i)
		require.NotNil(t, cpu)
		assert.Equal(t, i, cpu.VirtualID())
		assert.Equal(t, systemID, cpu.SystemID())
		// all cpus start non-idle with no worker launched yet
		assert.False(t, service.IsIdle(cpu))
		assert.Equal(t, None, cpu.BoundWorker())
		assert.Equal(t, None, cpu.ShutdownController())
	}
	assert.Nil(t, service.CPU(3))
	assert.False(t, service.FinishedInitialization())
}

func TestProcessAffinityEnumeration(t *testing.T) {
	service, err := New()
	require.NoError(t, err)
	assert.Greater(t, service.TotalCPUs(), 0)
}

func TestIdleSet(t *testing.T) {
	service, err := New(WithSystemCPUs(0, 1))
	require.NoError(t, err)
	cpu0, cpu1 := service.CPU(0), service.CPU(1)

	assert.Nil(t, service.GetIdleCPU())

	service.CPUBecomesIdle(cpu1)
	assert.Equal(t, 1, service.IdleCount())
	assert.True(t, service.IsIdle(cpu1))

	// idempotent
	service.CPUBecomesIdle(cpu1)
	assert.Equal(t, 1, service.IdleCount())

	popped := service.GetIdleCPU()
	assert.Same(t, cpu1, popped)
	assert.Equal(t, 0, service.IdleCount())

	service.CPUBecomesIdle(cpu0)
	service.UnidleCPU(cpu0)
	assert.Equal(t, 0, service.IdleCount())
	assert.Nil(t, service.GetIdleCPU())
}

func TestEmptyMaskIsRejected(t *testing.T) {
	_, err := New(WithSystemCPUs())
	assert.Error(t, err)
}
