package taskor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/service/scheduler"
)

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv(scheduler.EnvSchedulingPolicy, "LIFO")
	t.Setenv(scheduler.EnvImmediateSuccessor, "0")
	t.Setenv(scheduler.EnvPriority, "1")
	t.Setenv(scheduler.EnvPollingIterations, "500")

	config, err := DefaultConfig()
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	resolved := config.schedulerConfig()
	assert.Equal(t, scheduler.LIFO, resolved.Policy)
	assert.False(t, resolved.ImmediateSuccessor)
	assert.True(t, resolved.Priority)
	assert.Equal(t, 500, resolved.PollingIterations)
}

func TestDefaultConfigRejectsBadPolicy(t *testing.T) {
	t.Setenv(scheduler.EnvSchedulingPolicy, "roundrobin")
	_, err := DefaultConfig()
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TASKOR_POLL_ITER", "250")
	location := filepath.Join(t.TempDir(), "taskor.yaml")
	document := `
scheduler:
  implementation: naive
  policy: lifo
  pollingIterations: ${env.TASKOR_POLL_ITER}
transfer:
  pollingInterval: 1ms
debug: true
`
	require.NoError(t, os.WriteFile(location, []byte(document), 0o644))

	config, err := LoadConfig(context.Background(), location)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, "naive", config.Scheduler.Implementation)
	assert.Equal(t, "lifo", config.Scheduler.Policy)
	assert.Equal(t, 250, config.Scheduler.PollingIterations)
	assert.Equal(t, time.Millisecond, config.Transfer.PollingInterval)
	assert.True(t, config.Debug)
}

func TestValidateRejectsUnknownImplementation(t *testing.T) {
	config := &Config{}
	config.Scheduler.Implementation = "quantum"
	assert.Error(t, config.Validate())
}
