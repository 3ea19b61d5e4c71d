package scheduler

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
)

// Policy selects the dequeue order of ready queues.
type Policy int

const (
	// FIFO runs tasks in submission order.
	FIFO Policy = iota
	// LIFO runs the most recently submitted task first.
	LIFO
)

// ParsePolicy maps the NANOS6_SCHEDULING_POLICY value onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(value) {
	case "", "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	}
	return FIFO, fmt.Errorf("unknown scheduling policy %q", value)
}

// Hint tells the scheduler where a ready task comes from so it can bias
// placement.
type Hint int

const (
	// NoHint carries no placement information.
	NoHint Hint = iota
	// ChildTaskHint marks a task submitted by its parent on this cpu.
	ChildTaskHint
	// SiblingTaskHint marks a task made ready by a finishing sibling.
	SiblingTaskHint
	// UnblockedTaskHint marks a task returning from a blocking condition.
	UnblockedTaskHint
)

// Environment variable names; values are read once at construction.
const (
	EnvSchedulingPolicy   = "NANOS6_SCHEDULING_POLICY"
	EnvImmediateSuccessor = "NANOS6_IMMEDIATE_SUCCESSOR"
	EnvPriority           = "NANOS6_PRIORITY"
	EnvPollingIterations  = "NANOS6_SCHEDULER_POLLING_ITER"
)

// Config carries the scheduling configuration shared by all scheduler
// implementations.
type Config struct {
	Policy             Policy
	ImmediateSuccessor bool
	Priority           bool
	// PollingIterations is the leaf busy-wait budget before parking.
	PollingIterations int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Policy:             FIFO,
		ImmediateSuccessor: true,
		Priority:           true,
		PollingIterations:  100000,
	}
}

// ConfigFromEnv builds a Config from the NANOS6_* environment variables. A
// malformed value is a configuration error.
func ConfigFromEnv() (Config, error) {
	config := DefaultConfig()
	policy, err := ParsePolicy(os.Getenv(EnvSchedulingPolicy))
	if err != nil {
		return config, err
	}
	config.Policy = policy
	if value := os.Getenv(EnvImmediateSuccessor); value != "" {
		if value != "0" && value != "1" {
			return config, fmt.Errorf("invalid %v value %q", EnvImmediateSuccessor, value)
		}
		config.ImmediateSuccessor = value == "1"
	}
	if value := os.Getenv(EnvPriority); value != "" {
		if value != "0" && value != "1" {
			return config, fmt.Errorf("invalid %v value %q", EnvPriority, value)
		}
		config.Priority = value == "1"
	}
	if value := os.Getenv(EnvPollingIterations); value != "" {
		iterations, err := strconv.Atoi(value)
		if err != nil || iterations <= 0 {
			return config, fmt.Errorf("invalid %v value %q", EnvPollingIterations, value)
		}
		config.PollingIterations = iterations
	}
	return config, nil
}

// Resumer wakes parked workers; the worker pool implements it. It is an
// interface here so scheduler implementations never depend on the pool.
type Resumer interface {
	// ResumeIdle wakes one parked worker on the given cpu.
	ResumeIdle(cpu *registry.CPU)
}

// Scheduler admits ready tasks and hands them to workers. Implementations:
// the naive single-queue scheduler and the hierarchical tree scheduler.
type Scheduler interface {
	// AddReadyTask admits a task whose dependencies are satisfied. cpu is
	// the submitting compute place, nil for foreign threads. When the
	// scheduler does not wake a worker itself it returns an idle compute
	// place the caller must resume; nil otherwise.
	AddReadyTask(t *task.Task, cpu *registry.CPU, hint Hint) *registry.CPU

	// TaskGetsUnblocked re-admits a previously blocked task.
	TaskGetsUnblocked(t *task.Task, cpu *registry.CPU)

	// GetReadyTask returns the next task for the cpu, nil when the cpu
	// should park.
	GetReadyTask(cpu *registry.CPU) *task.Task

	// GetIdleComputePlace returns an idle cpu, nil when none (unless force).
	GetIdleComputePlace(force bool) *registry.CPU

	// Disable drains the cpu's scheduler state into the rest of the fleet.
	Disable(cpu *registry.CPU)

	// Enable reverses Disable.
	Enable(cpu *registry.CPU)
}
