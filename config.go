package taskor

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/taskor/internal/envexpr"
	"github.com/viant/taskor/service/scheduler"
)

// Config is a serialisable representation of the runtime configuration. It
// can be populated from YAML (LoadConfig), from the NANOS6_* environment
// variables, or programmatically. The zero value is useful: nested fields
// inherit their package defaults.
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Pool      PoolConfig      `json:"pool" yaml:"pool"`
	Transfer  TransferConfig  `json:"transfer" yaml:"transfer"`
	Debug     bool            `json:"debug" yaml:"debug"`
}

// SchedulerConfig selects the scheduler implementation and policy.
type SchedulerConfig struct {
	// Implementation is "tree" (default) or "naive".
	Implementation string `json:"implementation" yaml:"implementation"`

	// Policy is "fifo" (default) or "lifo".
	Policy string `json:"policy" yaml:"policy"`

	ImmediateSuccessor *bool `json:"immediateSuccessor" yaml:"immediateSuccessor"`
	Priority           *bool `json:"priority" yaml:"priority"`

	// PollingIterations is the leaf busy-wait budget before a cpu parks.
	PollingIterations int `json:"pollingIterations" yaml:"pollingIterations"`

	// MinQueueThreshold floors the per-leaf overflow threshold.
	MinQueueThreshold int `json:"minQueueThreshold" yaml:"minQueueThreshold"`
}

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	// BindThreads pins worker threads with kernel affinity; on by default.
	BindThreads *bool `json:"bindThreads" yaml:"bindThreads"`
}

// TransferConfig tunes the transfer-completion service.
type TransferConfig struct {
	PollingInterval time.Duration `json:"pollingInterval" yaml:"pollingInterval"`
}

// UnmarshalYAML decodes the polling interval from a duration literal such
// as "50us" or "1ms".
func (c *TransferConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PollingInterval string `yaml:"pollingInterval"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.PollingInterval == "" {
		return nil
	}
	interval, err := time.ParseDuration(raw.PollingInterval)
	if err != nil {
		return fmt.Errorf("invalid transfer.pollingInterval: %w", err)
	}
	c.PollingInterval = interval
	return nil
}

// DefaultConfig returns a Config populated from the NANOS6_* environment
// variables on top of the package defaults.
func DefaultConfig() (*Config, error) {
	fromEnv, err := scheduler.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	config := &Config{}
	config.Scheduler.Policy = policyName(fromEnv.Policy)
	config.Scheduler.ImmediateSuccessor = &fromEnv.ImmediateSuccessor
	config.Scheduler.Priority = &fromEnv.Priority
	config.Scheduler.PollingIterations = fromEnv.PollingIterations
	return config, nil
}

// LoadConfig reads a YAML configuration document from the supplied URL
// (file path, s3://, gs://, mem:// - any scheme the afs service handles),
// expanding ${env.KEY} references before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	expanded := envexpr.Expand(string(data))
	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to decode config from %s: %w", URL, err)
	}
	return config, nil
}

// Validate returns an error describing the first invalid setting found, or
// nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Scheduler.Implementation {
	case "", "tree", "naive":
	default:
		return fmt.Errorf("unknown scheduler implementation %q", c.Scheduler.Implementation)
	}
	if _, err := scheduler.ParsePolicy(c.Scheduler.Policy); err != nil {
		return err
	}
	if c.Scheduler.PollingIterations < 0 {
		return fmt.Errorf("scheduler.pollingIterations must be >= 0")
	}
	if c.Transfer.PollingInterval < 0 {
		return fmt.Errorf("transfer.pollingInterval must be >= 0")
	}
	return nil
}

// schedulerConfig resolves the scheduler package configuration.
func (c *Config) schedulerConfig() scheduler.Config {
	config := scheduler.DefaultConfig()
	policy, _ := scheduler.ParsePolicy(c.Scheduler.Policy)
	config.Policy = policy
	if c.Scheduler.ImmediateSuccessor != nil {
		config.ImmediateSuccessor = *c.Scheduler.ImmediateSuccessor
	}
	if c.Scheduler.Priority != nil {
		config.Priority = *c.Scheduler.Priority
	}
	if c.Scheduler.PollingIterations > 0 {
		config.PollingIterations = c.Scheduler.PollingIterations
	}
	return config
}

func policyName(policy scheduler.Policy) string {
	if policy == scheduler.LIFO {
		return "lifo"
	}
	return "fifo"
}
