package taskor

import (
	"time"

	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/dependency"
)

// Option mutates the runtime at construction time.
type Option func(r *Runtime)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(r *Runtime) { r.config = config }
}

// WithSystemCPUs overrides the admissible cpu set instead of reading the
// process affinity mask; thread binding is disabled alongside since the
// modeled fleet may not match the actual mask.
func WithSystemCPUs(systemCPUs ...int) Option {
	return func(r *Runtime) {
		r.systemCPUs = systemCPUs
		bind := false
		r.config.Pool.BindThreads = &bind
	}
}

// WithNaiveScheduler selects the single-queue reference scheduler.
func WithNaiveScheduler() Option {
	return func(r *Runtime) { r.config.Scheduler.Implementation = "naive" }
}

// WithThreadBinding toggles kernel affinity binding of worker threads.
func WithThreadBinding(bind bool) Option {
	return func(r *Runtime) { r.config.Pool.BindThreads = &bind }
}

// WithTransferPollingInterval tunes the completion poller period.
func WithTransferPollingInterval(interval time.Duration) Option {
	return func(r *Runtime) { r.config.Transfer.PollingInterval = interval }
}

// WithTransport sets the cluster transport.
func WithTransport(transport cluster.Transport) Option {
	return func(r *Runtime) { r.transport = transport }
}

// WithClusterNodes runs the in-process transport as node nodeIndex of a
// nodeCount fleet; messages land on the runtime outbox.
func WithClusterNodes(nodeIndex, nodeCount int) Option {
	return func(r *Runtime) {
		r.clusterNodeIndex = nodeIndex
		r.clusterNodeCount = nodeCount
	}
}

// WithDependencySubsystem sets the dependency implementation.
func WithDependencySubsystem(deps dependency.Subsystem) Option {
	return func(r *Runtime) { r.deps = deps }
}

// WithDevices enables scheduler instances for the listed device classes in
// addition to the host.
func WithDevices(devices ...place.DeviceType) Option {
	return func(r *Runtime) { r.devices = devices }
}

// WithDebug enables the structural debug checks.
func WithDebug(debug bool) Option {
	return func(r *Runtime) { r.config.Debug = debug }
}

// WithMinQueueThreshold floors the tree leaves' overflow threshold.
func WithMinQueueThreshold(threshold int) Option {
	return func(r *Runtime) { r.config.Scheduler.MinQueueThreshold = threshold }
}
