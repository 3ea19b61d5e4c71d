package cluster

import (
	"sync"
	"sync/atomic"

	"github.com/viant/taskor/internal/idgen"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
)

// DataTransfer is one in-flight asynchronous transfer. The driver marks it
// completed; the transfer-completion service polls Completed and fires the
// callbacks exactly once, outside any scheduler or workflow lock.
type DataTransfer struct {
	id     string
	region access.Region
	source *place.MemoryPlace
	target *place.MemoryPlace

	completed atomic.Bool

	mu        sync.Mutex
	callbacks []func()
}

// NewDataTransfer returns a transfer handle for the given region.
func NewDataTransfer(region access.Region, source, target *place.MemoryPlace) *DataTransfer {
	return &DataTransfer{
		id:     idgen.New(),
		region: region,
		source: source,
		target: target,
	}
}

// ID returns the transfer identifier.
func (d *DataTransfer) ID() string { return d.id }

// Region returns the transferred region.
func (d *DataTransfer) Region() access.Region { return d.region }

// Source returns the node the data comes from.
func (d *DataTransfer) Source() *place.MemoryPlace { return d.source }

// Target returns the node the data lands on.
func (d *DataTransfer) Target() *place.MemoryPlace { return d.target }

// AddCompletionCallback appends a continuation fired after completion.
func (d *DataTransfer) AddCompletionCallback(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, fn)
}

// MarkCompleted flags the transfer as done; the poller picks it up on its
// next iteration.
func (d *DataTransfer) MarkCompleted() {
	d.completed.Store(true)
}

// Completed is the non-blocking completion probe.
func (d *DataTransfer) Completed() bool {
	return d.completed.Load()
}

// RunCallbacks fires the continuations. The caller (the completion service)
// guarantees a single invocation by removing the transfer from its pending
// set first.
func (d *DataTransfer) RunCallbacks() {
	d.mu.Lock()
	callbacks := d.callbacks
	d.callbacks = nil
	d.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}
