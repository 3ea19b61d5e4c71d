package cluster

import (
	"context"
	"time"

	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
)

// MessageType discriminates node-to-node messages.
type MessageType string

const (
	// MessageTaskNew offloads a task to a remote node.
	MessageTaskNew MessageType = "taskNew"
	// MessageTaskFinished reports a remote task completed. It must be
	// delivered before any satisfiability derived from the task's accesses.
	MessageTaskFinished MessageType = "taskFinished"
	// MessageRelease releases a remote data access region.
	MessageRelease MessageType = "release"
)

// Message is one unit on the cluster wire.
type Message struct {
	ID        string
	Type      MessageType
	TaskID    string
	Node      int
	Region    access.Region
	CreatedAt time.Time
}

// Fetchable is the slice of a cluster data-copy step the transport needs to
// batch fetches: fragment accounting plus the completion hand-off.
type Fetchable interface {
	NumFragments() int
	SourceMemoryPlace() *place.MemoryPlace
	TargetMemoryPlace() *place.MemoryPlace
	Region() access.Region

	// ReleaseSuccessors advances the owning workflow once the fetch landed.
	ReleaseSuccessors()
}

// TransferRegistrar accepts in-flight transfers for completion polling. The
// transfer-completion service implements it.
type TransferRegistrar interface {
	AddPendingDataTransfer(dt *DataTransfer)
}

// Transport is the contract the runtime core consumes from the cluster
// message layer.
type Transport interface {
	// CurrentMemoryNode returns the memory place of this node.
	CurrentMemoryNode() *place.MemoryPlace

	// InClusterMode reports whether more than one node participates.
	InClusterMode() bool

	// FetchVector requests all fragments of the grouped copy steps from a
	// single source node in one round-trip. Completion is reported through
	// the transfer-completion service.
	FetchVector(totalFragments int, copies []Fetchable, source *place.MemoryPlace)

	// NotifyTaskFinished sends the task-finished message for a remote task.
	NotifyTaskFinished(ctx context.Context, t *task.Task) error

	// NotifyRelease sends the release message for one access region of a
	// remote task.
	NotifyRelease(ctx context.Context, t *task.Task, region access.Region) error

	// OffloadTask sends a task for execution on a remote node.
	OffloadTask(ctx context.Context, t *task.Task) error
}
