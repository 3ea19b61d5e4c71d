package memory

import (
	"context"

	"github.com/viant/taskor/internal/clock"
	"github.com/viant/taskor/internal/idgen"
	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/messaging"
)

// Transport is an in-process cluster transport. It models this node's
// position in a fleet of nodeCount peers: outgoing messages land on the
// outbox queue and fetches complete instantly through the transfer
// completion service. With nodeCount 1 it degenerates to the plain local
// (non-cluster) transport.
type Transport struct {
	node      *place.MemoryPlace
	nodeCount int
	outbox    messaging.Queue[cluster.Message]
	registrar cluster.TransferRegistrar
}

// New creates a transport for node nodeIndex out of nodeCount.
func New(nodeIndex, nodeCount int, outbox messaging.Queue[cluster.Message], registrar cluster.TransferRegistrar) *Transport {
	return &Transport{
		node:      place.NewMemoryPlace(nodeIndex, place.ClusterDevice),
		nodeCount: nodeCount,
		outbox:    outbox,
		registrar: registrar,
	}
}

// CurrentMemoryNode returns this node's memory place.
func (t *Transport) CurrentMemoryNode() *place.MemoryPlace { return t.node }

// InClusterMode reports whether peers exist.
func (t *Transport) InClusterMode() bool { return t.nodeCount > 1 }

// FetchVector satisfies the grouped fetch in one simulated round-trip: a
// single DataTransfer covers the whole group and releases every copy step
// when the completion service observes it.
func (t *Transport) FetchVector(totalFragments int, copies []cluster.Fetchable, source *place.MemoryPlace) {
	if len(copies) == 0 {
		return
	}
	dt := cluster.NewDataTransfer(copies[0].Region(), source, t.node)
	for _, item := range copies {
		released := item
		dt.AddCompletionCallback(func() {
			released.ReleaseSuccessors()
		})
	}
	t.registrar.AddPendingDataTransfer(dt)
	// No bytes move in process; the transfer is complete as soon as it is
	// registered. The continuations still run on the poller thread.
	dt.MarkCompleted()
}

// NotifyTaskFinished publishes the task-finished message.
func (t *Transport) NotifyTaskFinished(ctx context.Context, aTask *task.Task) error {
	node := 0
	if clusterContext := aTask.GetClusterContext(); clusterContext != nil {
		node = clusterContext.OffloaderNode
	}
	return t.publish(ctx, cluster.Message{
		Type:   cluster.MessageTaskFinished,
		TaskID: aTask.ID(),
		Node:   node,
	})
}

// NotifyRelease publishes a region release message.
func (t *Transport) NotifyRelease(ctx context.Context, aTask *task.Task, region access.Region) error {
	node := 0
	if clusterContext := aTask.GetClusterContext(); clusterContext != nil {
		node = clusterContext.OffloaderNode
	}
	return t.publish(ctx, cluster.Message{
		Type:   cluster.MessageRelease,
		TaskID: aTask.ID(),
		Node:   node,
		Region: region,
	})
}

// OffloadTask publishes a task-new message.
func (t *Transport) OffloadTask(ctx context.Context, aTask *task.Task) error {
	return t.publish(ctx, cluster.Message{
		Type:   cluster.MessageTaskNew,
		TaskID: aTask.ID(),
		Node:   t.node.Index,
	})
}

func (t *Transport) publish(ctx context.Context, message cluster.Message) error {
	if t.outbox == nil {
		return nil
	}
	message.ID = idgen.New()
	message.CreatedAt = clock.Now()
	return t.outbox.Publish(ctx, &message)
}

var _ cluster.Transport = (*Transport)(nil)
