package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/cluster"
	"github.com/viant/taskor/service/messaging/memory"
	"github.com/viant/taskor/service/transfer"
)

type fetchProbe struct {
	region   access.Region
	source   *place.MemoryPlace
	target   *place.MemoryPlace
	released chan struct{}
}

func (p *fetchProbe) NumFragments() int                     { return 1 }
func (p *fetchProbe) SourceMemoryPlace() *place.MemoryPlace { return p.source }
func (p *fetchProbe) TargetMemoryPlace() *place.MemoryPlace { return p.target }
func (p *fetchProbe) Region() access.Region                 { return p.region }
func (p *fetchProbe) ReleaseSuccessors()                    { close(p.released) }

func TestFetchVectorCompletesThroughPoller(t *testing.T) {
	poller := transfer.New(transfer.Config{PollingInterval: 100 * time.Microsecond})
	poller.RegisterDataTransferCompletion()
	defer poller.UnregisterDataTransferCompletion()

	transport := New(0, 2, nil, poller)
	require.True(t, transport.InClusterMode())

	source := place.NewMemoryPlace(1, place.ClusterDevice)
	probe := &fetchProbe{
		region:   access.Region{Start: 0x1000, Length: 64},
		source:   source,
		target:   transport.CurrentMemoryNode(),
		released: make(chan struct{}),
	}
	transport.FetchVector(1, []cluster.Fetchable{probe}, source)

	select {
	case <-probe.released:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch completion never released the copy step")
	}
}

func TestSingleNodeIsNotClusterMode(t *testing.T) {
	transport := New(0, 1, nil, transfer.New(transfer.DefaultConfig()))
	assert.False(t, transport.InClusterMode())
	assert.Equal(t, 0, transport.CurrentMemoryNode().Index)
}

func TestMessagesLandOnOutbox(t *testing.T) {
	outbox := memory.NewQueue[cluster.Message](memory.DefaultConfig())
	transport := New(0, 2, outbox, transfer.New(transfer.DefaultConfig()))

	remote := task.New(nil, task.WithClusterContext(&task.ClusterContext{OffloaderNode: 1, RemoteID: "r1"}))
	ctx := context.Background()

	require.NoError(t, transport.NotifyTaskFinished(ctx, remote))
	require.NoError(t, transport.NotifyRelease(ctx, remote, access.Region{Start: 0x2000, Length: 8}))
	require.NoError(t, transport.OffloadTask(ctx, remote))
	assert.Equal(t, 3, outbox.Size())

	message, err := outbox.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, cluster.MessageTaskFinished, message.T().Type)
	assert.Equal(t, remote.ID(), message.T().TaskID)
	assert.Equal(t, 1, message.T().Node)
	assert.NotEmpty(t, message.T().ID)
	assert.False(t, message.T().CreatedAt.IsZero())
	require.NoError(t, message.Ack())
}
