package transfer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taskor/model/access"
	"github.com/viant/taskor/model/place"
	"github.com/viant/taskor/service/cluster"
)

func newTransfer() *cluster.DataTransfer {
	return cluster.NewDataTransfer(
		access.Region{Start: 0x1000, Length: 128},
		place.NewMemoryPlace(1, place.ClusterDevice),
		place.NewMemoryPlace(0, place.ClusterDevice),
	)
}

func TestCompletionFiresContinuationOnce(t *testing.T) {
	service := New(Config{PollingInterval: 100 * time.Microsecond})
	service.RegisterDataTransferCompletion()
	defer service.UnregisterDataTransferCompletion()

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})

	dt := newTransfer()
	dt.AddCompletionCallback(func() {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})
	service.AddPendingDataTransfer(dt)
	assert.Equal(t, 1, service.PendingCount())

	dt.MarkCompleted()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never fired")
	}

	// give the poller a few more ticks: the continuation must not refire
	time.Sleep(5 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, fired)
	mu.Unlock()
	assert.Equal(t, 0, service.PendingCount())
}

func TestIncompleteTransfersStayPending(t *testing.T) {
	service := New(Config{PollingInterval: 100 * time.Microsecond})
	service.RegisterDataTransferCompletion()

	dt := newTransfer()
	service.AddPendingDataTransfer(dt)

	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, 1, service.PendingCount())

	// complete it now: unregister drains whatever completed by then
	dt.MarkCompleted()
	service.UnregisterDataTransferCompletion()
	assert.Equal(t, 0, service.PendingCount())
}

func TestRegisterIsIdempotent(t *testing.T) {
	service := New(DefaultConfig())
	service.RegisterDataTransferCompletion()
	service.RegisterDataTransferCompletion()
	service.UnregisterDataTransferCompletion()
	// a second unregister is a no-op as well
	service.UnregisterDataTransferCompletion()
}

func TestMultipleCompletionsPerIteration(t *testing.T) {
	service := New(Config{PollingInterval: 100 * time.Microsecond})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		dt := newTransfer()
		wg.Add(1)
		dt.AddCompletionCallback(wg.Done)
		service.AddPendingDataTransfer(dt)
		dt.MarkCompleted()
	}
	service.RegisterDataTransferCompletion()
	defer service.UnregisterDataTransferCompletion()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuations never fired")
	}
	assert.Equal(t, 0, service.PendingCount())
}

func TestDataTransferAccessors(t *testing.T) {
	dt := newTransfer()
	require.NotEmpty(t, dt.ID())
	assert.Equal(t, access.Region{Start: 0x1000, Length: 128}, dt.Region())
	assert.False(t, dt.Completed())
	dt.MarkCompleted()
	assert.True(t, dt.Completed())
}
