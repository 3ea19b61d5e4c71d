package transfer

import (
	"sync"
	"time"

	"github.com/viant/taskor/service/cluster"
)

// Config represents completion service configuration.
type Config struct {
	// PollingInterval is how often pending transfers are probed.
	PollingInterval time.Duration
}

// DefaultConfig returns the default completion service configuration.
func DefaultConfig() Config {
	return Config{
		PollingInterval: 50 * time.Microsecond,
	}
}

// Service advances asynchronous data transfers: it periodically probes every
// pending handle and fires the continuations of the completed ones. The
// continuations run on the poller goroutine with no scheduler or workflow
// lock held.
type Service struct {
	config Config

	mu      sync.Mutex
	pending []*cluster.DataTransfer
	running bool

	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// New creates a completion service.
func New(config Config) *Service {
	if config.PollingInterval <= 0 {
		config.PollingInterval = DefaultConfig().PollingInterval
	}
	return &Service{config: config}
}

// RegisterDataTransferCompletion starts the poller goroutine. Idempotent.
func (s *Service) RegisterDataTransferCompletion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.shutdownCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.poll(s.shutdownCh, s.doneCh)
}

// AddPendingDataTransfer enqueues an in-flight handle for completion
// polling.
func (s *Service) AddPendingDataTransfer(dt *cluster.DataTransfer) {
	if dt == nil {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, dt)
	s.mu.Unlock()
}

// UnregisterDataTransferCompletion stops the poller, drains whatever already
// completed and joins the goroutine.
func (s *Service) UnregisterDataTransferCompletion() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	shutdownCh, doneCh := s.shutdownCh, s.doneCh
	s.mu.Unlock()

	close(shutdownCh)
	<-doneCh
	s.drain()
}

// PendingCount returns the number of transfers still awaiting completion.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) poll(shutdownCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-shutdownCh:
			return
		case <-ticker.C:
			s.drain()
		}
	}
}

// drain removes every completed transfer from the pending set and fires its
// continuations. Removal happens before the callbacks so each transfer fires
// exactly once; the order of continuations within one iteration is
// unspecified.
func (s *Service) drain() {
	s.mu.Lock()
	var completed []*cluster.DataTransfer
	remaining := s.pending[:0]
	for _, dt := range s.pending {
		if dt.Completed() {
			completed = append(completed, dt)
		} else {
			remaining = append(remaining, dt)
		}
	}
	s.pending = remaining
	s.mu.Unlock()

	for _, dt := range completed {
		dt.RunCallbacks()
	}
}
