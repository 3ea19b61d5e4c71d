package pool

import (
	"sync"

	"github.com/viant/taskor/instrument"
	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
)

// Worker is a long-lived execution context bound to exactly one cpu at any
// moment. Parking uses a counting signal under the worker's own condition so
// a resume that arrives before the park (pre-signaling) is never lost.
type Worker struct {
	index int32
	tid   int

	cpu *registry.CPU
	// cpuToBeResumedOn is set by the resumer before signaling; on wake the
	// worker adopts it as its cpu. This is how a worker migrates between
	// cpus without re-creating the thread.
	cpuToBeResumedOn *registry.CPU

	mu      sync.Mutex
	cond    *sync.Cond
	pending int

	mustShutdown bool

	current *task.Task

	instrumentationID instrument.ThreadID

	// done is closed when the worker goroutine exits; joining is a receive.
	done chan struct{}
}

func newWorker(index int32, cpu *registry.CPU) *Worker {
	w := &Worker{
		index: index,
		cpu:   cpu,
		done:  make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Index returns the worker's index in the pool.
func (w *Worker) Index() int32 { return w.index }

// CPU returns the cpu the worker is currently bound to.
func (w *Worker) CPU() *registry.CPU { return w.cpu }

// Task returns the task the worker is currently executing, nil when none.
func (w *Worker) Task() *task.Task { return w.current }

// suspend parks the calling worker until a peer resumes it.
func (w *Worker) suspend() {
	w.mu.Lock()
	for w.pending == 0 {
		w.cond.Wait()
	}
	w.pending--
	w.mu.Unlock()
}

// resume unparks the worker; callable before the worker actually parked.
func (w *Worker) resume() {
	w.mu.Lock()
	w.pending++
	w.cond.Signal()
	w.mu.Unlock()
}

// signalShutdown tells the worker to exit on its next wake-up.
func (w *Worker) signalShutdown() {
	w.mu.Lock()
	w.mustShutdown = true
	w.mu.Unlock()
}

func (w *Worker) shutdownSignaled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mustShutdown
}

// adoptResumeCPU moves the worker onto the cpu a peer resumed it on.
func (w *Worker) adoptResumeCPU() {
	if w.cpuToBeResumedOn != nil {
		w.cpu = w.cpuToBeResumedOn
		w.cpuToBeResumedOn = nil
	}
}
