package tree

import (
	"sync"
	"sync/atomic"

	"github.com/viant/taskor/model/task"
	"github.com/viant/taskor/service/registry"
	"github.com/viant/taskor/service/scheduler"
)

// Leaf is the per-CPU scheduler of the tree. The leaf lock serializes the
// queue, the polling slot and the idle flag; no other lock is taken while it
// is held, batches reach the parent only after it is released (leaf to parent
// is the single permitted direction).
type Leaf struct {
	mu sync.Mutex

	queue *scheduler.TaskQueue
	slot  pollingSlot

	idle           atomic.Bool
	queueThreshold atomic.Int64
	rebalance      atomic.Bool

	parent *Node
	cpu    *registry.CPU

	registry *registry.Service
	resumer  scheduler.Resumer

	pollingIterations int
}

func newLeaf(config scheduler.Config, cpu *registry.CPU, parent *Node, reg *registry.Service, resumer scheduler.Resumer, threshold int) *Leaf {
	l := &Leaf{
		queue:             scheduler.NewTaskQueue(config.Policy, config.Priority),
		parent:            parent,
		cpu:               cpu,
		registry:          reg,
		resumer:           resumer,
		pollingIterations: config.PollingIterations,
	}
	l.queueThreshold.Store(int64(threshold))
	parent.setChild(l)
	return l
}

// CPU returns the owning compute place.
func (l *Leaf) CPU() *registry.CPU { return l.cpu }

// QueueSize returns the queued task count; the parent reads it when it
// recomputes the load profile.
func (l *Leaf) QueueSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Size()
}

// QueueThreshold returns the current overflow threshold.
func (l *Leaf) QueueThreshold() int { return int(l.queueThreshold.Load()) }

// IsIdle reports whether the owning cpu is parked.
func (l *Leaf) IsIdle() bool { return l.idle.Load() }

// UpdateQueueThreshold installs a new overflow threshold. A shrinking
// threshold marks the leaf for rebalancing on its next dequeue.
func (l *Leaf) UpdateQueueThreshold(threshold int) {
	if int64(threshold) < l.queueThreshold.Load() {
		l.rebalance.Store(true)
	}
	l.queueThreshold.Store(int64(threshold))
}

// handleQueueOverflowLocked extracts a batch of queueThreshold/2 tasks (at
// least one) and hands it to the parent. Caller holds the leaf lock; it is
// released while the parent takes the batch, because the parent may deliver
// work to waiting leaves (this one included), and re-acquired before return.
func (l *Leaf) handleQueueOverflowLocked() {
	half := int(l.queueThreshold.Load()) / 2
	if half == 0 {
		half = 1
	}
	batch := l.queue.Batch(half)
	if len(batch) > 0 {
		// The queue might have been emptied just a moment ago.
		l.mu.Unlock()
		l.parent.AddTaskBatch(l, batch)
		l.mu.Lock()
	}
}

// AddTask admits one ready task. hasComputePlace marks a submission from a
// worker already bound to this cpu, which bypasses the polling slot; any
// other submitter first tries the slot so an idle cpu can be woken directly.
func (l *Leaf) AddTask(t *task.Task, hasComputePlace bool) {
	if hasComputePlace {
		l.mu.Lock()
		size := l.queue.Add(t)
		if size > int(l.queueThreshold.Load()) {
			l.handleQueueOverflowLocked()
		}
		l.mu.Unlock()
	} else {
		l.mu.Lock()
		landed := l.slot.set(t)
		idle := l.idle.Load()
		if !landed {
			size := l.queue.Add(t)
			if size > int(l.queueThreshold.Load()) {
				l.handleQueueOverflowLocked()
			}
		}
		l.mu.Unlock()

		if landed && idle {
			l.resumer.ResumeIdle(l.cpu)
		}
	}

	// Queue is already balanced.
	l.rebalance.Store(false)
}

// AddTaskBatch receives a batch from the parent. The last task goes to the
// polling slot when it is free; landing there wakes the cpu if it is idle.
func (l *Leaf) AddTaskBatch(batch []*task.Task) {
	if len(batch) == 0 {
		return
	}
	l.mu.Lock()
	last := batch[len(batch)-1]
	landed := l.slot.set(last)
	if landed {
		batch = batch[:len(batch)-1]
	}
	idle := l.idle.Load()
	l.queue.AddBatch(batch)
	l.mu.Unlock()

	if landed && idle {
		l.resumer.ResumeIdle(l.cpu)
	}
}

// GetTask returns the next task for the owning cpu, nil when the cpu should
// park. With doWait the leaf busy-polls its slot for the configured number
// of iterations before giving up.
func (l *Leaf) GetTask(doWait bool) *task.Task {
	if l.idle.CompareAndSwap(true, false) {
		l.registry.UnidleCPU(l.cpu)
	}

	if t := l.slot.get(); t != nil {
		l.rebalance.Store(false)
		return t
	}

	l.mu.Lock()
	t := l.queue.Get()
	size := l.queue.Size()
	l.mu.Unlock()
	if t != nil {
		// A shrunk threshold is reconciled on dequeue, with hysteresis so a
		// queue hovering at the boundary does not thrash.
		if l.rebalance.CompareAndSwap(true, false) {
			threshold := int(l.queueThreshold.Load())
			if size > threshold+threshold/2 {
				l.mu.Lock()
				l.handleQueueOverflowLocked()
				l.mu.Unlock()
			}
		}
		return t
	}

	l.rebalance.Store(false)

	// Ask the parent for work; delivery lands in the slot or the queue.
	l.parent.GetTask(l)

	if doWait {
		for iterations := 0; t == nil && iterations < l.pollingIterations; iterations++ {
			t = l.slot.get()
		}
	} else {
		t = l.slot.get()
	}

	if t == nil {
		l.mu.Lock()
		t = l.slot.get()
		if t == nil {
			l.idle.Store(true)
			l.registry.CPUBecomesIdle(l.cpu)
		}
		l.mu.Unlock()
	}
	return t
}

// Disable drains the queue and the polling slot into the parent and clears
// the idle bit; the cpu is being administratively removed and its tasks must
// not be lost.
func (l *Leaf) Disable() {
	if l.idle.CompareAndSwap(true, false) {
		l.registry.UnidleCPU(l.cpu)
	}

	l.mu.Lock()
	batch := l.queue.Batch(-1)
	l.mu.Unlock()

	// A task may land in the slot before the parent learns the leaf is gone.
	if t := l.slot.get(); t != nil {
		batch = append(batch, t)
	}
	if len(batch) > 0 {
		l.parent.AddTaskBatch(l, batch)
	}
}

// Enable reverses Disable; the leaf resumes with an empty queue.
func (l *Leaf) Enable() {}
