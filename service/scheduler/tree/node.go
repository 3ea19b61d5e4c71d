package tree

import (
	"sync"

	"github.com/viant/taskor/model/task"
)

// Node is an interior scheduler aggregating a set of leaves. It buffers the
// overflow of busy leaves and redistributes it in batches when other leaves
// run dry. Node methods never touch a leaf while holding the node lock:
// decisions are taken under the lock, deliveries happen after it is
// released, which keeps leaf-to-parent the only lock-order direction.
type Node struct {
	mu       sync.Mutex
	queue    []*task.Task
	children []*Leaf
	waiting  []*Leaf

	// minThreshold floors the per-leaf queue threshold so tiny fleets do not
	// degenerate into bouncing every task through the node.
	minThreshold int
}

func newNode(minThreshold int) *Node {
	if minThreshold < 1 {
		minThreshold = 1
	}
	return &Node{minThreshold: minThreshold}
}

func (n *Node) setChild(l *Leaf) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, l)
}

// QueueSize returns the number of buffered tasks.
func (n *Node) QueueSize() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// AddTaskBatch buffers a batch pushed up by an overflowing (or disabled)
// leaf and serves any leaves that were already waiting for work.
func (n *Node) AddTaskBatch(from *Leaf, batch []*task.Task) {
	if len(batch) == 0 {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, batch...)
	deliveries := n.takeDeliveriesLocked()
	n.mu.Unlock()

	for _, delivery := range deliveries {
		delivery.leaf.AddTaskBatch(delivery.batch)
	}
}

// GetTask serves a leaf that ran dry. When the node has buffered tasks the
// leaf receives a batch right away (the leaf is meanwhile busy-polling its
// slot); otherwise the leaf is parked on the waiting list and served by the
// next AddTaskBatch. Either way the load profile changed, so the per-leaf
// thresholds are recomputed.
func (n *Node) GetTask(child *Leaf) {
	n.mu.Lock()
	var batch []*task.Task
	if len(n.queue) > 0 {
		batch = n.takeBatchLocked()
	} else {
		n.waitLocked(child)
	}
	n.mu.Unlock()

	if len(batch) > 0 {
		child.AddTaskBatch(batch)
	}
	n.rebalanceThresholds()
}

type delivery struct {
	leaf  *Leaf
	batch []*task.Task
}

// takeDeliveriesLocked pairs waiting leaves with batches while both last.
func (n *Node) takeDeliveriesLocked() []delivery {
	var deliveries []delivery
	for len(n.waiting) > 0 && len(n.queue) > 0 {
		leaf := n.waiting[0]
		n.waiting = n.waiting[1:]
		deliveries = append(deliveries, delivery{leaf: leaf, batch: n.takeBatchLocked()})
	}
	return deliveries
}

// takeBatchLocked pops the oldest fair share of the buffered tasks.
func (n *Node) takeBatchLocked() []*task.Task {
	share := len(n.queue)
	if count := len(n.children); count > 1 {
		share = len(n.queue) / count
		if share == 0 {
			share = 1
		}
	}
	batch := make([]*task.Task, share)
	copy(batch, n.queue[:share])
	n.queue = append(n.queue[:0], n.queue[share:]...)
	return batch
}

func (n *Node) waitLocked(child *Leaf) {
	for _, waiting := range n.waiting {
		if waiting == child {
			return
		}
	}
	n.waiting = append(n.waiting, child)
}

// rebalanceThresholds recomputes every leaf's queue threshold from the
// fleet load: buffered plus queued tasks divided by the non-idle leaves,
// floored at minThreshold. The formula is monotone in the total load, so
// thresholds only shrink when work actually drains; a shrinking threshold
// flags the leaf for rebalancing.
func (n *Node) rebalanceThresholds() {
	n.mu.Lock()
	buffered := len(n.queue)
	children := make([]*Leaf, len(n.children))
	copy(children, n.children)
	n.mu.Unlock()

	total := buffered
	nonIdle := 0
	for _, leaf := range children {
		total += leaf.QueueSize()
		if !leaf.IsIdle() {
			nonIdle++
		}
	}
	if nonIdle == 0 {
		nonIdle = 1
	}
	threshold := total / nonIdle
	if threshold < n.minThreshold {
		threshold = n.minThreshold
	}
	for _, leaf := range children {
		leaf.UpdateQueueThreshold(threshold)
	}
}
