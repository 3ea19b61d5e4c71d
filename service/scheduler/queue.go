package scheduler

import (
	"github.com/viant/taskor/model/task"
)

// TaskQueue is the backing ready queue shared by the naive scheduler and the
// tree leaves. It honors the FIFO/LIFO policy and, when enabled, keeps tasks
// ordered by descending priority. Not safe for concurrent use; callers hold
// their own lock.
type TaskQueue struct {
	policy   Policy
	priority bool
	tasks    []*task.Task
}

// NewTaskQueue creates a queue for the given policy.
func NewTaskQueue(policy Policy, priority bool) *TaskQueue {
	return &TaskQueue{policy: policy, priority: priority}
}

// Add inserts a task and returns the resulting queue size.
func (q *TaskQueue) Add(t *task.Task) int {
	if !q.priority {
		q.tasks = append(q.tasks, t)
		return len(q.tasks)
	}
	index := len(q.tasks)
	for i, queued := range q.tasks {
		if q.before(t, queued) {
			index = i
			break
		}
	}
	q.tasks = append(q.tasks, nil)
	copy(q.tasks[index+1:], q.tasks[index:])
	q.tasks[index] = t
	return len(q.tasks)
}

// before reports whether t must run ahead of queued. Among equal priorities
// FIFO preserves arrival order and LIFO reverses it.
func (q *TaskQueue) before(t, queued *task.Task) bool {
	if q.policy == LIFO {
		return t.Priority() >= queued.Priority()
	}
	return t.Priority() > queued.Priority()
}

// AddBatch inserts every task of the batch.
func (q *TaskQueue) AddBatch(batch []*task.Task) int {
	for _, t := range batch {
		q.Add(t)
	}
	return len(q.tasks)
}

// Get removes and returns the next task, nil when empty.
func (q *TaskQueue) Get() *task.Task {
	if len(q.tasks) == 0 {
		return nil
	}
	if q.policy == LIFO && !q.priority {
		t := q.tasks[len(q.tasks)-1]
		q.tasks = q.tasks[:len(q.tasks)-1]
		return t
	}
	t := q.tasks[0]
	copy(q.tasks, q.tasks[1:])
	q.tasks = q.tasks[:len(q.tasks)-1]
	return t
}

// Batch removes up to max tasks from the tail of the queue, preserving their
// relative order; max < 0 drains the queue. Under FIFO, and whenever priority
// ordering is on, the tail holds the tasks Get would serve last; under LIFO
// without priority it holds the ones Get serves next.
func (q *TaskQueue) Batch(max int) []*task.Task {
	if max < 0 || max > len(q.tasks) {
		max = len(q.tasks)
	}
	if max == 0 {
		return nil
	}
	start := len(q.tasks) - max
	batch := make([]*task.Task, max)
	copy(batch, q.tasks[start:])
	q.tasks = q.tasks[:start]
	return batch
}

// Size returns the number of queued tasks.
func (q *TaskQueue) Size() int { return len(q.tasks) }
