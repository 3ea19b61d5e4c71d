package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/taskor/model/task"
)

func labels(tasks []*task.Task) []string {
	var result []string
	for _, t := range tasks {
		result = append(result, t.Label())
	}
	return result
}

func drain(q *TaskQueue) []string {
	var result []string
	for t := q.Get(); t != nil; t = q.Get() {
		result = append(result, t.Label())
	}
	return result
}

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue(FIFO, false)
	for _, label := range []string{"a", "b", "c"} {
		q.Add(task.New(nil, task.WithLabel(label)))
	}
	assert.Equal(t, 3, q.Size())
	assert.Equal(t, []string{"a", "b", "c"}, drain(q))
}

func TestTaskQueueLIFO(t *testing.T) {
	q := NewTaskQueue(LIFO, false)
	for _, label := range []string{"a", "b", "c"} {
		q.Add(task.New(nil, task.WithLabel(label)))
	}
	assert.Equal(t, []string{"c", "b", "a"}, drain(q))
}

func TestTaskQueuePriority(t *testing.T) {
	q := NewTaskQueue(FIFO, true)
	q.Add(task.New(nil, task.WithLabel("low"), task.WithPriority(1)))
	q.Add(task.New(nil, task.WithLabel("high"), task.WithPriority(10)))
	q.Add(task.New(nil, task.WithLabel("low2"), task.WithPriority(1)))
	assert.Equal(t, []string{"high", "low", "low2"}, drain(q))
}

func TestTaskQueueBatch(t *testing.T) {
	q := NewTaskQueue(FIFO, false)
	for _, label := range []string{"a", "b", "c", "d", "e"} {
		q.Add(task.New(nil, task.WithLabel(label)))
	}

	batch := q.Batch(2)
	assert.Equal(t, []string{"d", "e"}, labels(batch))
	assert.Equal(t, 3, q.Size())

	rest := q.Batch(-1)
	assert.Equal(t, []string{"a", "b", "c"}, labels(rest))
	assert.Equal(t, 0, q.Size())
	assert.Nil(t, q.Batch(3))
}
