package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStateTransitions(t *testing.T) {
	disposed := 0
	aTask := New(nil, WithLabel("t"), WithDisposeFunc(func(*Task) { disposed++ }))

	assert.False(t, aTask.HasFinished())
	assert.True(t, aTask.MarkAsFinished(nil))
	assert.True(t, aTask.HasFinished())

	assert.True(t, aTask.MarkAsReleased())
	aTask.Dispose()
	assert.Equal(t, 1, disposed)
}

func TestTaskDelayedRelease(t *testing.T) {
	aTask := New(nil, WithWait())
	aTask.AddChild()

	// wait clause with a live child: the release is delayed
	assert.False(t, aTask.MarkAsFinished(nil))
	assert.True(t, aTask.MustDelayRelease())
	assert.True(t, aTask.IsBlocked())

	// the child finishes and drops its disposal reference
	assert.Equal(t, int32(0), aTask.FinishChild())
	assert.False(t, aTask.MarkAsReleased())

	aTask.CompleteDelayedRelease()
	aTask.MarkAsUnblocked()
	assert.False(t, aTask.MustDelayRelease())
	assert.False(t, aTask.IsBlocked())

	assert.True(t, aTask.MarkAsReleased())
}

func TestTaskWithoutWaitIgnoresChildren(t *testing.T) {
	aTask := New(nil)
	aTask.AddChild()
	assert.True(t, aTask.MarkAsFinished(nil))
	assert.False(t, aTask.MustDelayRelease())
}

func TestTaskWorkflowBinding(t *testing.T) {
	aTask := New(nil)
	assert.Nil(t, aTask.GetWorkflow())
	assert.Nil(t, aTask.GetExecutionStep())

	aTask.SetSuccessor(New(nil))
	assert.NotNil(t, aTask.Successor())
}
