package fatal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	var messages []string
	previous := ExitFunc
	ExitFunc = func(message string) { messages = append(messages, message) }
	t.Cleanup(func() { ExitFunc = previous })
	return &messages
}

func TestHandle(t *testing.T) {
	messages := capture(t)

	Handle(nil, " never reported")
	assert.Empty(t, *messages)

	Handle(errors.New("bind failed"), " when binding worker thread ", 42, " to cpu ", 3)
	assert.Equal(t, []string{"fatal: bind failed when binding worker thread 42 to cpu 3"}, *messages)
}

func TestFailIf(t *testing.T) {
	messages := capture(t)

	FailIf(false, "not reported")
	assert.Empty(t, *messages)

	FailIf(true, "shutdown finished with %d workers unaccounted", 2)
	assert.Equal(t, []string{"fatal: shutdown finished with 2 workers unaccounted"}, *messages)
}
