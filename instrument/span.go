package instrument

import (
	"context"
	"strconv"

	"github.com/viant/taskor/internal/idgen"
	"github.com/viant/taskor/tracing"
)

// SpanSink is an instrumentation backend that records each probe pair as an
// OpenTelemetry span. Install with instrument.Use(instrument.NewSpanSink())
// after tracing.Init; without an initialised provider the spans are no-ops.
type SpanSink struct{}

// NewSpanSink returns the span-recording backend.
func NewSpanSink() *SpanSink { return &SpanSink{} }

func (s *SpanSink) emit(name string, attrs map[string]string) {
	_, span := tracing.StartSpan(context.Background(), name)
	span.WithAttributes(attrs)
	tracing.EndSpan(span, nil)
}

func (s *SpanSink) CreatedThread(virtualCPU int) ThreadID {
	id := ThreadID(idgen.New())
	s.emit("thread.created", map[string]string{
		"thread.id": string(id),
		"cpu":       strconv.Itoa(virtualCPU),
	})
	return id
}

func (s *SpanSink) ThreadHasResumed(id ThreadID, virtualCPU int) {
	s.emit("thread.resumed", map[string]string{
		"thread.id": string(id),
		"cpu":       strconv.Itoa(virtualCPU),
	})
}

func (s *SpanSink) ThreadWillSuspend(id ThreadID, virtualCPU int) {
	s.emit("thread.suspend", map[string]string{
		"thread.id": string(id),
		"cpu":       strconv.Itoa(virtualCPU),
	})
}

func (s *SpanSink) ThreadWillShutdown(id ThreadID) {
	s.emit("thread.shutdown", map[string]string{"thread.id": string(id)})
}

func (s *SpanSink) EnterSchedulerAddTask() {}
func (s *SpanSink) ExitSchedulerAddTask()  { s.emit("scheduler.addTask", nil) }
func (s *SpanSink) EnterSchedulerGetTask() {}
func (s *SpanSink) ExitSchedulerGetTask()  { s.emit("scheduler.getTask", nil) }

func (s *SpanSink) EnterCreateDataCopyStep(bool) {}
func (s *SpanSink) ExitCreateDataCopyStep(isTaskwait bool) {
	s.emit("workflow.createDataCopyStep", map[string]string{
		"taskwait": strconv.FormatBool(isTaskwait),
	})
}

func (s *SpanSink) EnterSetupTaskwaitWorkflow() {}
func (s *SpanSink) ExitSetupTaskwaitWorkflow() {
	s.emit("workflow.setupTaskwait", nil)
}

func (s *SpanSink) EnterUnregisterTaskDataAccesses() {}
func (s *SpanSink) ExitUnregisterTaskDataAccesses() {
	s.emit("dependency.unregisterTaskDataAccesses", nil)
}

func (s *SpanSink) EnterHandleExitTaskwait() {}
func (s *SpanSink) ExitHandleExitTaskwait() {
	s.emit("dependency.handleExitTaskwait", nil)
}

func (s *SpanSink) EnterReleaseTaskwaitFragment() {}
func (s *SpanSink) ExitReleaseTaskwaitFragment() {
	s.emit("dependency.releaseTaskwaitFragment", nil)
}
