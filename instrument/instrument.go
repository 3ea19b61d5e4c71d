package instrument

import (
	"sync/atomic"

	"github.com/viant/taskor/internal/idgen"
)

// ThreadID identifies a worker thread to the instrumentation backend.
type ThreadID string

// Sink receives the runtime probes. Every method may be called from any
// worker thread concurrently; implementations must be safe and cheap. The
// default sink discards everything so the core links without a backend.
type Sink interface {
	CreatedThread(virtualCPU int) ThreadID
	ThreadHasResumed(id ThreadID, virtualCPU int)
	ThreadWillSuspend(id ThreadID, virtualCPU int)
	ThreadWillShutdown(id ThreadID)

	EnterSchedulerAddTask()
	ExitSchedulerAddTask()
	EnterSchedulerGetTask()
	ExitSchedulerGetTask()

	EnterCreateDataCopyStep(isTaskwait bool)
	ExitCreateDataCopyStep(isTaskwait bool)
	EnterSetupTaskwaitWorkflow()
	ExitSetupTaskwaitWorkflow()

	EnterUnregisterTaskDataAccesses()
	ExitUnregisterTaskDataAccesses()
	EnterHandleExitTaskwait()
	ExitHandleExitTaskwait()
	EnterReleaseTaskwaitFragment()
	ExitReleaseTaskwaitFragment()
}

var sink atomic.Pointer[sinkHolder]

type sinkHolder struct{ s Sink }

func init() {
	Use(nopSink{})
}

// Use installs the instrumentation backend.
func Use(s Sink) {
	if s == nil {
		s = nopSink{}
	}
	sink.Store(&sinkHolder{s: s})
}

// Active returns the installed backend.
func Active() Sink {
	return sink.Load().s
}

type nopSink struct{}

func (nopSink) CreatedThread(int) ThreadID { return ThreadID(idgen.New()) }

func (nopSink) ThreadHasResumed(ThreadID, int)  {}
func (nopSink) ThreadWillSuspend(ThreadID, int) {}
func (nopSink) ThreadWillShutdown(ThreadID)     {}

func (nopSink) EnterSchedulerAddTask() {}
func (nopSink) ExitSchedulerAddTask()  {}
func (nopSink) EnterSchedulerGetTask() {}
func (nopSink) ExitSchedulerGetTask()  {}

func (nopSink) EnterCreateDataCopyStep(bool)     {}
func (nopSink) ExitCreateDataCopyStep(bool)      {}
func (nopSink) EnterSetupTaskwaitWorkflow()      {}
func (nopSink) ExitSetupTaskwaitWorkflow()       {}
func (nopSink) EnterUnregisterTaskDataAccesses() {}
func (nopSink) ExitUnregisterTaskDataAccesses()  {}
func (nopSink) EnterHandleExitTaskwait()         {}
func (nopSink) ExitHandleExitTaskwait()          {}
func (nopSink) EnterReleaseTaskwaitFragment()    {}
func (nopSink) ExitReleaseTaskwaitFragment()     {}
