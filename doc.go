// Package taskor implements the core of a task-parallel runtime: worker
// threads bound to cpus, a hierarchical ready-task scheduler, and a per-task
// execution workflow engine that sequences data movement, execution, release
// and finalization.
//
// The runtime is embedded through the Runtime façade:
//
//	rt, _ := taskor.New()
//	_ = rt.Start(ctx)
//	rt.Submit(task.New(func(cp task.ComputePlace) { work(cp) }))
//	...
//	rt.Shutdown()
//
// Submitted tasks must be ready: dependency tracking lives behind the
// dependency.Subsystem contract and decides when to call AddReadyTask. Each
// ready task is dispatched to a worker, which drives the task's workflow: a
// small DAG of steps gating the body on pending data transfers and chaining
// the dependency release and cluster finalization behind it.
package taskor
