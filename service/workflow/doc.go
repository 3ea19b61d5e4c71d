// Package workflow builds and drives per-task execution workflows.
//
// Each ready task gets a small DAG of steps: data-copy roots gating an
// execution step, followed by a release step and a terminal notification
// step whose continuation finalizes the task. Steps advance the DAG through
// their predecessor counters only; a step starts exactly once, when its last
// predecessor completes.
package workflow
