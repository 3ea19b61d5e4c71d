// Package pool owns the worker threads of the runtime: one long-lived,
// cpu-bound worker per admissible cpu. Workers park when the scheduler runs
// dry and are always unparked by a peer, which is also how they migrate
// between cpus. Teardown runs a distributed protocol where elected shutdown
// controllers drain, join and absorb every remaining worker.
package pool
