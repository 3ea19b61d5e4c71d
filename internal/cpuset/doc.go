// Package cpuset wraps the kernel affinity calls used to enumerate
// admissible cpus and to pin or migrate worker threads.
package cpuset
