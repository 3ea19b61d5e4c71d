//go:build linux

package cpuset

import (
	"golang.org/x/sys/unix"
)

// ProcessMask returns the system cpu ids the calling process may run on.
func ProcessMask() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}

// BindCurrentThread pins the calling OS thread to a single system cpu. The
// caller must have locked the goroutine to its thread first.
func BindCurrentThread(systemCPU int) error {
	var set unix.CPUSet
	set.Set(systemCPU)
	return unix.SchedSetaffinity(0, &set)
}

// BindThread pins the OS thread identified by tid to a single system cpu.
// Used to migrate a parked worker before it resumes.
func BindThread(tid, systemCPU int) error {
	var set unix.CPUSet
	set.Set(systemCPU)
	return unix.SchedSetaffinity(tid, &set)
}

// ThreadID returns the kernel thread id of the calling OS thread.
func ThreadID() int {
	return unix.Gettid()
}
