//go:build !linux

package cpuset

import "runtime"

// Affinity control is Linux only. Elsewhere every logical cpu is admissible
// and binding requests are accepted without effect, which keeps the runtime
// usable for development on other platforms.

// ProcessMask returns all logical cpus.
func ProcessMask() ([]int, error) {
	n := runtime.NumCPU()
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}

// BindCurrentThread is a no-op.
func BindCurrentThread(int) error { return nil }

// BindThread is a no-op.
func BindThread(int, int) error { return nil }

// ThreadID returns 0; kernel thread ids are not exposed.
func ThreadID() int { return 0 }
