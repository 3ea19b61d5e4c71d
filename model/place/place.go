package place

import "fmt"

// DeviceType identifies the class of device a compute or memory place
// belongs to. The set is closed; adding a device requires extending the
// scheduler and workflow step factories as well.
type DeviceType int

const (
	// HostDevice is the local host CPU and its memory.
	HostDevice DeviceType = iota
	// CUDADevice is reserved for CUDA accelerators.
	CUDADevice
	// OpenCLDevice is reserved and currently unsupported.
	OpenCLDevice
	// ClusterDevice is a remote node reachable through the cluster transport.
	ClusterDevice
	// OpenACCDevice is reserved for OpenACC accelerators.
	OpenACCDevice
	// FPGADevice is reserved and currently unsupported.
	FPGADevice

	// DeviceTypeCount is the number of device classes.
	DeviceTypeCount
)

// String returns the lowercase device name.
func (t DeviceType) String() string {
	switch t {
	case HostDevice:
		return "host"
	case CUDADevice:
		return "cuda"
	case OpenCLDevice:
		return "opencl"
	case ClusterDevice:
		return "cluster"
	case OpenACCDevice:
		return "openacc"
	case FPGADevice:
		return "fpga"
	}
	return fmt.Sprintf("device(%d)", int(t))
}

// MemoryPlace is a memory locality where data may reside: host memory, a
// device memory or a remote cluster node.
type MemoryPlace struct {
	// Index is the dense identifier within the device class; for cluster
	// places it is the node index.
	Index int
	// Type is the device class of this locality.
	Type DeviceType

	// directory marks the pseudo-place used for data that has a registered
	// home but no physical location yet.
	directory bool
}

// NewMemoryPlace returns a memory place of the given class.
func NewMemoryPlace(index int, deviceType DeviceType) *MemoryPlace {
	return &MemoryPlace{Index: index, Type: deviceType}
}

// NewDirectoryMemoryPlace returns the directory pseudo-place.
func NewDirectoryMemoryPlace() *MemoryPlace {
	return &MemoryPlace{Index: -1, Type: ClusterDevice, directory: true}
}

// IsDirectory reports whether p is the directory pseudo-place. A nil place
// is not the directory.
func IsDirectory(p *MemoryPlace) bool {
	return p != nil && p.directory
}

func (p *MemoryPlace) String() string {
	if p == nil {
		return "<nil>"
	}
	if p.directory {
		return "directory"
	}
	return fmt.Sprintf("%s:%d", p.Type, p.Index)
}
