package access

import (
	"fmt"

	"github.com/viant/taskor/model/place"
)

// Type describes how a task uses a data region.
type Type int

const (
	// Read grants shared read access.
	Read Type = iota
	// Write grants exclusive write access.
	Write
	// ReadWrite grants exclusive read-write access.
	ReadWrite
	// Reduction accumulates into a privatized copy combined on release.
	Reduction
	// Commutative grants exclusive access in any order.
	Commutative
	// Concurrent grants simultaneous access coordinated by the user.
	Concurrent
)

// Region is a contiguous address range covered by a data access. Start and
// length are plain integers: the runtime core never dereferences regions, it
// only keys transfers and registrations by them.
type Region struct {
	Start  uintptr
	Length uintptr
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x;%d]", r.Start, r.Length)
}

// End returns the first address past the region.
func (r Region) End() uintptr { return r.Start + r.Length }

// DataAccess is one declared access of a task. The dependency subsystem owns
// the full lifecycle; the runtime core reads locations and writes back the
// post-execution location.
type DataAccess struct {
	Region Region
	Type   Type
	Weak   bool

	// Location is where the data currently resides. A nil location on a weak
	// access means the access is not yet read-satisfied.
	Location *place.MemoryPlace

	// OutputLocation is where a taskwait fragment must leave the data; nil
	// when no placement is requested.
	OutputLocation *place.MemoryPlace

	// ValidNamespace records the node on which the access participates in
	// namespace propagation, -1 when unset.
	ValidNamespace int
}

// New returns a data access over the given region.
func New(region Region, accessType Type, weak bool, location *place.MemoryPlace) *DataAccess {
	return &DataAccess{
		Region:         region,
		Type:           accessType,
		Weak:           weak,
		Location:       location,
		ValidNamespace: -1,
	}
}

// SupportsDataCopy reports whether the access type participates in data
// transfers. Reduction, commutative and concurrent accesses are intentional
// placeholders: devices do not support them and they yield no-op copy steps.
func (a *DataAccess) SupportsDataCopy() bool {
	switch a.Type {
	case Reduction, Commutative, Concurrent:
		return false
	}
	return true
}

// SetValidNamespace records the namespace node for this access.
func (a *DataAccess) SetValidNamespace(node int) { a.ValidNamespace = node }
