package clearpart

// Graph is the device graph as seen by the clearing code: queries over
// devices plus the two destructive operations.
type Graph interface {
	// Devices returns every device in the graph.
	Devices() []Device

	// Disks returns the whole disks. Disks with hidden formats are included;
	// devices built on top of them only see the multipath (or fwraid) device.
	Disks() []Device

	// Partitions returns the partitions of all disks.
	Partitions() []Device

	// Device returns the named device.
	Device(name string) (Device, bool)

	// Children returns the devices built directly on the named device.
	Children(name string) []Device

	// Parents returns the devices the named device is built on.
	Parents(name string) []Device

	// Dependents returns all the transitive descendants of the device.
	Dependents(name string) []Device

	// DisksOf returns the disks the named device lives on. A disk returns
	// itself. Disks with hidden formats are never returned.
	DisksOf(name string) []Device

	// Remove detaches the device and every dependent that has no other
	// surviving parent.
	Remove(name string) error

	// InitializeDisk removes the disk's format and replaces it with a new,
	// empty disklabel.
	InitializeDisk(name string) error
}

// MarkableGraph is a Graph whose protected flags can be written.
type MarkableGraph interface {
	Graph

	// SetProtected sets the protected flag of the named device.
	SetProtected(name string, protected bool) error
}

// Backend is a MarkableGraph that can be rebuilt from its source.
type Backend interface {
	MarkableGraph

	// Populate discards the graph and scans it again.
	Populate() error
}

// Sealed is a read phase view of a graph. Once a graph is sealed protection
// can no longer change through it, and removal of a protected device fails.
type Sealed struct {
	g Graph
}

// Seal closes the protection write phase of g.
func Seal(g MarkableGraph) *Sealed {
	return &Sealed{g: g}
}

// Devices implements Graph.
func (s *Sealed) Devices() []Device { return s.g.Devices() }

// Disks implements Graph.
func (s *Sealed) Disks() []Device { return s.g.Disks() }

// Partitions implements Graph.
func (s *Sealed) Partitions() []Device { return s.g.Partitions() }

// Device implements Graph.
func (s *Sealed) Device(name string) (Device, bool) { return s.g.Device(name) }

// Children implements Graph.
func (s *Sealed) Children(name string) []Device { return s.g.Children(name) }

// Parents implements Graph.
func (s *Sealed) Parents(name string) []Device { return s.g.Parents(name) }

// Dependents implements Graph.
func (s *Sealed) Dependents(name string) []Device { return s.g.Dependents(name) }

// DisksOf implements Graph.
func (s *Sealed) DisksOf(name string) []Device { return s.g.DisksOf(name) }

// Remove implements Graph. It refuses to touch a protected device or a
// device a protected device depends on.
func (s *Sealed) Remove(name string) error {
	if blocker, ok := s.protectedBlocker(name); ok {
		return &PolicyViolationError{Device: name, Protected: blocker}
	}

	return s.g.Remove(name)
}

// InitializeDisk implements Graph. Protected disks are refused.
func (s *Sealed) InitializeDisk(name string) error {
	if blocker, ok := s.protectedBlocker(name); ok {
		return &PolicyViolationError{Device: name, Protected: blocker}
	}

	return s.g.InitializeDisk(name)
}

// protectedBlocker returns the name of a protected device among name and its
// dependents.
func (s *Sealed) protectedBlocker(name string) (string, bool) {
	d, ok := s.g.Device(name)
	if !ok {
		return "", false
	}

	if IsProtected(s.g, d) {
		return d.Name, true
	}

	for _, dep := range s.g.Dependents(name) {
		if IsProtected(s.g, dep) {
			return dep.Name, true
		}
	}

	return "", false
}
