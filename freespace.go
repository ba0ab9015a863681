package clearpart

import (
	"github.com/google/go-cmp/cmp"
	"github.com/patrickmn/go-cache"
)

// DiskFree is the free space of one disk.
type DiskFree struct {
	// Disk is space not allocated to any partition, including the space
	// of partitions that would be cleared.
	Disk uint64 `json:"disk"`

	// FS is space that can be reclaimed by shrinking filesystems.
	FS uint64 `json:"fs"`
}

// Total returns Disk + FS.
func (f DiskFree) Total() uint64 {
	return f.Disk + f.FS
}

// FreeSpaceReport maps disk names to their free space.
type FreeSpaceReport map[string]DiskFree

// Total returns the sum of disk and filesystem free space over all disks.
func (r FreeSpaceReport) Total() DiskFree {
	total := DiskFree{}

	for _, f := range r {
		total.Disk += f.Disk
		total.FS += f.FS
	}

	return total
}

// Equal returns true if both reports hold the same values.
func (r FreeSpaceReport) Equal(o FreeSpaceReport) bool {
	return cmp.Equal(map[string]DiskFree(r), map[string]DiskFree(o))
}

// GetFreeSpace returns the free space of each of the named disks, or of all
// disks when disks is empty. clearType overrides the configured clear type
// when not nil.
func GetFreeSpace(g *Sealed, disks []string, cfg Config, clearType *ClearType) FreeSpaceReport {
	if clearType != nil {
		cfg = cfg.With(WithClearType(*clearType))
	}

	free := FreeSpaceReport{}

	for _, disk := range candidateDisks(g, disks) {
		free[disk.Name] = diskFreeSpace(g, disk, cfg)
	}

	return free
}

func candidateDisks(g *Sealed, names []string) []Device {
	if len(names) == 0 {
		return g.Disks()
	}

	disks := []Device{}

	for _, n := range names {
		if d, ok := g.Device(n); ok && d.IsDisk() {
			disks = append(disks, d)
		}
	}

	return disks
}

func diskFreeSpace(g *Sealed, disk Device, cfg Config) DiskFree {
	scope := WithDisks(disk.Name)

	if ShouldClear(g, disk, cfg, scope) {
		return DiskFree{Disk: disk.Size}
	}

	free := DiskFree{}

	switch {
	case disk.Partitioned():
		free.Disk = disk.Format.Unallocated()

		for _, p := range g.Partitions() {
			if p.Disk != disk.Name {
				continue
			}

			// Only filesystems count; lvm and friends need more than a
			// resize to turn free space into disk space.
			if ShouldClear(g, p, cfg, scope) {
				free.Disk += p.Size
			} else if shrink, ok := p.Format.Shrinkable(); ok {
				free.FS += shrink
			}
		}
	case disk.Format.Mountable():
		free.FS, _ = disk.Format.Shrinkable()
	case disk.Format.IsNone():
		free.Disk = disk.Size
	}

	return free
}

// FileSystemFreeSpace returns the combined free space of the filesystems
// mounted (or to be mounted) on the given mountpoints. A device backing
// several of them is counted once. Planned filesystems count their whole
// size.
func FileSystemFreeSpace(g Graph, mountpoints ...string) uint64 {
	if len(mountpoints) == 0 {
		mountpoints = []string{"/", "/usr"}
	}

	var free uint64

	seen := map[string]bool{}

	for _, d := range g.Devices() {
		if !d.Format.Mountable() || !contains(mountpoints, d.Format.Mountpoint) {
			continue
		}

		volume := backingVolume(g, d)
		if seen[volume] {
			continue
		}

		seen[volume] = true

		if d.Format.Exists {
			free += d.Format.Free
		} else {
			free += d.Size
		}
	}

	return free
}

// backingVolume returns the name of the device holding the filesystem of d.
// Subvolumes share the filesystem of the parent they were created in.
func backingVolume(g Graph, d Device) string {
	for {
		next, found := Device{}, false

		for _, p := range g.Parents(d.Name) {
			if sameFilesystem(p.Format, d.Format) {
				next, found = p, true
				break
			}
		}

		if !found {
			return d.Name
		}

		d = next
	}
}

func sameFilesystem(a, b Format) bool {
	if a.Kind != Filesystem || a.Type != b.Type {
		return false
	}

	return a.UUID == "" || b.UUID == "" || a.UUID == b.UUID
}

const snapshotKey = "free-space"

// FreeSpaceCalculator memoizes the free space report of a graph until it is
// invalidated. Callers must invalidate whenever the graph changes.
type FreeSpaceCalculator struct {
	graph *Sealed
	cfg   Config
	cache *cache.Cache
}

// NewFreeSpaceCalculator returns a calculator over g using cfg.
func NewFreeSpaceCalculator(g *Sealed, cfg Config) *FreeSpaceCalculator {
	return &FreeSpaceCalculator{
		graph: g,
		cfg:   cfg,
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Snapshot returns the memoized report of all disks, computing it if there
// is none.
func (c *FreeSpaceCalculator) Snapshot() FreeSpaceReport {
	if cached, found := c.cache.Get(snapshotKey); found {
		return cached.(FreeSpaceReport)
	}

	return c.Refresh()
}

// Refresh recomputes and stores the snapshot.
func (c *FreeSpaceCalculator) Refresh() FreeSpaceReport {
	report := GetFreeSpace(c.graph, nil, c.cfg, nil)
	c.cache.Set(snapshotKey, report, cache.NoExpiration)

	return report
}

// Compute returns a fresh report without touching the snapshot.
func (c *FreeSpaceCalculator) Compute(disks []string, clearType *ClearType) FreeSpaceReport {
	return GetFreeSpace(c.graph, disks, c.cfg, clearType)
}

// Invalidate drops the snapshot.
func (c *FreeSpaceCalculator) Invalidate() {
	c.cache.Flush()
}
