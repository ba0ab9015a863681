// Package memgraph is an in-memory device graph. It backs the command line
// tool when working on layout files, the linux scanner, and the tests.
package memgraph

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"machinerun.io/clearpart"
)

const (
	sectorSize512 = 512

	// DefaultLabelType is the disklabel created by InitializeDisk.
	DefaultLabelType = "gpt"
)

// Graph is an in-memory clearpart.Backend.
type Graph struct {
	devices map[string]*clearpart.Device

	// initial is restored by Populate.
	initial []clearpart.Device

	// reload re-reads the source on Populate when set.
	reload func() ([]clearpart.Device, error)

	// LabelType is the type of disklabel created by InitializeDisk.
	LabelType string
}

// New returns a graph holding devs.
func New(devs ...clearpart.Device) (*Graph, error) {
	g := &Graph{LabelType: DefaultLabelType}

	if err := g.load(devs); err != nil {
		return nil, err
	}

	return g, nil
}

// MustNew is New that panics on error. Handy in tests.
func MustNew(devs ...clearpart.Device) *Graph {
	g, err := New(devs...)
	if err != nil {
		panic(err)
	}

	return g
}

func (g *Graph) load(devs []clearpart.Device) error {
	devices := map[string]*clearpart.Device{}

	for i := range devs {
		d := copyDevice(devs[i])

		if d.Name == "" {
			return fmt.Errorf("device %d has no name", i)
		}

		if _, ok := devices[d.Name]; ok {
			return fmt.Errorf("device %s listed twice", d.Name)
		}

		if d.Path == "" {
			d.Path = "/dev/" + d.Name
		}

		if d.IsPartition() {
			if d.Disk == "" && len(d.Parents) != 0 {
				d.Disk = d.Parents[0]
			}

			if d.Disk == "" {
				return fmt.Errorf("partition %s has no disk", d.Name)
			}

			if len(d.Parents) == 0 {
				d.Parents = []string{d.Disk}
			}
		}

		devices[d.Name] = &d
	}

	for _, d := range devices {
		for _, p := range d.Parents {
			if _, ok := devices[p]; !ok {
				return fmt.Errorf("device %s has unknown parent %s", d.Name, p)
			}
		}

		if d.IsPartition() {
			if disk, ok := devices[d.Disk]; !ok || !disk.IsDisk() {
				return fmt.Errorf("partition %s is on %s which is not a disk", d.Name, d.Disk)
			}
		}
	}

	g.devices = devices

	for _, d := range devices {
		if d.IsDisk() && d.Partitioned() && d.Format.Free == 0 {
			d.Format.Free = g.geometryFree(d)
		}
	}

	g.initial = g.Devices()

	return nil
}

// Populate restores the graph to its initial state, re-reading the layout
// file if the graph was loaded from one.
func (g *Graph) Populate() error {
	devs := g.initial

	if g.reload != nil {
		var err error
		if devs, err = g.reload(); err != nil {
			return err
		}
	}

	return g.load(devs)
}

func copyDevice(d clearpart.Device) clearpart.Device {
	c := d
	c.Parents = append([]string(nil), d.Parents...)

	if d.Symlinks != nil {
		c.Symlinks = append([]string(nil), d.Symlinks...)
	}

	return c
}

func (g *Graph) list(filter clearpart.DeviceFilter) []clearpart.Device {
	devs := []clearpart.Device{}

	for _, d := range g.devices {
		if filter(*d) {
			devs = append(devs, copyDevice(*d))
		}
	}

	sort.Slice(devs, func(i, j int) bool { return devs[i].Name < devs[j].Name })

	return devs
}

// Devices implements clearpart.Graph.
func (g *Graph) Devices() []clearpart.Device {
	return g.list(func(clearpart.Device) bool { return true })
}

// Disks implements clearpart.Graph.
func (g *Graph) Disks() []clearpart.Device {
	return g.list(clearpart.Device.IsDisk)
}

// Partitions implements clearpart.Graph.
func (g *Graph) Partitions() []clearpart.Device {
	return g.list(clearpart.Device.IsPartition)
}

// Device implements clearpart.Graph.
func (g *Graph) Device(name string) (clearpart.Device, bool) {
	d, ok := g.devices[name]
	if !ok {
		return clearpart.Device{}, false
	}

	return copyDevice(*d), true
}

// Children implements clearpart.Graph.
func (g *Graph) Children(name string) []clearpart.Device {
	return g.list(func(d clearpart.Device) bool { return hasParent(d, name) })
}

// Parents implements clearpart.Graph.
func (g *Graph) Parents(name string) []clearpart.Device {
	d, ok := g.devices[name]
	if !ok {
		return []clearpart.Device{}
	}

	return g.list(func(p clearpart.Device) bool { return hasParent(*d, p.Name) })
}

// Dependents implements clearpart.Graph.
func (g *Graph) Dependents(name string) []clearpart.Device {
	seen := map[string]bool{}
	queue := []string{name}

	for len(queue) != 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, c := range g.Children(cur) {
			if !seen[c.Name] {
				seen[c.Name] = true
				queue = append(queue, c.Name)
			}
		}
	}

	return g.list(func(d clearpart.Device) bool { return seen[d.Name] })
}

// DisksOf implements clearpart.Graph. Disks with hidden formats, like
// multipath members, are skipped; the multipath device stands in for them.
func (g *Graph) DisksOf(name string) []clearpart.Device {
	found := map[string]bool{}
	g.disksOf(name, found, map[string]bool{})

	return g.list(func(d clearpart.Device) bool { return found[d.Name] })
}

func (g *Graph) disksOf(name string, found, visited map[string]bool) {
	if visited[name] {
		return
	}

	visited[name] = true

	d, ok := g.devices[name]
	if !ok {
		return
	}

	for _, p := range d.Parents {
		g.disksOf(p, found, visited)
	}

	if d.IsDisk() && !d.Format.IsHidden() {
		found[d.Name] = true
	}
}

// Remove implements clearpart.Graph. Dependents that are left without any
// parent go too; the others just lose the removed parent.
func (g *Graph) Remove(name string) error {
	if _, ok := g.devices[name]; !ok {
		return errors.Wrap(clearpart.ErrDeviceNotFound, name)
	}

	queue := []string{name}

	for len(queue) != 0 {
		cur := queue[0]
		queue = queue[1:]

		d, ok := g.devices[cur]
		if !ok {
			continue
		}

		g.release(d)
		delete(g.devices, cur)

		for _, c := range g.devices {
			if !hasParent(*c, cur) {
				continue
			}

			c.Parents = without(c.Parents, cur)

			if len(c.Parents) == 0 {
				queue = append(queue, c.Name)
			}
		}
	}

	return nil
}

// release gives the space of a removed partition back to its disklabel.
// Logical partitions give it back to the extended partition instead.
func (g *Graph) release(d *clearpart.Device) {
	if !d.IsPartition() || d.IsLogical() {
		return
	}

	disk, ok := g.devices[d.Disk]
	if !ok || !disk.Partitioned() {
		return
	}

	disk.Format.Free += d.Size
}

// InitializeDisk implements clearpart.Graph.
func (g *Graph) InitializeDisk(name string) error {
	disk, ok := g.devices[name]
	if !ok {
		return errors.Wrap(clearpart.ErrDeviceNotFound, name)
	}

	if !disk.IsDisk() {
		return fmt.Errorf("%s is not a disk", name)
	}

	for _, c := range g.Children(name) {
		if err := g.Remove(c.Name); err != nil {
			return err
		}
	}

	disk.Format = clearpart.Format{
		Kind: clearpart.DiskLabel,
		Type: g.labelType(),
		Free: usableSize(disk.Size),
	}

	if disk.Format.Type == "gpt" {
		disk.Format.UUID = clearpart.GUIDToUUID(clearpart.GenGUID())
	}

	return nil
}

func (g *Graph) labelType() string {
	if g.LabelType == "" {
		return DefaultLabelType
	}

	return g.LabelType
}

// SetProtected implements clearpart.MarkableGraph.
func (g *Graph) SetProtected(name string, protected bool) error {
	d, ok := g.devices[name]
	if !ok {
		return errors.Wrap(clearpart.ErrDeviceNotFound, name)
	}

	d.Protected = protected

	return nil
}

// usableSize is the space a new disklabel leaves for partitions: the
// first MiB stays out, 33 sectors at the end hold the backup gpt header and
// the end is rounded down to a MiB.
func usableSize(size uint64) uint64 {
	if size < 2*clearpart.Mebibyte {
		return 0
	}

	end := ((size - sectorSize512*33) / clearpart.Mebibyte) * clearpart.Mebibyte

	return end - clearpart.Mebibyte
}

// geometryFree computes the unallocated space of a disklabel from the
// geometry of its partitions. It returns 0 when any partition lacks
// geometry.
func (g *Graph) geometryFree(disk *clearpart.Device) uint64 {
	if disk.Size < 2*clearpart.Mebibyte {
		return 0
	}

	end := ((disk.Size - sectorSize512*33) / clearpart.Mebibyte) * clearpart.Mebibyte
	used := []clearpart.URange{{Start: 0, Last: clearpart.Mebibyte - 1}, {Start: end, Last: disk.Size - 1}}

	for _, p := range g.devices {
		if !p.IsPartition() || p.Disk != disk.Name || p.IsLogical() {
			continue
		}

		if p.Last == 0 {
			return 0
		}

		used = append(used, clearpart.URange{Start: p.Start, Last: p.Last})
	}

	return clearpart.SumRanges(clearpart.FindRangeGaps(used, 0, disk.Size-1))
}

func hasParent(d clearpart.Device, name string) bool {
	for _, p := range d.Parents {
		if p == name {
			return true
		}
	}

	return false
}

func without(list []string, s string) []string {
	out := []string{}

	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}

	return out
}
