//go:build linux

package linux

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/block"
	ghwUtil "github.com/jaypipes/ghw/pkg/util"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/twpayne/go-vfs"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/memgraph"
)

// System scans the block devices of the running system into clearpart
// devices.
type System struct {
	// FS is used to read sysfs.
	FS     vfs.FS
	Logger clearpart.Logger

	// Settle waits for the udev queue before every scan.
	Settle bool

	// DevDir is the directory of the device nodes.
	DevDir string

	disks     func() ([]*block.Disk, error)
	udevInfo  func(kname string) (UdevInfo, error)
	readLabel func(path string) (diskLabel, error)
	mounts    func() (map[string]string, error)
	usage     func(mountpoint string) (uint64, error)
}

// New returns a System reading the real devices.
func New() *System {
	return &System{
		FS:        vfs.OSFS,
		Logger:    clearpart.NewLogger(),
		Settle:    true,
		DevDir:    "/dev",
		disks:     ghwDisks,
		udevInfo:  GetUdevInfo,
		readLabel: readLabel,
		mounts:    mountTable,
		usage:     fsFree,
	}
}

// Backend returns a clearpart.Backend over the running system. Populate
// scans the devices again.
func (s *System) Backend() (*memgraph.Graph, error) {
	return memgraph.Scanned(s.Scan)
}

// Scan returns the disks, partitions and stacked devices of the system.
func (s *System) Scan() ([]clearpart.Device, error) {
	if s.Settle {
		if err := udevSettle(); err != nil {
			s.Logger.Warnf("udev settle failed: %s", err)
		}
	}

	disks, err := s.disks()
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan block devices")
	}

	mounts, err := s.mounts()
	if err != nil {
		s.Logger.Warnf("failed to read the mount table: %s", err)

		mounts = map[string]string{}
	}

	sc := &scan{
		System: s,
		sys:    sysBlock{fs: s.FS},
		mounts: mounts,
		names:  map[string]string{},
		labels: map[string]diskLabel{},
	}

	for _, d := range disks {
		if skipDisk(d) {
			s.Logger.Debugf("Skipping device %s", d.Name)
			continue
		}

		sc.addDisk(d)
	}

	if err := sc.addStacked(); err != nil {
		return nil, err
	}

	return sc.complete(), nil
}

func ghwDisks() ([]*block.Disk, error) {
	info, err := block.New(ghw.WithDisableTools(), ghw.WithDisableWarnings())
	if err != nil {
		return nil, err
	}

	return info.Disks, nil
}

// mountTable maps device paths to their first mountpoint.
func mountTable() (map[string]string, error) {
	parts, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	mounts := map[string]string{}

	for _, p := range parts {
		if _, ok := mounts[p.Device]; !ok {
			mounts[p.Device] = p.Mountpoint
		}
	}

	return mounts, nil
}

func fsFree(mountpoint string) (uint64, error) {
	usage, err := disk.Usage(mountpoint)
	if err != nil {
		return 0, err
	}

	return usage.Free, nil
}

var skipPrefixes = []string{"loop", "ram", "zram", "sr", "fd", "dm-", "md", "nbd"} //nolint:gochecknoglobals

// skipDisk is true for devices that are never clearing targets as a disk.
// Device mapper and md devices are picked up as stacked devices.
func skipDisk(d *block.Disk) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(d.Name, p) {
			return true
		}
	}

	return d.SizeBytes == 0
}

// scan is the state of one Scan.
type scan struct {
	*System
	sys    sysBlock
	mounts map[string]string

	devs []clearpart.Device

	// names maps kernel names to device names; they differ for mapped
	// devices.
	names map[string]string

	// labels are the disklabels read so far, by device name.
	labels map[string]diskLabel
}

func (sc *scan) add(kname string, d clearpart.Device) {
	sc.names[kname] = d.Name
	sc.devs = append(sc.devs, d)
}

func (sc *scan) udev(kname string) UdevInfo {
	info, err := sc.udevInfo(kname)
	if err != nil {
		sc.Logger.Debugf("no udev info for %s: %s", kname, err)
		return UdevInfo{Name: kname, Properties: map[string]string{}}
	}

	return info
}

func (sc *scan) label(name, path string) diskLabel {
	label, err := sc.readLabel(path)
	if err != nil {
		sc.Logger.Warnf("cannot read the disklabel of %s: %s", name, err)
	}

	sc.labels[name] = label

	return label
}

// format builds the format of a device from what ghw found, falling back on
// the udev database.
func (sc *scan) format(path, fsType, fsLabel, mountpoint string, info UdevInfo) clearpart.Format {
	udevType := info.FormatType()

	if fsType == "" || fsType == ghwUtil.UNKNOWN || udevType == "multipath_member" {
		fsType = udevType
	}

	f := clearpart.FormatFromType(fsType)
	if f.IsNone() || f.Partitioned() {
		return f
	}

	f.Label = fsLabel
	if f.Label == "" || f.Label == ghwUtil.UNKNOWN {
		f.Label = info.Properties["ID_FS_LABEL"]
	}

	f.UUID = info.Properties["ID_FS_UUID"]

	if !f.Mountable() {
		return f
	}

	if mountpoint == "" || mountpoint == ghwUtil.UNKNOWN {
		mountpoint = sc.mounts[path]
	}

	if mountpoint == "" {
		return f
	}

	f.Mountpoint = mountpoint

	free, err := sc.usage(mountpoint)
	if err != nil {
		sc.Logger.Warnf("cannot get the free space of %s on %s: %s", path, mountpoint, err)
		return f
	}

	f.Free = free

	return f
}

// diskFormat is the disklabel if there is one, or whatever udev sees on
// the whole disk. A multipath member is hidden whatever the label.
func (sc *scan) diskFormat(path string, label diskLabel, info UdevInfo) clearpart.Format {
	if label.Type != "" && info.FormatType() != "multipath_member" {
		return clearpart.FormatFromType(label.Type)
	}

	return sc.format(path, "", "", "", info)
}

func (sc *scan) addDisk(d *block.Disk) {
	path := filepath.Join(sc.DevDir, d.Name)
	label := sc.label(d.Name, path)

	info := sc.udev(d.Name)
	dev := clearpart.Device{
		Name:   d.Name,
		Path:   path,
		Kind:   clearpart.DiskDevice,
		Size:   d.SizeBytes,
		Exists: true,
		Format: sc.diskFormat(path, label, info),
	}

	sc.identify(&dev, info)
	sc.add(d.Name, dev)

	for _, p := range d.Partitions {
		n, ok := sc.sys.partitionNumber(p.Name)
		if !ok {
			n = trailingNumber(p.Name)
		}

		part := sc.partition(d.Name, p.Name, n, label)
		if part.Size == 0 {
			part.Size = p.SizeBytes
		}

		info := sc.udev(p.Name)
		part.Format = sc.format(part.Path, p.Type, p.FilesystemLabel, p.MountPoint, info)
		finishPartition(&part, label, info)
		sc.identify(&part, info)
		sc.add(p.Name, part)
	}
}

// partition returns the partition number n of disk with its geometry from
// the label, or from sysfs for partitions the label reader cannot see.
func (sc *scan) partition(disk, kname string, n uint, label diskLabel) clearpart.Device {
	d := clearpart.Device{
		Name:    kname,
		Path:    filepath.Join(sc.DevDir, kname),
		Kind:    clearpart.PartitionDevice,
		Exists:  true,
		Disk:    disk,
		Parents: []string{disk},
		Number:  n,
		Type:    label.classify(n),
	}

	if lp, ok := label.Parts[n]; ok {
		d.Start, d.Last = lp.Start, lp.Last
		d.Size = lp.Last - lp.Start + 1
		d.Flags = lp.Flags

		return d
	}

	start, last, err := sc.sys.geometry(kname)
	if err != nil {
		sc.Logger.Debugf("no geometry for %s: %s", kname, err)
		return d
	}

	d.Start, d.Last = start, last
	d.Size = last - start + 1

	return d
}

func finishPartition(d *clearpart.Device, label diskLabel, info UdevInfo) {
	if d.IsExtended() {
		d.Format = clearpart.Format{Exists: true}
	}

	if lp, ok := label.Parts[d.Number]; ok && lp.BIOSBoot && d.Format.IsNone() {
		d.Format = clearpart.FormatFromType("biosboot")
	}

	d.Magic = info.MacPartitionMap()
}

// identify records the udev links and the gpt entry of d, so protected
// device specs like PARTUUID= or /dev/disk/by-id/ find it.
func (sc *scan) identify(d *clearpart.Device, info UdevInfo) {
	d.Symlinks = info.DevLinks(sc.DevDir)

	if d.IsPartition() {
		d.PartUUID = info.Properties["ID_PART_ENTRY_UUID"]
		d.PartLabel = info.Properties["ID_PART_ENTRY_NAME"]
	}
}

var partPrefix = regexp.MustCompile(`^part([0-9]+)-`) //nolint:gochecknoglobals

// addStacked adds the device mapper and md devices: multipath maps become
// disks, their kpartx mappings partitions and everything else a volume.
func (sc *scan) addStacked() error {
	knames, err := sc.sys.names()
	if err != nil {
		return errors.Wrap(err, "failed to list block devices")
	}

	maps, stacked := []string{}, []string{}

	for _, kname := range knames {
		if _, ok := sc.names[kname]; ok {
			continue
		}

		if len(sc.sys.slaves(kname)) == 0 {
			if _, isPart := sc.sys.partitionNumber(kname); !isPart {
				continue
			}
		}

		name, uuid := sc.sys.dmName(kname)
		if name == "" {
			name = kname
		}

		sc.names[kname] = name

		// multipath maps go first, their partitions need the label
		if strings.HasPrefix(uuid, "mpath-") {
			maps = append(maps, kname)
		} else {
			stacked = append(stacked, kname)
		}
	}

	for _, kname := range append(maps, stacked...) {
		info := sc.udev(kname)
		d := sc.stacked(kname, info)
		sc.identify(&d, info)
		sc.devs = append(sc.devs, d)
	}

	return nil
}

func (sc *scan) stacked(kname string, info UdevInfo) clearpart.Device {
	name, uuid := sc.sys.dmName(kname)
	path := filepath.Join(sc.DevDir, kname)

	if name == "" {
		name = kname
	} else {
		path = filepath.Join(sc.DevDir, "mapper", name)
	}

	parents := []string{}

	for _, s := range sc.sys.slaves(kname) {
		if p, ok := sc.names[s]; ok {
			parents = append(parents, p)
		} else {
			parents = append(parents, s)
		}
	}

	size, err := sc.sys.size(kname)
	if err != nil {
		sc.Logger.Debugf("no size for %s: %s", kname, err)
	}

	switch {
	case strings.HasPrefix(uuid, "mpath-"):
		label := sc.label(name, path)

		return clearpart.Device{
			Name:    name,
			Path:    path,
			Kind:    clearpart.DiskDevice,
			Size:    size,
			Exists:  true,
			Parents: parents,
			Format:  sc.diskFormat(path, label, info),
		}
	case partPrefix.MatchString(uuid) && len(parents) == 1 && sc.isDisk(parents[0]):
		n, _ := strconv.ParseUint(partPrefix.FindStringSubmatch(uuid)[1], 10, 32)
		label := sc.labels[parents[0]]

		d := sc.partition(parents[0], name, uint(n), label)
		d.Path = path

		if d.Size == 0 {
			d.Size = size
		}

		d.Format = sc.format(path, "", "", "", info)
		finishPartition(&d, label, info)

		return d
	}

	if len(parents) == 0 {
		// a partition of an md array
		if parent := strings.TrimSuffix(strings.TrimRight(kname, "0123456789"), "p"); parent != kname {
			if p, ok := sc.names[parent]; ok {
				parents = []string{p}
			}
		}
	}

	return clearpart.Device{
		Name:    name,
		Path:    path,
		Kind:    clearpart.VolumeDevice,
		Size:    size,
		Exists:  true,
		Parents: parents,
		Format:  sc.format(path, "", "", "", info),
	}
}

func (sc *scan) isDisk(name string) bool {
	for _, d := range sc.devs {
		if d.Name == name {
			return d.IsDisk()
		}
	}

	return false
}

// complete drops the devices whose parents did not make it into the scan,
// and their dependents in turn.
func (sc *scan) complete() []clearpart.Device {
	devs := sc.devs

	for {
		known := map[string]bool{}
		for _, d := range devs {
			known[d.Name] = true
		}

		kept := make([]clearpart.Device, 0, len(devs))

		for _, d := range devs {
			if hasAll(known, d.Parents) && (d.Disk == "" || known[d.Disk]) {
				kept = append(kept, d)
			} else {
				sc.Logger.Debugf("Skipping %s: parents %v not found", d.Name, d.Parents)
			}
		}

		if len(kept) == len(devs) {
			return kept
		}

		devs = kept
	}
}

func hasAll(known map[string]bool, names []string) bool {
	for _, n := range names {
		if !known[n] {
			return false
		}
	}

	return true
}

// trailingNumber returns the partition number at the end of a kernel name
// (sda3, nvme0n1p2).
func trailingNumber(kname string) uint {
	digits := kname[len(strings.TrimRight(kname, "0123456789")):]

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0
	}

	return uint(n)
}
