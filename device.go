package clearpart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeviceKind enumerates the kinds of devices in the device graph.
type DeviceKind int

const (
	// DiskDevice - a whole disk (or disk like device such as a multipath map).
	DiskDevice DeviceKind = iota

	// PartitionDevice - a partition on a partitioned disk.
	PartitionDevice

	// VolumeDevice - anything stacked on top of disks or partitions: lvm
	// logical volumes, md arrays, luks mappings.
	VolumeDevice
)

var deviceKindNames = map[DeviceKind]string{ //nolint:gochecknoglobals
	DiskDevice:      "disk",
	PartitionDevice: "partition",
	VolumeDevice:    "volume",
}

func (k DeviceKind) String() string {
	if s, ok := deviceKindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("DeviceKind(%d)", int(k))
}

// MarshalJSON for string output rather than int
func (k DeviceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the string name or the integer value.
func (k *DeviceKind) UnmarshalJSON(b []byte) error {
	v, err := unmarshalEnum(b, "device kind", deviceKindNames)
	if err != nil {
		return err
	}

	*k = v

	return nil
}

// PartType is the msdos style classification of a partition.
type PartType int

const (
	// Primary - a primary partition. GPT partitions are always primary.
	Primary PartType = iota

	// Logical - a logical partition inside an extended partition.
	Logical

	// Extended - the msdos container for logical partitions.
	Extended

	// Metadata - label metadata or free space placeholders.
	Metadata
)

var partTypeNames = map[PartType]string{ //nolint:gochecknoglobals
	Primary:  "primary",
	Logical:  "logical",
	Extended: "extended",
	Metadata: "metadata",
}

func (t PartType) String() string {
	if s, ok := partTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("PartType(%d)", int(t))
}

// MarshalJSON for string output rather than int
func (t PartType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts either the string name or the integer value.
func (t *PartType) UnmarshalJSON(b []byte) error {
	v, err := unmarshalEnum(b, "partition type", partTypeNames)
	if err != nil {
		return err
	}

	*t = v

	return nil
}

// PartFlags are the partition table role markers that matter for clearing.
type PartFlags struct {
	LVM  bool `json:"lvm,omitempty" yaml:"lvm,omitempty"`
	RAID bool `json:"raid,omitempty" yaml:"raid,omitempty"`
	Swap bool `json:"swap,omitempty" yaml:"swap,omitempty"`
}

// Any returns true if any of the linux role markers is set.
func (f PartFlags) Any() bool {
	return f.LVM || f.RAID || f.Swap
}

// Device is a node of the device graph. Devices are values; the graph owns
// the authoritative copy and hands out snapshots.
type Device struct {
	// Name is the kernel name of the device (sda, sda1, md127).
	Name string `json:"name"`

	// Path is the device node path.
	Path string `json:"path"`

	// Symlinks are the other device node paths of the device, e.g.
	// /dev/disk/by-id/wwn-0x5000c500a0d8963f.
	Symlinks []string `json:"symlinks,omitempty"`

	Kind DeviceKind `json:"kind"`

	// Size in bytes.
	Size uint64 `json:"size"`

	// Exists is false for planned devices that are not committed to disk.
	Exists bool `json:"exists"`

	// Protected is owned by the protection resolver.
	Protected bool `json:"protected,omitempty"`

	// Disk is the name of the containing disk of a partition.
	Disk string `json:"disk,omitempty"`

	// Parents are the names of the devices this device is built on.
	Parents []string `json:"parents,omitempty"`

	Format Format `json:"format"`

	// Number is the partition number.
	Number uint `json:"number,omitempty"`

	// Type is the partition type, only meaningful for partitions.
	Type PartType `json:"type,omitempty"`

	Flags PartFlags `json:"flags,omitempty"`

	// PartUUID and PartLabel identify the partition entry of a gpt label.
	PartUUID  string `json:"partuuid,omitempty"`
	PartLabel string `json:"partlabel,omitempty"`

	// Magic marks disklabel reserved partitions (the mac partition map, the
	// sun whole disk slice) which never hold user data.
	Magic bool `json:"magic,omitempty"`

	// Start and Last are the byte offsets of a partition.
	Start uint64 `json:"start,omitempty"`
	Last  uint64 `json:"last,omitempty"`
}

// IsDisk returns true for whole disks.
func (d Device) IsDisk() bool {
	return d.Kind == DiskDevice
}

// IsPartition returns true for partitions.
func (d Device) IsPartition() bool {
	return d.Kind == PartitionDevice
}

// Partitioned returns true if the device carries a disklabel.
func (d Device) Partitioned() bool {
	return d.Format.Partitioned()
}

// IsPrimary returns true for primary partitions.
func (d Device) IsPrimary() bool {
	return d.IsPartition() && d.Type == Primary
}

// IsLogical returns true for logical partitions.
func (d Device) IsLogical() bool {
	return d.IsPartition() && d.Type == Logical
}

// IsExtended returns true for extended partitions.
func (d Device) IsExtended() bool {
	return d.IsPartition() && d.Type == Extended
}

// FormatExists returns true if the device's format is on disk. An existing
// device without any format counts as committed.
func (d Device) FormatExists() bool {
	if d.Format.IsNone() {
		return d.Exists
	}

	return d.Format.Exists
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s) Kind=%s Size=%d Exists=%t Protected=%t Format=%s",
		d.Name, d.Path, d.Kind, d.Size, d.Exists, d.Protected, d.Format.Kind)
}

// DeviceFilter is filter function that returns true if the matching device is
// accepted false otherwise.
type DeviceFilter func(Device) bool

func unmarshalEnum[T ~int](b []byte, what string, names map[T]string) (T, error) {
	var s string

	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return 0, fmt.Errorf("invalid %s %s", what, string(b))
		}

		if _, ok := names[T(n)]; !ok {
			return 0, fmt.Errorf("invalid %s %d", what, n)
		}

		return T(n), nil
	}

	for v, name := range names {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}

	return 0, fmt.Errorf("invalid %s '%s'", what, s)
}
