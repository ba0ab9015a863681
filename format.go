package clearpart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatKind is the tag of the Format variant.
type FormatKind int

const (
	// NoFormat - nothing recognized on the device.
	NoFormat FormatKind = iota

	// DiskLabel - a partition table.
	DiskLabel

	// Filesystem - a mountable filesystem.
	Filesystem

	// Swap - linux swap space.
	Swap

	// LVMMember - an lvm physical volume.
	LVMMember

	// RAIDMember - an md raid member.
	RAIDMember

	// Hidden - a format that hides the device from use, such as a multipath
	// or firmware raid member disk.
	Hidden

	// BIOSBoot - the grub bios boot partition.
	BIOSBoot

	// OtherFormat - recognized but of no particular interest (luks, foreign
	// metadata).
	OtherFormat
)

var formatKindNames = map[FormatKind]string{ //nolint:gochecknoglobals
	NoFormat:    "none",
	DiskLabel:   "disklabel",
	Filesystem:  "filesystem",
	Swap:        "swap",
	LVMMember:   "lvmpv",
	RAIDMember:  "mdmember",
	Hidden:      "hidden",
	BIOSBoot:    "biosboot",
	OtherFormat: "other",
}

func (k FormatKind) String() string {
	if s, ok := formatKindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("FormatKind(%d)", int(k))
}

// MarshalJSON for string output rather than int
func (k FormatKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the string name or the integer value.
func (k *FormatKind) UnmarshalJSON(b []byte) error {
	v, err := unmarshalEnum(b, "format kind", formatKindNames)
	if err != nil {
		return err
	}

	*k = v

	return nil
}

// Format describes what is written on a device. Fields beyond Kind are only
// meaningful for some kinds; use the predicate methods rather than switching
// on Kind where one exists.
type Format struct {
	Kind FormatKind `json:"kind"`

	// Type is the on-disk type name (ext4, xfs, vfat, gpt, msdos).
	Type string `json:"type,omitempty"`

	// Exists is false for formats that are planned but not yet written.
	Exists bool `json:"exists"`

	// Native marks linux native formats.
	Native bool `json:"native,omitempty"`

	Mountpoint string `json:"mountpoint,omitempty"`
	Label      string `json:"label,omitempty"`
	UUID       string `json:"uuid,omitempty"`

	// Resizable is true for filesystems that can be shrunk.
	Resizable bool `json:"resizable,omitempty"`

	// Free is the shrinkable space of a filesystem, or the unallocated space
	// of a disklabel.
	Free uint64 `json:"free,omitempty"`
}

// IsNone returns true if the device carries no recognized format.
func (f Format) IsNone() bool {
	return f.Kind == NoFormat
}

// Partitioned returns true for disklabels.
func (f Format) Partitioned() bool {
	return f.Kind == DiskLabel
}

// IsHidden returns true for formats that hide the device.
func (f Format) IsHidden() bool {
	return f.Kind == Hidden
}

// LinuxNative returns true for linux native formats.
func (f Format) LinuxNative() bool {
	switch f.Kind {
	case Swap, LVMMember, RAIDMember, BIOSBoot:
		return true
	case Filesystem, OtherFormat:
		return f.Native
	default:
		return false
	}
}

// Mountable returns true for formats that can be mounted.
func (f Format) Mountable() bool {
	return f.Kind == Filesystem
}

// Shrinkable returns the amount of space that can be reclaimed by shrinking
// the format and whether the format is a filesystem at all.
func (f Format) Shrinkable() (uint64, bool) {
	if f.Kind != Filesystem {
		return 0, false
	}

	if !f.Resizable {
		return 0, true
	}

	return f.Free, true
}

// Unallocated returns the free space of a disklabel.
func (f Format) Unallocated() uint64 {
	if f.Kind != DiskLabel {
		return 0
	}

	return f.Free
}

var linuxFilesystems = map[string]bool{ //nolint:gochecknoglobals
	"ext2":     true,
	"ext3":     true,
	"ext4":     true,
	"xfs":      true,
	"btrfs":    true,
	"jfs":      true,
	"reiserfs": true,
	"f2fs":     true,
}

var resizableFilesystems = map[string]bool{ //nolint:gochecknoglobals
	"ext2":  true,
	"ext3":  true,
	"ext4":  true,
	"btrfs": true,
	"ntfs":  true,
	"vfat":  true,
}

// FormatFromType builds an existing Format from an on-disk type name as
// reported by blkid or udev (ID_FS_TYPE).
func FormatFromType(fsType string) Format {
	t := strings.ToLower(strings.TrimSpace(fsType))
	f := Format{Type: t, Exists: true}

	switch t {
	case "", "unknown":
		return Format{Exists: true}
	case "gpt", "msdos", "dos", "mac", "sun", "dasd", "atari":
		f.Kind = DiskLabel
	case "swap":
		f.Kind = Swap
	case "lvm2_member", "lvmpv":
		f.Kind = LVMMember
	case "linux_raid_member", "mdmember":
		f.Kind = RAIDMember
	case "multipath_member", "isw_raid_member", "ddf_raid_member",
		"nvidia_raid_member", "promise_fasttrack_raid_member":
		f.Kind = Hidden
	case "biosboot":
		f.Kind = BIOSBoot
	case "crypto_luks", "luks":
		f.Kind = OtherFormat
		f.Native = true
	default:
		f.Kind = Filesystem
		f.Native = linuxFilesystems[t]
		f.Resizable = resizableFilesystems[t]
	}

	return f
}
