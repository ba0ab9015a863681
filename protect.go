package clearpart

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	vfs "github.com/twpayne/go-vfs"
)

const (
	// LiveMountpoint is where the live image root is mounted.
	LiveMountpoint = "/run/initramfs/live"

	// MountTable is the mount table read to find the live backing device.
	MountTable = "/proc/mounts"
)

// SpecKind says how a DeviceSpec identifies a device.
type SpecKind int

const (
	// SpecName - kernel name (sda1).
	SpecName SpecKind = iota
	// SpecPath - device node path (/dev/sda1).
	SpecPath
	// SpecLabel - filesystem label (LABEL=foo).
	SpecLabel
	// SpecUUID - format UUID (UUID=...).
	SpecUUID
	// SpecPartUUID - gpt partition entry UUID (PARTUUID=...).
	SpecPartUUID
	// SpecPartLabel - gpt partition entry name (PARTLABEL=...).
	SpecPartLabel
)

// DeviceSpec is a parsed device specification.
type DeviceSpec struct {
	Kind  SpecKind
	Value string
}

// ParseDeviceSpec parses a device specification. UUIDs are normalized to
// lower case canonical form when they are RFC 4122 UUIDs.
func ParseDeviceSpec(spec string) DeviceSpec {
	spec = strings.TrimSpace(spec)

	switch {
	case strings.HasPrefix(spec, "LABEL="):
		return DeviceSpec{Kind: SpecLabel, Value: strings.TrimPrefix(spec, "LABEL=")}
	case strings.HasPrefix(spec, "/dev/disk/by-label/"):
		return DeviceSpec{Kind: SpecLabel, Value: path.Base(spec)}
	case strings.HasPrefix(spec, "UUID="):
		return DeviceSpec{Kind: SpecUUID, Value: normalizeUUID(strings.TrimPrefix(spec, "UUID="))}
	case strings.HasPrefix(spec, "/dev/disk/by-uuid/"):
		return DeviceSpec{Kind: SpecUUID, Value: normalizeUUID(path.Base(spec))}
	case strings.HasPrefix(spec, "PARTUUID="):
		return DeviceSpec{Kind: SpecPartUUID, Value: normalizeUUID(strings.TrimPrefix(spec, "PARTUUID="))}
	case strings.HasPrefix(spec, "/dev/disk/by-partuuid/"):
		return DeviceSpec{Kind: SpecPartUUID, Value: normalizeUUID(path.Base(spec))}
	case strings.HasPrefix(spec, "PARTLABEL="):
		return DeviceSpec{Kind: SpecPartLabel, Value: strings.TrimPrefix(spec, "PARTLABEL=")}
	case strings.HasPrefix(spec, "/dev/disk/by-partlabel/"):
		return DeviceSpec{Kind: SpecPartLabel, Value: path.Base(spec)}
	case strings.HasPrefix(spec, "/"):
		return DeviceSpec{Kind: SpecPath, Value: path.Clean(spec)}
	default:
		return DeviceSpec{Kind: SpecName, Value: spec}
	}
}

func normalizeUUID(s string) string {
	if u, err := uuid.FromString(s); err == nil {
		return u.String()
	}

	// vfat and friends have short serials like 1A2B-3C4D
	return strings.ToLower(s)
}

// Matches returns true if the device is identified by the spec.
func (s DeviceSpec) Matches(d Device) bool {
	switch s.Kind {
	case SpecName:
		return d.Name == s.Value
	case SpecPath:
		return d.Path == s.Value || path.Join("/dev", d.Name) == s.Value || contains(d.Symlinks, s.Value)
	case SpecLabel:
		return s.Value != "" && d.Format.Label == s.Value
	case SpecUUID:
		return s.Value != "" && d.Format.UUID != "" && normalizeUUID(d.Format.UUID) == s.Value
	case SpecPartUUID:
		return s.Value != "" && d.PartUUID != "" && normalizeUUID(d.PartUUID) == s.Value
	case SpecPartLabel:
		return s.Value != "" && d.PartLabel == s.Value
	}

	return false
}

// ResolveSpec returns the device identified by spec. When several devices
// match, the first one in graph order wins.
func ResolveSpec(g Graph, spec string) (Device, bool) {
	ds := ParseDeviceSpec(spec)

	for _, d := range g.Devices() {
		if ds.Matches(d) {
			return d, true
		}
	}

	return Device{}, false
}

// LiveDetector finds the device backing the live installation medium.
type LiveDetector struct {
	// FS is used to read the mount table.
	FS vfs.FS

	// MountTable defaults to /proc/mounts.
	MountTable string

	// Mountpoint defaults to LiveMountpoint.
	Mountpoint string
}

// NewLiveDetector returns a detector reading the real mount table.
func NewLiveDetector() *LiveDetector {
	return &LiveDetector{FS: vfs.OSFS, MountTable: MountTable, Mountpoint: LiveMountpoint}
}

// BackingDevice returns the name of the device mounted on the live
// mountpoint, or "" if there is none. A partition resolves to its disk.
func (l *LiveDetector) BackingDevice(g Graph) (string, error) {
	table := l.MountTable
	if table == "" {
		table = MountTable
	}

	mountpoint := l.Mountpoint
	if mountpoint == "" {
		mountpoint = LiveMountpoint
	}

	content, err := l.FS.ReadFile(table)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", errors.Wrapf(err, "failed to read mount table %s", table)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] != mountpoint {
			continue
		}

		devPath := fields[0]

		if d, ok := ResolveSpec(g, devPath); ok {
			if d.IsPartition() && d.Disk != "" {
				return d.Disk, nil
			}

			return d.Name, nil
		}

		return path.Base(devPath), nil
	}

	return "", errors.Wrapf(scanner.Err(), "failed to parse mount table %s", table)
}

// Protection is the outcome of protected device resolution.
type Protection struct {
	// Names are the protected device names, in resolution order.
	Names []string `json:"names"`

	// Live is the live backing device, "" if not running from live media.
	Live string `json:"live,omitempty"`

	// Unresolved are the specs that did not match any device.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Contains returns true if name was resolved as protected.
func (p Protection) Contains(name string) bool {
	return contains(p.Names, name)
}

// Resolver turns protected device specs into protected devices.
type Resolver struct {
	Log Logger

	// Live detects the live medium. nil disables live detection.
	Live *LiveDetector
}

// Resolve resolves specs and the live backing device to device names.
// Specs that do not resolve are recorded in Unresolved and logged, they
// are not an error.
func (r *Resolver) Resolve(g Graph, specs []string) Protection {
	p := Protection{Names: []string{}}

	var unresolved error

	for _, spec := range specs {
		d, ok := ResolveSpec(g, spec)
		if !ok {
			p.Unresolved = append(p.Unresolved, spec)
			unresolved = multierror.Append(unresolved,
				errors.Errorf("protected device spec %s does not match any device", spec))

			continue
		}

		r.Log.Debugf("protected device spec %s resolved to %s", spec, d.Name)

		if !contains(p.Names, d.Name) {
			p.Names = append(p.Names, d.Name)
		}
	}

	if unresolved != nil {
		r.Log.Warn(unresolved.Error())
	}

	if r.Live != nil {
		live, err := r.Live.BackingDevice(g)
		if err != nil {
			r.Log.Warnf("live device detection failed: %v", err)
		} else if live != "" {
			r.Log.Infof("resolved live device to %s", live)
			p.Live = live

			if !contains(p.Names, live) {
				p.Names = append(p.Names, live)
			}
		}
	}

	return p
}

// Protect recomputes the protected flags of g from specs and the live
// medium, then seals the graph. Flags set before the call are cleared.
func (r *Resolver) Protect(g MarkableGraph, specs []string) (*Sealed, Protection, error) {
	for _, d := range g.Devices() {
		if !d.Protected {
			continue
		}

		if err := g.SetProtected(d.Name, false); err != nil {
			return nil, Protection{}, &StorageBackendError{Op: "unprotect " + d.Name, Err: err}
		}
	}

	p := r.Resolve(g, specs)

	for _, name := range p.Names {
		if _, ok := g.Device(name); !ok {
			r.Log.Debugf("protected device %s is not in the device tree", name)
			continue
		}

		r.Log.Infof("marking device %s protected", name)

		if err := g.SetProtected(name, true); err != nil {
			return nil, p, &StorageBackendError{Op: "protect " + name, Err: err}
		}

		if name != p.Live {
			continue
		}

		// layered devices (md, dm) backing the live image
		for _, parent := range g.Parents(name) {
			r.Log.Infof("marking live device parent %s protected", parent.Name)

			if err := g.SetProtected(parent.Name, true); err != nil {
				return nil, p, &StorageBackendError{Op: "protect " + parent.Name, Err: err}
			}
		}
	}

	return Seal(g), p, nil
}
