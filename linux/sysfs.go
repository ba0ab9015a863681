//go:build linux

package linux

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-vfs"
)

const sysClassBlock = "/sys/class/block"

// sysBlock reads block device attributes from sysfs.
type sysBlock struct {
	fs vfs.FS
}

func (s sysBlock) attr(kname, name string) (string, error) {
	content, err := s.fs.ReadFile(path.Join(sysClassBlock, kname, name))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(content)), nil
}

func (s sysBlock) uintAttr(kname, name string) (uint64, error) {
	v, err := s.attr(kname, name)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s/%s: failed to convert '%s'", kname, name, v)
	}

	return n, nil
}

// names lists the kernel names of all block devices.
func (s sysBlock) names() ([]string, error) {
	files, err := s.fs.ReadDir(sysClassBlock)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}

	sort.Strings(names)

	return names, nil
}

// size is the size of kname in bytes. sysfs counts 512 byte sectors no
// matter the logical block size.
func (s sysBlock) size(kname string) (uint64, error) {
	n, err := s.uintAttr(kname, "size")
	return n * sectorSize512, err
}

// geometry returns the byte range of partition kname.
func (s sysBlock) geometry(kname string) (uint64, uint64, error) {
	start, err := s.uintAttr(kname, "start")
	if err != nil {
		return 0, 0, err
	}

	size, err := s.size(kname)
	if err != nil || size == 0 {
		return 0, 0, err
	}

	start *= sectorSize512

	return start, start + size - 1, nil
}

// partitionNumber returns the partition number of kname, false if kname is
// not a partition.
func (s sysBlock) partitionNumber(kname string) (uint, bool) {
	n, err := s.uintAttr(kname, "partition")
	if err != nil {
		return 0, false
	}

	return uint(n), true
}

// slaves are the kernel names of the devices kname is built on.
func (s sysBlock) slaves(kname string) []string {
	files, err := s.fs.ReadDir(path.Join(sysClassBlock, kname, "slaves"))
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}

	sort.Strings(names)

	return names
}

// dmName returns the device mapper name and uuid of kname. Both are empty
// for devices that are not mapped.
func (s sysBlock) dmName(kname string) (string, string) {
	name, err := s.attr(kname, "dm/name")
	if err != nil {
		return "", ""
	}

	uuid, _ := s.attr(kname, "dm/uuid")

	return name, uuid
}
