//go:build linux

package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/memgraph"
)

// ScanImage returns the devices of a disk image file: the image as a disk
// plus the partitions found in its disklabel. Logical partitions of an msdos
// label are not read.
func ScanImage(path string) ([]clearpart.Device, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	size, err := getFileSize(fp)
	fp.Close()

	if err != nil {
		return nil, err
	}

	label, err := readLabel(path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	devs := []clearpart.Device{{
		Name:   name,
		Path:   path,
		Kind:   clearpart.DiskDevice,
		Size:   size,
		Exists: true,
		Format: clearpart.FormatFromType(label.Type),
	}}

	nums := make([]uint, 0, len(label.Parts))
	for n := range label.Parts {
		nums = append(nums, n)
	}

	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, n := range nums {
		lp := label.Parts[n]
		part := clearpart.Device{
			Name:   getPartKname(name, n),
			Path:   fmt.Sprintf("%s:%d", path, n),
			Kind:   clearpart.PartitionDevice,
			Size:   lp.Last - lp.Start + 1,
			Exists: true,
			Disk:   name,
			Number: n,
			Type:   lp.Type,
			Flags:  lp.Flags,
			Start:  lp.Start,
			Last:   lp.Last,
			Format: clearpart.Format{Exists: true},
		}

		finishPartition(&part, label, UdevInfo{})
		devs = append(devs, part)
	}

	return devs, nil
}

// ImageBackend returns a clearpart.Backend over the disk image at path.
func ImageBackend(path string) (*memgraph.Graph, error) {
	return memgraph.Scanned(func() ([]clearpart.Device, error) {
		return ScanImage(path)
	})
}

var endsWithNum = regexp.MustCompile("[0-9]$") //nolint:gochecknoglobals

func getPartKname(diskName string, num uint) string {
	sep := ""

	if endsWithNum.MatchString(diskName) {
		sep = "p"
	}

	return fmt.Sprintf("%s%s%d", diskName, sep, num)
}
