//go:build linux

package linux

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	"golang.org/x/sys/unix"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/partid"
)

const (
	sectorSize512 = 512
	sectorSize4k  = 4096

	maxPrimary = 4
)

// ErrNoPartitionTable is returned if there is no partition table.
var ErrNoPartitionTable = errors.New("no Partition Table Found")

// labelPart is a partition entry as read from the disklabel.
type labelPart struct {
	Number uint
	Start  uint64
	Last   uint64
	Type   clearpart.PartType
	Flags  clearpart.PartFlags

	// BIOSBoot is set for the GPT bios boot partition type.
	BIOSBoot bool
}

// diskLabel is the partition table of a disk. Type is "" for disks without
// a table.
type diskLabel struct {
	Type       string
	SectorSize uint
	Parts      map[uint]labelPart
}

// classify returns the msdos style type of partition number n. Entries
// found in the table are authoritative; numbers past the primary slots of an
// msdos label are logical.
func (l diskLabel) classify(n uint) clearpart.PartType {
	if p, ok := l.Parts[n]; ok {
		return p.Type
	}

	if l.Type == "msdos" && n > maxPrimary {
		return clearpart.Logical
	}

	return clearpart.Primary
}

func readGPTTableSearch(fp io.ReadSeeker, sizes []uint) (gpt.Table, uint, error) {
	const noGptFound = "Bad GPT signature"
	var gptTable gpt.Table
	var err error
	var size uint

	for _, size = range sizes {
		// consider seek failure to be fatal
		if _, err := fp.Seek(int64(size), io.SeekStart); err != nil {
			return gpt.Table{}, size, err
		}

		if gptTable, err = gpt.ReadTable(fp, uint64(size)); err != nil {
			if err.Error() == noGptFound {
				continue
			}

			return gpt.Table{}, size, err
		}

		return gptTable, size, nil
	}

	return gpt.Table{}, size, ErrNoPartitionTable
}

func readGPTTable(fp io.ReadSeeker) (gpt.Table, uint, error) {
	return readGPTTableSearch(fp, []uint{sectorSize512, sectorSize4k})
}

func readMBRTable(fp io.ReadSeeker) (map[uint]labelPart, error) {
	parts := map[uint]labelPart{}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return parts, err
	}

	mbrTable, err := mbr.Read(fp)
	if errors.Is(err, mbr.ErrorBadMbrSign) {
		return parts, ErrNoPartitionTable
	} else if err != nil {
		return parts, err
	}

	for i, p := range mbrTable.GetAllPartitions() {
		if p.IsEmpty() {
			continue
		}

		ptype := byte(p.GetType())
		part := labelPart{
			Number: uint(i + 1),
			Start:  uint64(p.GetLBAStart()) * sectorSize512,
			Last:   uint64(p.GetLBALast())*sectorSize512 + sectorSize512 - 1,
			Type:   clearpart.Primary,
			Flags:  partid.MBRFlags(ptype),
		}

		if partid.IsExtended(ptype) {
			part.Type = clearpart.Extended
		}

		parts[part.Number] = part
	}

	return parts, nil
}

func findPartitions(fp io.ReadSeeker) (diskLabel, error) {
	gptTable, ssize, err := readGPTTable(fp)
	if errors.Is(err, ErrNoPartitionTable) {
		parts, err := readMBRTable(fp)
		if errors.Is(err, ErrNoPartitionTable) {
			return diskLabel{SectorSize: sectorSize512, Parts: parts}, nil
		}

		return diskLabel{Type: "msdos", SectorSize: sectorSize512, Parts: parts}, err
	}

	if err != nil {
		return diskLabel{Type: "gpt", SectorSize: ssize}, err
	}

	label := diskLabel{Type: "gpt", SectorSize: ssize, Parts: map[uint]labelPart{}}
	ssize64 := uint64(ssize)

	for n, p := range gptTable.Partitions {
		if p.IsEmpty() {
			continue
		}

		ptype := [16]byte(p.Type)
		part := labelPart{
			Number:   uint(n + 1),
			Start:    p.FirstLBA * ssize64,
			Last:     p.LastLBA*ssize64 + ssize64 - 1,
			Type:     clearpart.Primary,
			Flags:    partid.GPTFlags(ptype),
			BIOSBoot: ptype == partid.BIOSBoot,
		}
		label.Parts[part.Number] = part
	}

	return label, nil
}

// readLabel reads the disklabel of the device or image at path under a
// shared lock.
func readLabel(path string) (diskLabel, error) {
	fp, err := os.Open(path)
	if err != nil {
		return diskLabel{}, err
	}
	defer fp.Close()

	if err := unix.Flock(int(fp.Fd()), unix.LOCK_SH); err != nil {
		return diskLabel{}, fmt.Errorf("failed to lock %s: %s", path, err)
	}

	defer unix.Flock(int(fp.Fd()), unix.LOCK_UN) //nolint:errcheck

	return findPartitions(fp)
}

func getFileSize(file io.Seeker) (uint64, error) {
	var err error
	var cur, pos int64

	// read the current position so we can set it back before return
	if cur, err = file.Seek(0, io.SeekCurrent); err != nil {
		return 0, err
	}

	if pos, err = file.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}

	if _, err = file.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}

	return uint64(pos), nil
}
