package clearpart_test

import (
	"fmt"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/memgraph"
)

const (
	mib = clearpart.Mebibyte
	gib = clearpart.Gibibyte
)

func gptLabel(free uint64) clearpart.Format {
	return clearpart.Format{Kind: clearpart.DiskLabel, Type: "gpt", Exists: true, Free: free}
}

func fsFormat(fsType string, free uint64) clearpart.Format {
	f := clearpart.FormatFromType(fsType)
	f.Free = free

	return f
}

func mkDisk(name string, size uint64, f clearpart.Format) clearpart.Device {
	return clearpart.Device{
		Name:   name,
		Kind:   clearpart.DiskDevice,
		Size:   size,
		Exists: true,
		Format: f,
	}
}

func mkPart(disk string, n uint, size uint64, f clearpart.Format) clearpart.Device {
	return clearpart.Device{
		Name:   fmt.Sprintf("%s%d", disk, n),
		Kind:   clearpart.PartitionDevice,
		Size:   size,
		Exists: true,
		Disk:   disk,
		Number: n,
		Format: f,
	}
}

// scenarioGraph returns:
//
//	sda  100G gpt   sda1 ext4 50G, sda2 swap 8G
//	sdb   20G       no format
//	sdc   50G gpt   sdc1 vfat 25G (install media), sdc2 ext4 20G
//	sdd   40G gpt   sdd1 ext4 20G, sdd2 xfs 20G
//	sdm    8G mac   sdm1 partition map
//	sdn  200G gpt   sdn1 ntfs 200G
func scenarioGraph() *memgraph.Graph {
	sda2 := mkPart("sda", 2, 8*gib, fsFormat("swap", 0))
	sda2.Flags.Swap = true

	sdc1 := mkPart("sdc", 1, 25*gib, clearpart.Format{
		Kind: clearpart.Filesystem, Type: "vfat", Exists: true,
		Label: "LIVEMEDIA", UUID: "1A2B-3C4D",
	})

	sdm := mkDisk("sdm", 8*gib, clearpart.Format{Kind: clearpart.DiskLabel, Type: "mac", Exists: true})
	sdm1 := mkPart("sdm", 1, 32*clearpart.Kibibyte, clearpart.Format{})
	sdm1.Magic = true

	return memgraph.MustNew(
		mkDisk("sda", 100*gib, gptLabel(42*gib)),
		mkPart("sda", 1, 50*gib, fsFormat("ext4", 10*gib)),
		sda2,
		mkDisk("sdb", 20*gib, clearpart.Format{}),
		mkDisk("sdc", 50*gib, gptLabel(5*gib)),
		sdc1,
		mkPart("sdc", 2, 20*gib, fsFormat("ext4", 0)),
		mkDisk("sdd", 40*gib, gptLabel(0)),
		mkPart("sdd", 1, 20*gib, fsFormat("ext4", 4*gib)),
		mkPart("sdd", 2, 20*gib, fsFormat("xfs", 2*gib)),
		sdm,
		sdm1,
		mkDisk("sdn", 200*gib, gptLabel(0)),
		mkPart("sdn", 1, 200*gib, fsFormat("ntfs", 50*gib)),
	)
}

// sealedWith protects the named devices of g and seals it.
func sealedWith(g *memgraph.Graph, protected ...string) *clearpart.Sealed {
	for _, name := range protected {
		if err := g.SetProtected(name, true); err != nil {
			panic(err)
		}
	}

	return clearpart.Seal(g)
}

func shouldClear(s *clearpart.Sealed, name string, cfg clearpart.Config) bool {
	d, ok := s.Device(name)
	if !ok {
		panic("no device " + name)
	}

	return clearpart.ShouldClear(s, d, cfg)
}
