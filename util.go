package clearpart

import (
	"fmt"
	"sort"
)

const (
	// Kibibyte - 1024 bytes
	Kibibyte = 1024
	// Mebibyte - 1024 Kibibytes
	Mebibyte = Kibibyte * 1024
	// Gibibyte - 1024 Mebibytes
	Gibibyte = Mebibyte * 1024
)

// URange is an inclusive range of bytes.
type URange struct {
	Start, Last uint64
}

// Size returns the number of bytes in the range.
func (r URange) Size() uint64 {
	return r.Last - r.Start + 1
}

// FindRangeGaps returns a set of URange to represent the un-used
// uint64 between min and max that are not included in ranges.
//
//	FindRangeGaps({{10, 40}, {50, 100}}, 0, 110}) ==
//	    {{0, 9}, {41, 49}, {101, 110}}
func FindRangeGaps(ranges []URange, min, max uint64) []URange {
	// start 'ret' off with full range of min to max, then start cutting it up.
	ret := []URange{{min, max}}

	for _, i := range ranges {
		for r := 0; r < len(ret); r++ {
			// 5 cases:
			if i.Start > ret[r].Last || i.Last < ret[r].Start {
				// a. i has no overlap
			} else if i.Start <= ret[r].Start && i.Last >= ret[r].Last {
				// b.) i is complete superset, so remove ret[r]
				ret = append(ret[:r], ret[r+1:]...)
				r--
			} else if i.Start > ret[r].Start && i.Last < ret[r].Last {
				// c.) i is strict subset: split ret[r]
				ret = append(
					append(ret[:r+1], URange{i.Last + 1, ret[r].Last}),
					ret[r+1:]...)
				ret[r].Last = i.Start - 1
				r++ // added entry is guaranteed to be 'a', so skip it.
			} else if i.Start <= ret[r].Start {
				// d.) overlap left edge to middle
				ret[r].Start = i.Last + 1
			} else if i.Start <= ret[r].Last {
				// e.) middle to right edge (possibly past).
				ret[r].Last = i.Start - 1
			} else {
				panic(fmt.Sprintf("Error in FindRangeGaps: %v, r=%d, ret=%v",
					i, r, ret))
			}
		}
	}

	return ret
}

// SumRanges returns the total size of the ranges.
func SumRanges(ranges []URange) uint64 {
	var total uint64

	for _, r := range ranges {
		total += r.Size()
	}

	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

// SortByNumberDesc sorts partitions by descending partition number, breaking
// ties by name so the order is deterministic.
func SortByNumberDesc(parts []Device) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Number != parts[j].Number {
			return parts[i].Number > parts[j].Number
		}

		return parts[i].Name < parts[j].Name
	})
}

// Names returns the names of the devices.
func Names(devs []Device) []string {
	names := make([]string, 0, len(devs))

	for _, d := range devs {
		names = append(names, d.Name)
	}

	return names
}
