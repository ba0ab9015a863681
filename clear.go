package clearpart

import (
	units "github.com/docker/go-units"
	"github.com/pkg/errors"
)

// ClearResult records what a clearing pass did.
type ClearResult struct {
	// Removed lists the devices removed by the pass, in order. Dependents
	// removed by cascade are not listed.
	Removed []string `json:"removed"`

	// Initialized lists the disks that got a new disklabel.
	Initialized []string `json:"initialized"`

	// Warnings are the informational skips, e.g. protected disks.
	Warnings []string `json:"warnings,omitempty"`
}

// Changed returns true if the pass modified the graph.
func (r ClearResult) Changed() bool {
	return len(r.Removed) != 0 || len(r.Initialized) != 0
}

// ClearPartitions removes every partition and dependent device the
// configuration says must go, drops empty extended partitions and gives new
// disklabels to the disks that need one.
//
// Any error is fatal for the installation; the graph is left as it was at
// the time of the failure.
func ClearPartitions(g *Sealed, cfg Config, log Logger) (ClearResult, error) {
	res := ClearResult{Removed: []string{}, Initialized: []string{}}

	// Descending partition number keeps backends that remove partitions by
	// position from renumbering what is left.
	parts := g.Partitions()
	SortByNumberDesc(parts)

	for _, p := range parts {
		part, ok := g.Device(p.Name)
		if !ok {
			// went away with an earlier removal
			continue
		}

		log.Debugf("clearpart: looking at %s", part.Name)

		if !ShouldClear(g, part, cfg) {
			continue
		}

		log.Debugf("clearpart: removing %s (%s)", part.Name, units.BytesSize(float64(part.Size)))

		if err := g.Remove(part.Name); err != nil {
			return res, errors.Wrapf(err, "failed to remove %s", part.Name)
		}

		res.Removed = append(res.Removed, part.Name)
		log.Debugf("partitions on %s: %v", part.Disk, Names(g.Children(part.Disk)))
	}

	removed, err := removeEmptyExtended(g, log)
	res.Removed = append(res.Removed, removed...)

	if err != nil {
		return res, err
	}

	for _, disk := range g.Disks() {
		// an unwritten empty label is what initialization would produce
		if disk.Partitioned() && !disk.Format.Exists && IsEmpty(g, disk) {
			continue
		}

		zeroMBR := cfg.ZeroMBR && disk.Format.IsNone()
		clear := ShouldClear(g, disk, cfg)

		if clear {
			for _, child := range g.Children(disk.Name) {
				if _, ok := g.Device(child.Name); !ok {
					continue
				}

				if err := g.Remove(child.Name); err != nil {
					return res, errors.Wrapf(err, "failed to clear disk %s", disk.Name)
				}

				res.Removed = append(res.Removed, child.Name)
			}
		}

		if !zeroMBR && !clear {
			continue
		}

		if disk.Protected {
			log.Warnf("cannot clear '%s': disk is protected or read only", disk.Name)
			res.Warnings = append(res.Warnings, "disk "+disk.Name+" is protected")

			continue
		}

		log.Debugf("clearpart: initializing %s", disk.Name)

		if err := g.InitializeDisk(disk.Name); err != nil {
			return res, errors.Wrapf(err, "failed to initialize disk %s", disk.Name)
		}

		res.Initialized = append(res.Initialized, disk.Name)
	}

	return res, nil
}

// removeEmptyExtended removes the extended partitions that no longer hold
// any logical partition.
func removeEmptyExtended(g *Sealed, log Logger) ([]string, error) {
	logical := map[string]int{}
	extended := []Device{}

	for _, p := range g.Partitions() {
		switch {
		case p.IsLogical():
			logical[p.Disk]++
		case p.IsExtended():
			extended = append(extended, p)
		}
	}

	removed := []string{}

	for _, ext := range extended {
		if logical[ext.Disk] != 0 {
			continue
		}

		if IsProtected(g, ext) {
			log.Warnf("not removing protected extended partition %s", ext.Name)
			continue
		}

		log.Debugf("clearpart: removing empty extended partition %s", ext.Name)

		if err := g.Remove(ext.Name); err != nil {
			return removed, errors.Wrapf(err, "failed to remove extended partition %s", ext.Name)
		}

		removed = append(removed, ext.Name)
	}

	return removed, nil
}
