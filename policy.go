package clearpart

// IsEmpty returns true if the device holds nothing worth keeping. A
// partitioned device is empty when all its partitions are magic, an
// unpartitioned one when it carries no recognized format.
func IsEmpty(g Graph, d Device) bool {
	if !d.Partitioned() {
		return d.Format.IsNone()
	}

	for _, child := range g.Children(d.Name) {
		if !child.Magic {
			return false
		}
	}

	return true
}

// IsProtected returns true if the device is protected. Partitions share the
// protection of their disk.
func IsProtected(g Graph, d Device) bool {
	if d.Protected {
		return true
	}

	if !d.IsPartition() || d.Disk == "" {
		return false
	}

	disk, ok := g.Device(d.Disk)

	return ok && disk.Protected
}

// ShouldClear returns true if the configuration, after applying overrides,
// says the device must be cleared. It never modifies the graph.
//
//nolint:gocyclo,cyclop
func ShouldClear(g *Sealed, d Device, cfg Config, overrides ...Override) bool {
	cfg = cfg.With(overrides...)
	clearType := cfg.ClearPartType

	if _, ok := clearTypeNames[clearType]; !ok {
		return false
	}

	if len(cfg.ClearPartDisks) != 0 {
		for _, disk := range g.DisksOf(d.Name) {
			if !contains(cfg.ClearPartDisks, disk.Name) {
				return false
			}
		}
	}

	if !cfg.ClearNonExistent {
		if (d.IsDisk() && !d.FormatExists()) || (!d.IsDisk() && !d.Exists) {
			return false
		}
	}

	// With none or default only empty disks get cleared, and only when we
	// were asked to initialize them.
	if clearType == ClearNone || clearType == ClearDefault {
		if !cfg.InitializeDisks || !d.IsDisk() {
			return false
		}

		if !IsEmpty(g, d) {
			return false
		}
	}

	switch {
	case d.IsPartition():
		if d.Magic {
			return false
		}

		// extended partitions and free space placeholders
		if !d.IsPrimary() && !d.IsLogical() {
			return false
		}

		if clearType == ClearLinux && !d.Format.LinuxNative() && !d.Flags.Any() {
			return false
		}
	case d.IsDisk():
		// A partitioned disk is cleared partition by partition unless all
		// of it goes. An empty one still gets a new label.
		if d.Partitioned() && clearType != ClearAll && !IsEmpty(g, d) {
			return false
		}

		if d.Format.IsHidden() {
			return false
		}

		if clearType == ClearLinux &&
			!((cfg.InitializeDisks && IsEmpty(g, d)) ||
				(!d.Partitioned() && d.Format.LinuxNative())) {
			return false
		}
	}

	if IsProtected(g, d) {
		return false
	}

	for _, dep := range g.Dependents(d.Name) {
		if IsProtected(g, dep) {
			return false
		}
	}

	if clearType == ClearList && !contains(cfg.ClearPartDevices, d.Name) {
		return false
	}

	return true
}
