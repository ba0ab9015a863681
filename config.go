package clearpart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ClearType is the clearing mode.
type ClearType int

const (
	// ClearNone - clear nothing, except empty disks when InitializeDisks is set.
	ClearNone ClearType = iota

	// ClearLinux - clear linux native partitions and disks.
	ClearLinux

	// ClearAll - clear everything in scope, whole disks included.
	ClearAll

	// ClearList - clear only the devices named in ClearPartDevices.
	ClearList

	// ClearDefault - behaves as ClearNone unless the user picks something.
	ClearDefault
)

var clearTypeNames = map[ClearType]string{ //nolint:gochecknoglobals
	ClearNone:    "none",
	ClearLinux:   "linux",
	ClearAll:     "all",
	ClearList:    "list",
	ClearDefault: "default",
}

func (t ClearType) String() string {
	if s, ok := clearTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("ClearType(%d)", int(t))
}

// MarshalJSON for string output rather than int
func (t ClearType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts either the string name or the integer value.
func (t *ClearType) UnmarshalJSON(b []byte) error {
	v, err := unmarshalEnum(b, "clear type", clearTypeNames)
	if err != nil {
		return err
	}

	*t = v

	return nil
}

// ParseClearType converts a clear type name ("all", "LINUX") to a ClearType.
func ParseClearType(s string) (ClearType, error) {
	for t, name := range clearTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return t, nil
		}
	}

	return ClearDefault, fmt.Errorf("unknown clear type '%s'", s)
}

// Config is the clearing configuration of one reset cycle.
type Config struct {
	ClearPartType ClearType `json:"clearPartType" mapstructure:"clear-part-type"`

	// ClearPartDisks restricts clearing to these disks. Empty means all.
	ClearPartDisks []string `json:"clearPartDisks,omitempty" mapstructure:"clear-part-disks"`

	// ClearPartDevices is only consulted in ClearList mode.
	ClearPartDevices []string `json:"clearPartDevices,omitempty" mapstructure:"clear-part-devices"`

	// InitializeDisks allows wiping empty or uninitialized disks.
	InitializeDisks bool `json:"initializeDisks" mapstructure:"initialize-disks"`

	// ZeroMBR forces a new disklabel on disks without one.
	ZeroMBR bool `json:"zeroMBR" mapstructure:"zero-mbr"`

	// ClearNonExistent allows planned devices to be cleared too.
	ClearNonExistent bool `json:"clearNonExistent" mapstructure:"clear-non-existent"`

	// ProtectedDevSpecs are device specs (path, name, LABEL=, UUID=) that
	// must never be cleared.
	ProtectedDevSpecs []string `json:"protectedDevSpecs,omitempty" mapstructure:"protected-devices"`
}

// DefaultConfig returns the configuration used when the store has nothing.
func DefaultConfig() Config {
	return Config{ClearPartType: ClearDefault}
}

// Validate checks the configuration for inconsistencies. All problems are
// reported together.
func (c Config) Validate() error {
	var errs error

	if _, ok := clearTypeNames[c.ClearPartType]; !ok {
		errs = multierror.Append(errs, fmt.Errorf("invalid clear type %d", int(c.ClearPartType)))
	}

	if c.ClearPartType == ClearList && len(c.ClearPartDevices) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("clear type list requires clear-part-devices"))
	}

	if c.ClearPartType != ClearList && len(c.ClearPartDevices) != 0 {
		errs = multierror.Append(errs,
			fmt.Errorf("clear-part-devices is ignored with clear type %s", c.ClearPartType))
	}

	seen := map[string]bool{}

	for _, d := range c.ClearPartDisks {
		if d == "" {
			errs = multierror.Append(errs, fmt.Errorf("empty disk name in clear-part-disks"))
			continue
		}

		if seen[d] {
			errs = multierror.Append(errs, fmt.Errorf("disk %s listed twice in clear-part-disks", d))
		}

		seen[d] = true
	}

	return errs
}

// Source is the getter contract of the external configuration store. It is
// read once at the start of every reset.
type Source interface {
	Config() (Config, error)
}

// StaticSource is a Source that always returns the same configuration.
type StaticSource Config

// Config implements Source.
func (s StaticSource) Config() (Config, error) {
	return Config(s), nil
}

// Override replaces a configuration field for a single policy evaluation.
type Override func(*Config)

// WithClearType overrides the clear type.
func WithClearType(t ClearType) Override {
	return func(c *Config) {
		c.ClearPartType = t
	}
}

// WithDisks overrides the disk allow-list.
func WithDisks(disks ...string) Override {
	return func(c *Config) {
		c.ClearPartDisks = disks
	}
}

// WithDevices overrides the device list used in ClearList mode.
func WithDevices(devices ...string) Override {
	return func(c *Config) {
		c.ClearPartDevices = devices
	}
}

// With returns a copy of the configuration with the overrides applied.
func (c Config) With(overrides ...Override) Config {
	merged := c

	for _, o := range overrides {
		o(&merged)
	}

	return merged
}
