//go:build linux

package linux

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// rcNotRun is the exit code reported for commands that could not be started,
// as a shell would.
const rcNotRun = 127

// UdevInfo - the udev database entry of a block device.
type UdevInfo struct {
	Name       string            `json:"name"`
	SysPath    string            `json:"sysPath"`
	Symlinks   []string          `json:"symLinks"`
	Properties map[string]string `json:"properties"`
}

// GetUdevInfo return a UdevInfo for the device with kernel name kname.
func GetUdevInfo(kname string) (UdevInfo, error) {
	out, err := run("udevadm", "info", "--query=all", "--export", "--name="+kname)
	if err != nil {
		return UdevInfo{Name: kname}, errors.Wrapf(err, "udev query of %s", kname)
	}

	info, err := parseUdevInfo(out)
	if info.Name == "" {
		info.Name = kname
	}

	return info, err
}

// parseUdevInfo reads the "X: payload" records of udevadm info --export.
func parseUdevInfo(out []byte) (UdevInfo, error) {
	info := UdevInfo{Properties: map[string]string{}}

	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}

		tag, payload, ok := strings.Cut(line, ": ")
		if !ok || len(tag) != 1 {
			return info, fmt.Errorf("bad udev record %q", line)
		}

		switch tag {
		case "P":
			info.SysPath = payload
		case "N":
			info.Name = payload
		case "S":
			info.Symlinks = append(info.Symlinks, strings.Fields(payload)...)
		case "E":
			if err := info.setProperty(payload); err != nil {
				return info, err
			}
		case "M", "L", "I", "Q", "V":
			// minor name, link priority, init time, diskseq, driver
		default:
			return info, fmt.Errorf("unknown udev record %q", line)
		}
	}

	return info, nil
}

// setProperty stores a KEY=value property. Values are escaped the udev way,
// e.g. ID_MODEL_ENC=Integrated\x20Camera.
func (u *UdevInfo) setProperty(payload string) error {
	key, value, ok := strings.Cut(payload, "=")
	if !ok {
		return fmt.Errorf("udev property without value %q", payload)
	}

	decoded, err := strconv.Unquote(`"` + value + `"`)
	if err != nil {
		return errors.Wrapf(err, "udev property %s", key)
	}

	u.Properties[key] = strings.TrimSpace(decoded)

	return nil
}

// FormatType returns the on-disk format name udev reports, normalized to
// the names clearpart.FormatFromType knows.
func (u UdevInfo) FormatType() string {
	if u.Properties["DM_MULTIPATH_DEVICE_PATH"] == "1" {
		return "multipath_member"
	}

	if t := u.Properties["ID_FS_TYPE"]; t != "" {
		return t
	}

	switch t := u.Properties["ID_PART_TABLE_TYPE"]; t {
	case "dos":
		return "msdos"
	default:
		return t
	}
}

// MacPartitionMap is true for the apple partition map entry.
func (u UdevInfo) MacPartitionMap() bool {
	return u.Properties["ID_PART_ENTRY_TYPE"] == "Apple_partition_map"
}

// DevLinks returns the symlinks udev made for the device as paths below
// devDir, e.g. /dev/disk/by-id/wwn-0x5000c500a0d8963f.
func (u UdevInfo) DevLinks(devDir string) []string {
	if len(u.Symlinks) == 0 {
		return nil
	}

	links := make([]string, 0, len(u.Symlinks))
	for _, s := range u.Symlinks {
		links = append(links, filepath.Join(devDir, s))
	}

	return links
}

// commandError is a command that exited non zero, or never ran.
type commandError struct {
	Args   []string
	RC     int
	Stderr string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s failed [%d]: %s", strings.Join(e.Args, " "), e.RC, strings.TrimSpace(e.Stderr))
}

// run runs a command and returns its stdout. A failure is a *commandError.
func run(args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	rc := rcNotRun

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		rc = exitErr.ExitCode()
	}

	return stdout.Bytes(), &commandError{Args: args, RC: rc, Stderr: stderr.String()}
}

func udevSettle() error {
	_, err := run("udevadm", "settle")
	return err
}
