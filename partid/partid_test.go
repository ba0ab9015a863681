package partid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/partid"
)

func TestPartID(t *testing.T) {
	// Not a very good test, but something.
	for id, text := range map[[16]byte]string{
		partid.LinuxFS:   "Linux-FS",
		partid.LinuxLVM:  "LVM",
		partid.LinuxRAID: "RAID",
		partid.LinuxSwap: "Swap",
	} {
		if partid.Text[id] != text {
			t.Errorf("Unexpected text. found %s expected %s",
				partid.Text[id], text)
		}
	}
}

func TestGUIDString(t *testing.T) {
	assert.Equal(t, "0FC63DAF-8483-4772-8E79-3D69D8477DE4",
		clearpart.GUID(partid.LinuxFS).String())
}

func TestFlags(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(clearpart.PartFlags{LVM: true}, partid.GPTFlags(partid.LinuxLVM))
	assert.Equal(clearpart.PartFlags{RAID: true}, partid.GPTFlags(partid.LinuxRAID))
	assert.Equal(clearpart.PartFlags{Swap: true}, partid.GPTFlags(partid.LinuxSwap))
	assert.False(partid.GPTFlags(partid.LinuxFS).Any())

	assert.Equal(clearpart.PartFlags{LVM: true}, partid.MBRFlags(partid.MBRLVM))
	assert.Equal(clearpart.PartFlags{Swap: true}, partid.MBRFlags(partid.MBRSwap))
	assert.False(partid.MBRFlags(partid.MBRLinux).Any())
}

func TestMBRTypes(t *testing.T) {
	assert := assert.New(t)

	assert.True(partid.IsExtended(partid.MBRExtended))
	assert.True(partid.IsExtended(partid.MBRExtendedLBA))
	assert.False(partid.IsExtended(partid.MBRLinux))

	assert.Equal(partid.MBRLVM, partid.PartTypeToMBR(partid.LinuxLVM))
	assert.Equal(partid.MBRLinux, partid.PartTypeToMBR(partid.LinuxHome))
}
