//go:build linux

package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUdevInfo(t *testing.T) {
	data := []byte(`P: /devices/virtual/block/dm-0
N: dm-0
M: dm-0
S: disk/by-id/dm-name-nvme0n1p6_crypt
S: disk/by-id/dm-uuid-CRYPT-LUKS1-b174c64e7a714359a8b56b79fb66e92b-nvme0n1p6_crypt
S: disk/by-uuid/25df9069-80c7-46f4-a47c-305613c2cb6b
S: mapper/nvme0n1p6_crypt
E: DEVLINKS=/dev/disk/by-id/dm-uuid-CRYPT-LUKS1-b174b-nvme0n1p6_crypt ` +
		`/dev/mapper/nvme0n1p6_crypt /dev/disk/by-id/dm-name-nvme0n1p6_crypt
E: DEVNAME=/dev/dm-0
E: ID_FS_TYPE=ext4
`)

	ast := assert.New(t)

	myInfo, err := parseUdevInfo(data)
	ast.Nil(err)

	ast.Equal(
		UdevInfo{
			Name:    "dm-0",
			SysPath: "/devices/virtual/block/dm-0",
			Symlinks: []string{
				"disk/by-id/dm-name-nvme0n1p6_crypt",
				"disk/by-id/dm-uuid-CRYPT-LUKS1-b174c64e7a714359a8b56b79fb66e92b-nvme0n1p6_crypt",
				"disk/by-uuid/25df9069-80c7-46f4-a47c-305613c2cb6b",
				"mapper/nvme0n1p6_crypt",
			},
			Properties: map[string]string{
				"DEVLINKS": ("/dev/disk/by-id/dm-uuid-CRYPT-LUKS1-b174b-nvme0n1p6_crypt /dev/mapper/nvme0n1p6_crypt " +
					"/dev/disk/by-id/dm-name-nvme0n1p6_crypt"),
				"DEVNAME":    "/dev/dm-0",
				"ID_FS_TYPE": "ext4",
			},
		},
		myInfo)
	ast.Equal("ext4", myInfo.FormatType())
}

func TestParseUdevInfo2(t *testing.T) {
	data := []byte(`P: /devices/pci0000:00/..../block/sda
N: sda
S: disk/by-id/scsi-35000c500a0d8963f
S: disk/by-id/wwn-0x5000c500a0d8963f
E: DEVNAME=/dev/sda
E: DEVTYPE=disk
E: ID_MODEL_ENC=ST\x2f1000NX0453\x20\x20\x20
E: ID_VENDOR_ENC=SEAGATE\x20
E: ID_PART_TABLE_TYPE=dos
`)
	ast := assert.New(t)
	myInfo, err := parseUdevInfo(data)
	ast.Nil(err)
	ast.Equal("sda", myInfo.Name)
	ast.Equal("ST/1000NX0453", myInfo.Properties["ID_MODEL_ENC"])
	ast.Equal("SEAGATE", myInfo.Properties["ID_VENDOR_ENC"])
	ast.Equal("msdos", myInfo.FormatType())
	ast.False(myInfo.MacPartitionMap())
}

func TestParseUdevInfoBad(t *testing.T) {
	ast := assert.New(t)

	for _, data := range []string{
		"X: what\n",
		"no separator\n",
		"E: NOVALUE\n",
		`E: BAD=\q` + "\n",
		"PS: two letters\n",
	} {
		_, err := parseUdevInfo([]byte(data))
		ast.NotNil(err, data)
	}
}

func TestUdevFormatType(t *testing.T) {
	ast := assert.New(t)

	for expected, props := range map[string]map[string]string{
		"multipath_member": {"DM_MULTIPATH_DEVICE_PATH": "1", "ID_PART_TABLE_TYPE": "gpt"},
		"gpt":              {"ID_PART_TABLE_TYPE": "gpt"},
		"LVM2_member":      {"ID_FS_TYPE": "LVM2_member"},
		"":                 {},
	} {
		ast.Equal(expected, UdevInfo{Properties: props}.FormatType())
	}

	ast.True(UdevInfo{Properties: map[string]string{
		"ID_PART_ENTRY_TYPE": "Apple_partition_map",
	}}.MacPartitionMap())
}

func TestDevLinks(t *testing.T) {
	ast := assert.New(t)

	info := UdevInfo{Symlinks: []string{"disk/by-id/wwn-0x5000c500a0d8963f", "disk/by-path/pci-0000:00:17.0-ata-1"}}
	ast.Equal([]string{
		"/dev/disk/by-id/wwn-0x5000c500a0d8963f",
		"/dev/disk/by-path/pci-0000:00:17.0-ata-1",
	}, info.DevLinks("/dev"))
	ast.Nil(UdevInfo{}.DevLinks("/dev"))
}

func TestRun(t *testing.T) {
	ast := assert.New(t)

	out, err := run("sh", "-c", "echo -n STDOUT")
	ast.Nil(err)
	ast.Equal([]byte("STDOUT"), out)

	out, err = run("sh", "-c", "echo -n STDOUT; echo STDERR 1>&2; exit 99")
	ast.Equal([]byte("STDOUT"), out)

	cmdErr, ok := err.(*commandError)
	ast.True(ok)
	ast.Equal(99, cmdErr.RC)
	ast.Equal("STDERR\n", cmdErr.Stderr)
	ast.Contains(err.Error(), "[99]: STDERR")

	_, err = run("/nonexistent/udevadm")
	cmdErr, ok = err.(*commandError)
	ast.True(ok)
	ast.Equal(rcNotRun, cmdErr.RC)
}
