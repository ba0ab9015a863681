// Package partid maps partition type identifiers (GPT type GUIDs and msdos
// type bytes) to the roles the clearing policy cares about.
package partid

import (
	"github.com/rekby/gpt"

	"machinerun.io/clearpart"
)

func mustGUID(s string) [16]byte {
	g, err := gpt.StringToGuid(s)
	if err != nil {
		panic(err)
	}

	return [16]byte(g)
}

//nolint:gochecknoglobals
var (
	// Empty - an unused GPT entry.
	Empty = [16]byte{}

	// EFI - EFI system partition.
	EFI = mustGUID("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")

	// BIOSBoot - grub BIOS boot partition.
	BIOSBoot = mustGUID("21686148-6449-6E6F-744E-656564454649")

	// LinuxFS - Linux filesystem data.
	LinuxFS = mustGUID("0FC63DAF-8483-4772-8E79-3D69D8477DE4")

	// LinuxHome - Linux /home.
	LinuxHome = mustGUID("933AC7E1-2EB4-4F13-B844-0E14E2AEF915")

	// LinuxRootX86 - Linux root on x86.
	LinuxRootX86 = mustGUID("44479540-F297-41B2-9AF7-D131D5F0458A")

	// LinuxRootX86_64 - Linux root on x86_64.
	LinuxRootX86_64 = mustGUID("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709")

	// LinuxSwap - Linux swap.
	LinuxSwap = mustGUID("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")

	// LinuxLVM - Linux LVM physical volume.
	LinuxLVM = mustGUID("E6D6D379-F507-44C2-A23C-238F2A3DF928")

	// LinuxRAID - Linux md raid member.
	LinuxRAID = mustGUID("A19D880F-05FC-4D3B-A006-743F0F84911E")

	// MicrosoftBasicData - FAT and NTFS data partitions.
	MicrosoftBasicData = mustGUID("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")

	// MicrosoftReserved - MSR.
	MicrosoftReserved = mustGUID("E3C9E316-0B5C-4DB8-817D-F92DF00215AE")

	// AppleHFS - HFS+.
	AppleHFS = mustGUID("48465300-0000-11AA-AA11-00306543ECAC")
)

// Text is a map of GPT type GUIDs to short names.
//
//nolint:gochecknoglobals
var Text = map[[16]byte]string{
	Empty:              "Empty",
	EFI:                "EFI",
	BIOSBoot:           "BIOS-Boot",
	LinuxFS:            "Linux-FS",
	LinuxHome:          "Linux-Home",
	LinuxRootX86:       "Linux-Root-x86",
	LinuxRootX86_64:    "Linux-Root-x86_64",
	LinuxSwap:          "Swap",
	LinuxLVM:           "LVM",
	LinuxRAID:          "RAID",
	MicrosoftBasicData: "MS-Basic-Data",
	MicrosoftReserved:  "MS-Reserved",
	AppleHFS:           "Apple-HFS",
}

// msdos partition type bytes
const (
	MBREmpty         byte = 0x00
	MBRExtended      byte = 0x05
	MBRNTFS          byte = 0x07
	MBRFAT32         byte = 0x0c
	MBRExtendedLBA   byte = 0x0f
	MBRSwap          byte = 0x82
	MBRLinux         byte = 0x83
	MBRLinuxExtended byte = 0x85
	MBRLVM           byte = 0x8e
	MBRGPT           byte = 0xee
	MBREFI           byte = 0xef
	MBRRAID          byte = 0xfd
)

// GPTFlags returns the clearing flags of a GPT partition type.
func GPTFlags(ptype [16]byte) clearpart.PartFlags {
	return clearpart.PartFlags{
		LVM:  ptype == LinuxLVM,
		RAID: ptype == LinuxRAID,
		Swap: ptype == LinuxSwap,
	}
}

// MBRFlags returns the clearing flags of an msdos partition type byte.
func MBRFlags(ptype byte) clearpart.PartFlags {
	return clearpart.PartFlags{
		LVM:  ptype == MBRLVM,
		RAID: ptype == MBRRAID,
		Swap: ptype == MBRSwap,
	}
}

// IsExtended returns true for the msdos extended partition types.
func IsExtended(ptype byte) bool {
	return ptype == MBRExtended || ptype == MBRExtendedLBA || ptype == MBRLinuxExtended
}

// PartTypeToMBR returns the msdos type byte closest to a GPT type.
func PartTypeToMBR(ptype [16]byte) byte {
	switch ptype {
	case Empty:
		return MBREmpty
	case LinuxSwap:
		return MBRSwap
	case LinuxLVM:
		return MBRLVM
	case LinuxRAID:
		return MBRRAID
	case EFI:
		return MBREFI
	case MicrosoftBasicData:
		return MBRNTFS
	default:
		return MBRLinux
	}
}
