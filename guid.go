package clearpart

import (
	"strings"

	"github.com/rekby/gpt"
	uuid "github.com/satori/go.uuid"
)

// GUID - a 16 byte Globally Unique ID
type GUID [16]byte

// GenGUID - generate a random uuid and return it
func GenGUID() GUID {
	return GUID(uuid.NewV4())
}

func (g GUID) String() string {
	return GUIDToString(g)
}

// IsZero returns true for the all zero GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// StringToGUID - convert a string to a GUID
func StringToGUID(sguid string) (GUID, error) {
	g, err := gpt.StringToGuid(sguid)

	return GUID(g), err
}

// GUIDToString - turn a Guid into a string.
func GUIDToString(bguid GUID) string {
	return gpt.Guid(bguid).String()
}

// GUIDToUUID returns the GUID as the lower case uuid string blkid reports
// for gpt disklabels.
func GUIDToUUID(g GUID) string {
	return strings.ToLower(g.String())
}
