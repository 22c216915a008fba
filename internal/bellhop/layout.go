package bellhop

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/seaenv/internal/security"
	"github.com/banshee-data/seaenv/internal/units"
)

// EnvFolder is the leaf directory holding one unit's files.
const EnvFolder = "envfilefolder"

// UnitDir returns <root>/<zone>/<group>/Rr<index>/envfilefolder. index is the
// 1-based position of the receiver range in the group's list.
func UnitDir(root, zone, group string, index int) (string, error) {
	if !units.IsValidZone(zone) {
		return "", fmt.Errorf("invalid zone type %q, expected one of: %s", zone, units.GetValidZonesString())
	}
	if index < 1 {
		return "", fmt.Errorf("range index must be 1-based, got %d", index)
	}
	return security.JoinWithin(root, zone, security.SanitizeFilename(group), "Rr"+strconv.Itoa(index), EnvFolder)
}

// BaseName returns the template file stem ENV_<group>_Rr<range>Km.
func BaseName(group string, rangeKm float64) string {
	return fmt.Sprintf("ENV_%s_Rr%sKm", security.SanitizeFilename(group), formatRange(rangeKm))
}

// Title returns the .env title for a unit. The group id is sanitised like
// the file stem so it cannot close the quoted title token.
func Title(group string, rangeKm float64) string {
	return fmt.Sprintf("Acoustic Calculation %s_Rr%sKm", security.SanitizeFilename(group), formatRange(rangeKm))
}

func formatRange(km float64) string {
	return strconv.FormatFloat(km, 'f', -1, 64)
}
