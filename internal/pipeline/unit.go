package pipeline

import (
	"fmt"

	"github.com/banshee-data/seaenv/internal/config"
)

// Unit is one (coordinate group, receiver range) pair.
type Unit struct {
	Group   config.CoordinateGroup
	Index   int     // 1-based position of RangeKm in Group.ReceiveRanges
	RangeKm float64 // receiver range
}

// String identifies the unit in logs.
func (u Unit) String() string {
	return fmt.Sprintf("%s/%s/Rr%d", u.Group.ZoneType, u.Group.GroupID, u.Index)
}

// ExpandUnits lists every unit of groups in input order.
func ExpandUnits(groups []config.CoordinateGroup) []Unit {
	var units []Unit
	for _, g := range groups {
		for j, rr := range g.ReceiveRanges {
			units = append(units, Unit{Group: g, Index: j + 1, RangeKm: rr})
		}
	}
	return units
}
