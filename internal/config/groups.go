package config

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/seaenv/internal/transect"
	"github.com/banshee-data/seaenv/internal/units"
)

// CoordinateGroup is one source position with its receiver geometry.
type CoordinateGroup struct {
	GroupID       string    `json:"group_id"`
	ZoneType      string    `json:"zone_type"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	ReceiveRanges []float64 `json:"receive_ranges"` // km
	ReceiveDepths []float64 `json:"receive_depths"` // m
}

// Source returns the group's source position.
func (g CoordinateGroup) Source() transect.Point {
	return transect.Point{Lat: g.Lat, Lon: g.Lon}
}

// Validate checks a single group.
func (g CoordinateGroup) Validate() error {
	if g.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if !units.IsValidZone(g.ZoneType) {
		return fmt.Errorf("group %s: invalid zone_type %q, expected one of: %s", g.GroupID, g.ZoneType, units.GetValidZonesString())
	}
	if g.Lat < -90 || g.Lat > 90 || g.Lon < -180 || g.Lon > 180 {
		return fmt.Errorf("group %s: position (%v, %v) out of range", g.GroupID, g.Lat, g.Lon)
	}
	if len(g.ReceiveRanges) == 0 {
		return fmt.Errorf("group %s: receive_ranges is empty", g.GroupID)
	}
	for _, r := range g.ReceiveRanges {
		if !(r > 0) {
			return fmt.Errorf("group %s: receive range must be positive, got %v", g.GroupID, r)
		}
	}
	if len(g.ReceiveDepths) == 0 {
		return fmt.Errorf("group %s: receive_depths is empty", g.GroupID)
	}
	for _, d := range g.ReceiveDepths {
		if d < 0 {
			return fmt.Errorf("group %s: receive depth must be non-negative, got %v", g.GroupID, d)
		}
	}
	return nil
}

type groupsFile struct {
	CoordinateGroups []CoordinateGroup `json:"coordinate_groups"`
}

// LoadCoordinateGroups reads {"coordinate_groups": [...]} from a JSON file.
// Group ids must be unique.
func LoadCoordinateGroups(path string) ([]CoordinateGroup, error) {
	data, err := readJSONFile(path)
	if err != nil {
		return nil, err
	}

	var f groupsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse coordinate groups JSON: %w", err)
	}
	if len(f.CoordinateGroups) == 0 {
		return nil, fmt.Errorf("no coordinate groups in %s", path)
	}

	seen := make(map[string]bool, len(f.CoordinateGroups))
	for _, g := range f.CoordinateGroups {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("invalid coordinate group: %w", err)
		}
		if seen[g.GroupID] {
			return nil, fmt.Errorf("duplicate group_id %q", g.GroupID)
		}
		seen[g.GroupID] = true
	}
	return f.CoordinateGroups, nil
}
