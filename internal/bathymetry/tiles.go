package bathymetry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// TileSize is the edge length of one raster tile in degrees.
const TileSize = 15

// DefaultPrefix names the ETOPO 2022 15 arc-second surface tiles.
const DefaultPrefix = "ETOPO_2022_v1_15s"

var tileNameRe = regexp.MustCompile(`^(.+)_([NS])(\d{2})([EW])(\d{3})_surface$`)

// TileName formats the base name of the tile whose northern edge is latBlock
// and whose western edge is lonBlock.
func TileName(prefix string, latBlock, lonBlock int) string {
	ns, ew := 'N', 'E'
	if latBlock < 0 {
		ns = 'S'
	}
	if lonBlock < 0 {
		ew = 'W'
	}
	return fmt.Sprintf("%s_%c%02d%c%03d_surface", prefix, ns, abs(latBlock), ew, abs(lonBlock))
}

// ParseTileName is the inverse of TileName.
func ParseTileName(name string) (prefix string, latBlock, lonBlock int, err error) {
	m := tileNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, 0, fmt.Errorf("not a tile name: %q", name)
	}
	latBlock, _ = strconv.Atoi(m[3])
	lonBlock, _ = strconv.Atoi(m[5])
	if m[2] == "S" {
		latBlock = -latBlock
	}
	if m[4] == "W" {
		lonBlock = -lonBlock
	}
	return m[1], latBlock, lonBlock, nil
}

// LatBlocks returns the northern edges of the tiles covering [minLat, maxLat].
// A latitude tile named B covers (B-15, B].
func LatBlocks(minLat, maxLat float64) []int {
	lo := int(TileSize * math.Ceil(minLat/TileSize))
	hi := int(TileSize * math.Ceil(maxLat/TileSize))
	return blockRange(lo, hi)
}

// LonBlocks returns the western edges of the tiles covering [minLon, maxLon].
// A longitude tile named L covers [L, L+15).
func LonBlocks(minLon, maxLon float64) []int {
	lo := int(TileSize * math.Floor(minLon/TileSize))
	hi := int(TileSize * math.Floor(maxLon/TileSize))
	return blockRange(lo, hi)
}

func blockRange(lo, hi int) []int {
	var out []int
	for b := lo; b <= hi; b += TileSize {
		out = append(out, b)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
