package bathymetry

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seaenv/internal/ncutil"
)

// Tile is one raster tile as read from disk, altitude indexed (lon, lat).
type Tile struct {
	Lon      []float64
	Lat      []float64
	Altitude *mat.Dense
}

// TileReader reads a single tile file. Implementations must return an error
// wrapping fs.ErrNotExist for absent files.
type TileReader interface {
	ReadTile(ctx context.Context, path string) (*Tile, error)
}

// NetCDFReader reads netCDF tiles (classic or netCDF-4) holding lon, lat and z
// variables.
type NetCDFReader struct {
	LonVar string
	LatVar string
	ZVar   string
}

// ReadTile implements TileReader.
func (r NetCDFReader) ReadTile(ctx context.Context, path string) (*Tile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lonVar, latVar, zVar := r.LonVar, r.LatVar, r.ZVar
	if lonVar == "" {
		lonVar = "lon"
	}
	if latVar == "" {
		latVar = "lat"
	}
	if zVar == "" {
		zVar = "z"
	}

	f, err := ncutil.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lon, _, err := f.ReadAll(lonVar)
	if err != nil {
		return nil, err
	}
	lat, _, err := f.ReadAll(latVar)
	if err != nil {
		return nil, err
	}
	z, shape, err := f.ReadAll(zVar)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("%s: %s has rank %d, want 2", path, zVar, len(shape))
	}
	if shape[0] == 0 || shape[1] == 0 {
		return nil, fmt.Errorf("%s: %s is empty", path, zVar)
	}

	dims := f.Dims(zVar)
	var alt mat.Dense
	switch {
	case len(dims) == 2 && dims[0] == latVar && dims[1] == lonVar:
		if shape[0] != len(lat) || shape[1] != len(lon) {
			return nil, fmt.Errorf("%s: %s shape %v does not match lat=%d lon=%d", path, zVar, shape, len(lat), len(lon))
		}
		alt.CloneFrom(mat.NewDense(shape[0], shape[1], z).T())
	default:
		if shape[0] != len(lon) || shape[1] != len(lat) {
			return nil, fmt.Errorf("%s: %s shape %v does not match lon=%d lat=%d", path, zVar, shape, len(lon), len(lat))
		}
		alt.CloneFrom(mat.NewDense(shape[0], shape[1], z))
	}
	tracef("read %s: %dx%d", path, len(lon), len(lat))
	return &Tile{Lon: lon, Lat: lat, Altitude: &alt}, nil
}
