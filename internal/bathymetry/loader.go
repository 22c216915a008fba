package bathymetry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultTileCells is the number of samples along each edge of a 15 arc-second tile.
const DefaultTileCells = 3600

// ErrEmptyRegion is returned when the requested window holds no samples.
var ErrEmptyRegion = errors.New("bathymetry region is empty")

// LoaderConfig locates the tile files.
type LoaderConfig struct {
	Dir         string
	Prefix      string
	Extension   string
	TileCells   int
	Concurrency int
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Extension == "" {
		c.Extension = ".nc"
	}
	if c.TileCells <= 0 {
		c.TileCells = DefaultTileCells
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Loader stitches tiles into a Grid.
type Loader struct {
	cfg    LoaderConfig
	reader TileReader
}

// NewLoader creates a Loader. A nil reader selects NetCDFReader.
func NewLoader(cfg LoaderConfig, reader TileReader) *Loader {
	if reader == nil {
		reader = NetCDFReader{}
	}
	return &Loader{cfg: cfg.withDefaults(), reader: reader}
}

// TilePath returns the file path of the tile at (latBlock, lonBlock).
func (l *Loader) TilePath(latBlock, lonBlock int) string {
	return filepath.Join(l.cfg.Dir, TileName(l.cfg.Prefix, latBlock, lonBlock)+l.cfg.Extension)
}

type tileKey struct{ row, col int }

// Load reads the tiles covering the inclusive ranges, stitches them and crops
// to the window. Missing tiles leave zero altitude and add a warning.
func (l *Loader) Load(ctx context.Context, latRange, lonRange [2]float64) (*Grid, []string, error) {
	latBlocks := LatBlocks(latRange[0], latRange[1])
	lonBlocks := LonBlocks(lonRange[0], lonRange[1])
	if len(latBlocks) == 0 || len(lonBlocks) == 0 {
		return nil, nil, fmt.Errorf("%w: lat %v lon %v", ErrEmptyRegion, latRange, lonRange)
	}

	var (
		mu       sync.Mutex
		tiles    = make(map[tileKey]*Tile)
		warnings []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for row, lat := range latBlocks {
		for col, lon := range lonBlocks {
			key, path := tileKey{row, col}, l.TilePath(lat, lon)
			g.Go(func() error {
				t, err := l.reader.ReadTile(gctx, path)
				if errors.Is(err, fs.ErrNotExist) {
					msg := fmt.Sprintf("tile %s missing, zero-filled", filepath.Base(path))
					opsf("%s", msg)
					mu.Lock()
					warnings = append(warnings, msg)
					mu.Unlock()
					return nil
				}
				if err != nil {
					return fmt.Errorf("read tile %s: %w", path, err)
				}
				if len(t.Lon) != l.cfg.TileCells || len(t.Lat) != l.cfg.TileCells {
					return fmt.Errorf("tile %s is %dx%d, want %d cells per edge", path, len(t.Lon), len(t.Lat), l.cfg.TileCells)
				}
				mu.Lock()
				tiles[key] = t
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, warnings, err
	}

	lonAxis := l.stitchLon(lonBlocks, latBlocks, tiles)
	latAxis := l.stitchLat(latBlocks, lonBlocks, tiles)

	i0, i1 := inclusiveWindow(lonAxis, lonRange)
	j0, j1 := inclusiveWindow(latAxis, latRange)
	if i0 >= i1 || j0 >= j1 {
		return nil, warnings, fmt.Errorf("%w: lat %v lon %v", ErrEmptyRegion, latRange, lonRange)
	}

	n := l.cfg.TileCells
	alt := mat.NewDense(i1-i0, j1-j0, nil)
	for key, t := range tiles {
		for i := 0; i < n; i++ {
			gi := key.col*n + i
			if gi < i0 || gi >= i1 {
				continue
			}
			for j := 0; j < n; j++ {
				gj := key.row*n + j
				if gj < j0 || gj >= j1 {
					continue
				}
				alt.Set(gi-i0, gj-j0, t.Altitude.At(i, j))
			}
		}
	}

	grid := &Grid{
		Lon:      append([]float64(nil), lonAxis[i0:i1]...),
		Lat:      append([]float64(nil), latAxis[j0:j1]...),
		Altitude: alt,
	}
	diagf("loaded %d of %d tiles, cropped to %dx%d", len(tiles), len(latBlocks)*len(lonBlocks), i1-i0, j1-j0)
	return grid, warnings, nil
}

// stitchLon concatenates the longitude axis of each tile column, taking it
// from the first tile present and synthesising cell centres otherwise.
func (l *Loader) stitchLon(lonBlocks, latBlocks []int, tiles map[tileKey]*Tile) []float64 {
	n := l.cfg.TileCells
	out := make([]float64, 0, n*len(lonBlocks))
	for col, lon := range lonBlocks {
		var axis []float64
		for row := range latBlocks {
			if t, ok := tiles[tileKey{row, col}]; ok {
				axis = t.Lon
				break
			}
		}
		if axis == nil {
			axis = cellCentres(float64(lon), n)
		}
		out = append(out, axis...)
	}
	return out
}

func (l *Loader) stitchLat(latBlocks, lonBlocks []int, tiles map[tileKey]*Tile) []float64 {
	n := l.cfg.TileCells
	out := make([]float64, 0, n*len(latBlocks))
	for row, lat := range latBlocks {
		var axis []float64
		for col := range lonBlocks {
			if t, ok := tiles[tileKey{row, col}]; ok {
				axis = t.Lat
				break
			}
		}
		if axis == nil {
			axis = cellCentres(float64(lat-TileSize), n)
		}
		out = append(out, axis...)
	}
	return out
}

// cellCentres returns n ascending cell-centre coordinates spanning one tile
// from its lower edge.
func cellCentres(lower float64, n int) []float64 {
	step := float64(TileSize) / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = lower + (float64(i)+0.5)*step
	}
	return out
}

// inclusiveWindow returns the half-open index span of axis values inside the
// inclusive range. The axis must be ascending.
func inclusiveWindow(axis []float64, rng [2]float64) (int, int) {
	lo, hi := len(axis), 0
	for i, x := range axis {
		if x >= rng[0] && x <= rng[1] {
			if i < lo {
				lo = i
			}
			hi = i + 1
		}
	}
	return lo, hi
}
