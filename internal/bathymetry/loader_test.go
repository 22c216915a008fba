package bathymetry

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seaenv/internal/ncutil"
)

type memReader struct {
	tiles map[string]*Tile
	err   error
}

func (m memReader) ReadTile(_ context.Context, path string) (*Tile, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tiles[filepath.Base(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return t, nil
}

func constantTile(latBlock, lonBlock, n int, alt float64) *Tile {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, alt)
		}
	}
	return &Tile{
		Lon:      cellCentres(float64(lonBlock), n),
		Lat:      cellCentres(float64(latBlock-TileSize), n),
		Altitude: a,
	}
}

func TestLoadWithMissingTile(t *testing.T) {
	reader := memReader{tiles: map[string]*Tile{
		TileName(DefaultPrefix, 15, 90) + ".nc": constantTile(15, 90, 4, -100),
	}}
	l := NewLoader(LoaderConfig{TileCells: 4}, reader)

	grid, warnings, err := l.Load(context.Background(), [2]float64{1, 14}, [2]float64{100.5, 119})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "N15E105")

	rows, cols := grid.Altitude.Dims()
	assert.Equal(t, 5, rows, "one column from the present tile, four from the missing one")
	assert.Equal(t, 4, cols)
	assert.Len(t, grid.Lon, rows)
	assert.Len(t, grid.Lat, cols)

	for j := 0; j < cols; j++ {
		assert.Equal(t, -100.0, grid.Altitude.At(0, j))
		for i := 1; i < rows; i++ {
			assert.Equal(t, 0.0, grid.Altitude.At(i, j))
		}
	}
	assert.InDelta(t, 103.125, grid.Lon[0], 1e-12)
	assert.InDelta(t, 118.125, grid.Lon[4], 1e-12)
}

func TestLoadEmptyRegion(t *testing.T) {
	l := NewLoader(LoaderConfig{TileCells: 4}, memReader{})
	// a window narrower than the cell spacing selects no sample
	_, _, err := l.Load(context.Background(), [2]float64{2, 2.1}, [2]float64{100.1, 100.2})
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestLoadPropagatesReadErrors(t *testing.T) {
	boom := errors.New("corrupt header")
	l := NewLoader(LoaderConfig{TileCells: 4}, memReader{err: boom})
	_, _, err := l.Load(context.Background(), [2]float64{1, 2}, [2]float64{100, 101})
	assert.ErrorIs(t, err, boom)
}

func TestLoadRejectsWrongTileShape(t *testing.T) {
	reader := memReader{tiles: map[string]*Tile{
		TileName(DefaultPrefix, 15, 90) + ".nc": constantTile(15, 90, 3, -10),
	}}
	l := NewLoader(LoaderConfig{TileCells: 4}, reader)
	_, _, err := l.Load(context.Background(), [2]float64{1, 2}, [2]float64{100, 101})
	assert.Error(t, err)
}

func TestLoadStitchesAcrossLatitudeEdge(t *testing.T) {
	reader := memReader{tiles: map[string]*Tile{
		TileName(DefaultPrefix, 15, 90) + ".nc": constantTile(15, 90, 4, -100),
		TileName(DefaultPrefix, 30, 90) + ".nc": constantTile(30, 90, 4, -200),
	}}
	l := NewLoader(LoaderConfig{TileCells: 4}, reader)
	grid, warnings, err := l.Load(context.Background(), [2]float64{10, 20}, [2]float64{90, 104})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	// one latitude centre from each side of the 15° edge
	assert.Equal(t, []float64{13.125, 16.875}, grid.Lat)
	assert.Equal(t, -100.0, grid.Altitude.At(0, 0))
	assert.Equal(t, -200.0, grid.Altitude.At(0, 1))
}

func TestNetCDFReaderTransposes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.nc")
	// z stored (lat, lon): lat 2 rows, lon 3 columns
	require.NoError(t, ncutil.WriteFile(path, []string{"lat", "lon"}, []int{2, 3}, []ncutil.Variable{
		{Name: "lon", Dims: []string{"lon"}, Data: []float32{1, 2, 3}},
		{Name: "lat", Dims: []string{"lat"}, Data: []float32{10, 20}},
		{Name: "z", Dims: []string{"lat", "lon"}, Data: []float32{1, 2, 3, 4, 5, 6}},
	}))

	tile, err := NetCDFReader{}.ReadTile(context.Background(), path)
	require.NoError(t, err)
	r, c := tile.Altitude.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 4.0, tile.Altitude.At(0, 1))
	assert.Equal(t, 3.0, tile.Altitude.At(2, 0))
}

func TestNetCDFReaderMissingFile(t *testing.T) {
	_, err := NetCDFReader{}.ReadTile(context.Background(), filepath.Join(t.TempDir(), "absent.nc"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
