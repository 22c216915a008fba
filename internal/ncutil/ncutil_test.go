package ncutil

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGrid(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.nc")
	err := WriteFile(path,
		[]string{"depth", "lat", "lon"}, []int{2, 2, 3},
		[]Variable{
			{Name: "lon", Dims: []string{"lon"}, Data: []float32{10, 11, 12}},
			{Name: "lat", Dims: []string{"lat"}, Data: []float32{-1, 1}},
			{
				Name:  "t_an",
				Dims:  []string{"depth", "lat", "lon"},
				Data:  []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 9.96921e36},
				Attrs: map[string]interface{}{"_FillValue": []float32{9.96921e36}},
			},
		})
	require.NoError(t, err)
	return path
}

func TestReadAll(t *testing.T) {
	f, err := Open(writeGrid(t))
	require.NoError(t, err)
	defer f.Close()

	data, dims, err := f.ReadAll("t_an")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, dims)
	require.Len(t, data, 12)
	assert.Equal(t, 1.0, data[0])
	assert.True(t, math.IsNaN(data[11]), "fill value must become NaN")

	lon, _, err := f.ReadAll("lon")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, lon)
}

func TestReadSlab(t *testing.T) {
	f, err := Open(writeGrid(t))
	require.NoError(t, err)
	defer f.Close()

	layer, err := f.ReadSlab("t_an", []int{1, 0, 0}, []int{2, 0, 0})
	require.NoError(t, err)
	require.Len(t, layer, 6)
	assert.Equal(t, 7.0, layer[0])
	assert.True(t, math.IsNaN(layer[5]))
}

func TestMissingVariable(t *testing.T) {
	f, err := Open(writeGrid(t))
	require.NoError(t, err)
	defer f.Close()

	_, _, err = f.ReadAll("z")
	assert.ErrorIs(t, err, ErrMissingVariable)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.nc"))
	assert.Error(t, err)
}

func TestOffset(t *testing.T) {
	testCases := []struct {
		name  string
		index []int
		dims  []int
		want  int
	}{
		{"origin", []int{0, 0, 0}, []int{2, 3, 4}, 0},
		{"last axis", []int{0, 0, 3}, []int{2, 3, 4}, 3},
		{"middle axis", []int{0, 2, 0}, []int{2, 3, 4}, 8},
		{"first axis end", []int{2, 0, 0}, []int{2, 3, 4}, 24},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Offset(tc.index, tc.dims))
		})
	}
}

func TestDims(t *testing.T) {
	f, err := Open(writeGrid(t))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"depth", "lat", "lon"}, f.Dims("t_an"))
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, os.WriteFile(path, []byte("GRIB2 payload"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpenRoutesHDF5Signature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	body := append([]byte("\x89HDF\r\n\x1a\n"), make([]byte, 64)...)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "netcdf-4")
}

func TestFlatten(t *testing.T) {
	testCases := []struct {
		name      string
		values    interface{}
		wantData  []float64
		wantShape []int
	}{
		{"vector", []float32{1.5, 2.5}, []float64{1.5, 2.5}, []int{2}},
		{"matrix", [][]float64{{1, 2, 3}, {4, 5, 6}}, []float64{1, 2, 3, 4, 5, 6}, []int{2, 3}},
		{"cube of shorts", [][][]int16{{{1, 2}}, {{3, 4}}}, []float64{1, 2, 3, 4}, []int{2, 1, 2}},
		{"scalar", float32(7), []float64{7}, []int{1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, shape, err := flatten(tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.wantData, data)
			assert.Equal(t, tc.wantShape, shape)
		})
	}
}

func TestFlattenRejectsRaggedAndText(t *testing.T) {
	_, _, err := flatten([][]float32{{1, 2}, {3}})
	assert.Error(t, err)

	_, _, err = flatten([]string{"a"})
	assert.Error(t, err)
}

// nativeGrid serves the same grid as writeGrid through the netCDF-4 decoder
// path, shaped the way the HDF5 reader returns it.
func nativeGrid(t *testing.T) *File {
	t.Helper()
	vars := map[string]*variable{}
	add := func(name string, dims []string, values interface{}, fill *float32) {
		data, shape, err := flatten(values)
		require.NoError(t, err)
		v := &variable{data: data, shape: shape, dims: dims}
		if fill != nil {
			v.fill, v.hasFill = float64(*fill), true
		}
		vars[name] = v
	}
	fill := float32(-999)
	add("lon", []string{"lon"}, []float32{10, 11, 12}, nil)
	add("t_an", []string{"depth", "lat", "lon"}, [][][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, -999}},
	}, &fill)

	released := false
	be := newHDF5(func(name string) (*variable, error) {
		if v, ok := vars[name]; ok {
			return v, nil
		}
		return nil, errors.New("no such variable")
	}, func() { released = true })
	t.Cleanup(func() { assert.True(t, released) })
	return &File{path: "native.nc", be: be}
}

func TestNetCDF4Backend(t *testing.T) {
	f := nativeGrid(t)
	defer f.Close()

	data, dims, err := f.ReadAll("t_an")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, dims)
	assert.Equal(t, []string{"depth", "lat", "lon"}, f.Dims("t_an"))
	require.Len(t, data, 12)
	assert.Equal(t, 1.0, data[0])
	assert.True(t, math.IsNaN(data[11]), "fill value must become NaN")

	layer, err := f.ReadSlab("t_an", []int{1, 0, 0}, []int{2, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9, 10, 11}, layer[:5])
	assert.True(t, math.IsNaN(layer[5]))

	lon, _, err := f.ReadAll("lon")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, lon)

	_, _, err = f.ReadAll("z")
	assert.ErrorIs(t, err, ErrMissingVariable)
}
