// Package ncutil reads numeric variables from netCDF files. Classic (CDF-1
// and CDF-2) files and netCDF-4 files stored as HDF5 are both accepted.
package ncutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrMissingVariable is returned when a requested variable is absent.
var ErrMissingVariable = errors.New("netcdf variable not found")

// ErrUnknownFormat is returned for files that are neither netCDF classic nor
// HDF5.
var ErrUnknownFormat = errors.New("not a netcdf classic or netcdf-4 file")

// missingThreshold flags values above this magnitude as fill values when the
// variable carries no _FillValue attribute.
const missingThreshold = 1e30

var (
	classicMagic = []byte("CDF")
	hdf5Magic    = []byte("\x89HDF\r\n\x1a\n")
)

// backend is one on-disk encoding.
type backend interface {
	// shape returns nil when v is absent.
	shape(v string) []int
	dims(v string) []string
	// read returns the row-major run between begin and end; nil bounds read
	// the whole variable.
	read(v string, begin, end []int, n int) ([]float64, error)
	// fill returns the _FillValue attribute, if any.
	fill(v string) (float64, bool)
	close() error
}

// File is an open netCDF file.
type File struct {
	path string
	be   backend
}

// Open opens path for reading, choosing the decoder from the file signature.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, len(hdf5Magic))
	n, err := io.ReadFull(fd, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		fd.Close()
		return nil, fmt.Errorf("failed to read netcdf signature %s: %w", path, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, classicMagic):
		be, err := openClassic(fd)
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("failed to parse netcdf header %s: %w", path, err)
		}
		return &File{path: path, be: be}, nil
	case bytes.Equal(head, hdf5Magic):
		fd.Close()
		be, err := openHDF5(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse netcdf-4 file %s: %w", path, err)
		}
		return &File{path: path, be: be}, nil
	default:
		fd.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Close releases the underlying file.
func (f *File) Close() error {
	return f.be.close()
}

// Shape returns the dimension lengths of variable v.
func (f *File) Shape(v string) ([]int, error) {
	dims := f.be.shape(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, v)
	}
	return dims, nil
}

// Dims returns the dimension names of variable v.
func (f *File) Dims(v string) []string {
	return f.be.dims(v)
}

// ReadAll reads every element of v in row-major order. Fill values become NaN.
func (f *File) ReadAll(v string) ([]float64, []int, error) {
	dims, err := f.Shape(v)
	if err != nil {
		return nil, nil, err
	}
	out, err := f.be.read(v, nil, nil, -1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", v, err)
	}
	f.maskFill(v, out)
	return out, dims, nil
}

// ReadSlab reads the contiguous row-major run of v between the begin and end
// index vectors. Fill values become NaN.
func (f *File) ReadSlab(v string, begin, end []int) ([]float64, error) {
	dims, err := f.Shape(v)
	if err != nil {
		return nil, err
	}
	if len(begin) != len(dims) || len(end) != len(dims) {
		return nil, fmt.Errorf("%s: slab rank %d/%d does not match variable rank %d", v, len(begin), len(end), len(dims))
	}
	n := Offset(end, dims) - Offset(begin, dims)
	if n <= 0 {
		return nil, fmt.Errorf("%s: empty slab", v)
	}
	out, err := f.be.read(v, begin, end, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", v, err)
	}
	f.maskFill(v, out)
	return out, nil
}

// Offset converts a multi-dimensional index into a row-major element offset.
func Offset(index, dims []int) int {
	off := 0
	for i := range index {
		mul := 1
		for j := i + 1; j < len(index); j++ {
			mul *= dims[j]
		}
		off += index[i] * mul
	}
	return off
}

func (f *File) maskFill(v string, data []float64) {
	fill, ok := f.be.fill(v)
	if !ok {
		fill = math.NaN()
	}
	for i, x := range data {
		if x == fill || math.Abs(x) > missingThreshold {
			data[i] = math.NaN()
		}
	}
}

func toFloat64s(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		out := make([]float64, len(b))
		copy(out, b)
		return out, nil
	case []float32:
		return widen(b), nil
	case []int64:
		return widen(b), nil
	case []int32:
		return widen(b), nil
	case []int16:
		return widen(b), nil
	case []int8:
		return widen(b), nil
	case []uint16:
		return widen(b), nil
	case []uint8:
		return widen(b), nil
	case float64:
		return []float64{b}, nil
	case float32:
		return []float64{float64(b)}, nil
	case int32:
		return []float64{float64(b)}, nil
	case int16:
		return []float64{float64(b)}, nil
	case int8:
		return []float64{float64(b)}, nil
	default:
		return nil, fmt.Errorf("unsupported netcdf element type %T", buf)
	}
}

type number interface {
	~float32 | ~int64 | ~int32 | ~int16 | ~int8 | ~uint16 | ~uint8
}

func widen[T number](b []T) []float64 {
	out := make([]float64, len(b))
	for i, x := range b {
		out[i] = float64(x)
	}
	return out
}
