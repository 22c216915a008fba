package ncutil

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// variable is one decoded netCDF-4 variable held in row-major order.
type variable struct {
	data    []float64
	shape   []int
	dims    []string
	fill    float64
	hasFill bool
}

// hdf5 decodes netCDF-4 files. The library hands back whole variables, so
// each one is decoded once and slabs are cut from the cached copy.
type hdf5 struct {
	get     func(name string) (*variable, error)
	release func()
	cache   map[string]*variable
}

func openHDF5(path string) (be *hdf5, err error) {
	defer func() {
		if r := recover(); r != nil {
			be, err = nil, fmt.Errorf("corrupt hdf5 structure: %v", r)
		}
	}()
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	get := func(name string) (*variable, error) {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, err
		}
		return fromAPI(v)
	}
	return newHDF5(get, func() { g.Close() }), nil
}

func newHDF5(get func(string) (*variable, error), release func()) *hdf5 {
	return &hdf5{get: get, release: release, cache: make(map[string]*variable)}
}

func fromAPI(v *api.Variable) (*variable, error) {
	data, shape, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	out := &variable{data: data, shape: shape, dims: v.Dimensions}
	if v.Attributes != nil {
		if attr, ok := v.Attributes.Get("_FillValue"); ok {
			if vals, err := toFloat64s(attr); err == nil && len(vals) > 0 {
				out.fill, out.hasFill = vals[0], true
			}
		}
	}
	return out, nil
}

func (h *hdf5) load(v string) *variable {
	if cached, ok := h.cache[v]; ok {
		return cached
	}
	decoded, err := h.get(v)
	if err != nil {
		return nil
	}
	h.cache[v] = decoded
	return decoded
}

func (h *hdf5) shape(v string) []int {
	if vr := h.load(v); vr != nil {
		return vr.shape
	}
	return nil
}

func (h *hdf5) dims(v string) []string {
	if vr := h.load(v); vr != nil {
		return vr.dims
	}
	return nil
}

func (h *hdf5) fill(v string) (float64, bool) {
	if vr := h.load(v); vr != nil {
		return vr.fill, vr.hasFill
	}
	return 0, false
}

func (h *hdf5) read(v string, begin, end []int, n int) ([]float64, error) {
	vr := h.load(v)
	if vr == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, v)
	}
	start := 0
	if begin != nil {
		start = Offset(begin, vr.shape)
	}
	if n < 0 {
		n = len(vr.data) - start
	}
	if start < 0 || start+n > len(vr.data) {
		return nil, fmt.Errorf("slab [%d,%d) outside %d elements", start, start+n, len(vr.data))
	}
	out := make([]float64, n)
	copy(out, vr.data[start:start+n])
	return out, nil
}

func (h *hdf5) close() error {
	h.release()
	h.cache = nil
	return nil
}

// flatten unrolls the nested slices the netCDF-4 decoder returns for
// multi-dimensional variables into row-major float64 data plus its shape.
func flatten(values interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		vals, err := toFloat64s(values)
		if err != nil {
			return nil, nil, err
		}
		return vals, []int{1}, nil
	}

	var shape []int
	for t := rv; ; {
		shape = append(shape, t.Len())
		if t.Type().Elem().Kind() != reflect.Slice || t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}

	data := make([]float64, 0, product(shape))
	var walk func(reflect.Value, int) error
	walk = func(s reflect.Value, depth int) error {
		if s.Len() != shape[depth] {
			return fmt.Errorf("ragged netcdf-4 variable: axis %d has %d and %d elements", depth, shape[depth], s.Len())
		}
		if depth == len(shape)-1 {
			for i := 0; i < s.Len(); i++ {
				x, err := scalar(s.Index(i))
				if err != nil {
					return err
				}
				data = append(data, x)
			}
			return nil
		}
		for i := 0; i < s.Len(); i++ {
			if err := walk(s.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return data, shape, nil
}

func scalar(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	default:
		return 0, fmt.Errorf("unsupported netcdf element type %s", v.Type())
	}
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
