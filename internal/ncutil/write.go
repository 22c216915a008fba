package ncutil

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// Variable describes one float32 variable to write with WriteFile.
type Variable struct {
	Name  string
	Dims  []string
	Data  []float32
	Attrs map[string]interface{}
}

// WriteFile creates a netCDF classic file at path holding the given fixed
// dimensions and float32 variables.
func WriteFile(path string, dims []string, lengths []int, vars []Variable) error {
	if len(dims) != len(lengths) {
		return fmt.Errorf("dimension names (%d) and lengths (%d) differ", len(dims), len(lengths))
	}
	h := cdf.NewHeader(dims, lengths)
	for _, v := range vars {
		h.AddVariable(v.Name, v.Dims, []float32{0})
		for name, val := range v.Attrs {
			h.AddAttribute(v.Name, name, val)
		}
	}
	h.Define()

	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	f, err := cdf.Create(fd, h)
	if err != nil {
		return fmt.Errorf("failed to create netcdf %s: %w", path, err)
	}
	for _, v := range vars {
		end := f.Header.Lengths(v.Name)
		start := make([]int, len(end))
		w := f.Writer(v.Name, start, end)
		if _, err := w.Write(v.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", v.Name, err)
		}
	}
	return nil
}
