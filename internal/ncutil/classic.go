package ncutil

import (
	"errors"
	"os"

	"github.com/ctessum/cdf"
)

// classic decodes CDF-1 and CDF-2 files.
type classic struct {
	fd *os.File
	nc *cdf.File
}

func openClassic(fd *os.File) (*classic, error) {
	nc, err := cdf.Open(readOnly{fd})
	if err != nil {
		return nil, err
	}
	return &classic{fd: fd, nc: nc}, nil
}

func (c *classic) shape(v string) []int   { return c.nc.Header.Lengths(v) }
func (c *classic) dims(v string) []string { return c.nc.Header.Dimensions(v) }
func (c *classic) close() error           { return c.fd.Close() }

func (c *classic) read(v string, begin, end []int, n int) ([]float64, error) {
	r := c.nc.Reader(v, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return toFloat64s(buf)
}

func (c *classic) fill(v string) (float64, bool) {
	attr := c.nc.Header.GetAttribute(v, "_FillValue")
	if attr == nil {
		return 0, false
	}
	vals, err := toFloat64s(attr)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// readOnly adapts a read-only file to the reader/writer pair the cdf package
// expects. Writes are rejected.
type readOnly struct {
	*os.File
}

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, errors.New("netcdf file opened read-only")
}
