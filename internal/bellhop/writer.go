package bellhop

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/seaenv/internal/boundary"
	"github.com/banshee-data/seaenv/internal/fsutil"
)

// Writer emits propagation inputs onto a filesystem.
type Writer struct {
	fs fsutil.FileSystem
}

// NewWriter returns a Writer over fsys. A nil fsys writes to disk.
func NewWriter(fsys fsutil.FileSystem) *Writer {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Writer{fs: fsys}
}

// Write validates in and writes base+.env, .bty, .ssp, .trc and .brc. The
// directory of base is created if needed.
func (w *Writer) Write(base string, in *Input, top, bottom *boundary.Table) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if top == nil || bottom == nil {
		return fmt.Errorf("%w: reflection tables are required", ErrInvalidInput)
	}
	if err := w.fs.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		ext   string
		write func(io.Writer) error
	}{
		{ExtEnv, func(out io.Writer) error { return WriteEnv(out, in) }},
		{ExtBty, func(out io.Writer) error { return WriteBty(out, in.Bathymetry) }},
		{ExtSSP, func(out io.Writer) error { return WriteSSP(out, in.RangeSSP) }},
		{ExtTrc, func(out io.Writer) error { return WriteReflection(out, top) }},
		{ExtBrc, func(out io.Writer) error { return WriteReflection(out, bottom) }},
	}
	for _, f := range files {
		if err := w.create(base+f.ext, f.write); err != nil {
			return err
		}
	}
	diagf("wrote %s.{env,bty,ssp,trc,brc} (%.2f Hz)", base, in.Frequency)
	return nil
}

func (w *Writer) create(name string, write func(io.Writer) error) (err error) {
	f, err := w.fs.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", name, cerr)
		}
	}()

	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	tracef("wrote %s", name)
	return nil
}
