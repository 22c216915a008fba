package bellhop

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seaenv/internal/boundary"
	"github.com/banshee-data/seaenv/internal/fsutil"
)

func sampleTables(t *testing.T) (*boundary.Table, *boundary.Table) {
	t.Helper()
	freqs := []float64{100}
	top, err := boundary.SurfaceLoss(2, 1500, freqs)
	require.NoError(t, err)
	stack, err := boundary.BottomType("IMG", 1490, 0.05)
	require.NoError(t, err)
	bottom, err := boundary.BottomLoss(stack, freqs)
	require.NoError(t, err)
	return &top, &bottom
}

func TestWriter_Write(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	top, bottom := sampleTables(t)
	base := filepath.Join("/out", "Shallow", "G1", "Rr1", EnvFolder, "ENV_G1_Rr2Km")

	require.NoError(t, NewWriter(mfs).Write(base, sampleInput(), top, bottom))

	want := []string{base + ExtBrc, base + ExtBty, base + ExtEnv, base + ExtSSP, base + ExtTrc}
	assert.Equal(t, want, mfs.Files("/out"))

	env, err := mfs.ReadFile(base + ExtEnv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(env), "'Acoustic Calculation G1_Rr2Km' ! Title \n"))

	brc, err := mfs.ReadFile(base + ExtBrc)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(brc)), "\n"), 1+boundary.NumAngles)
}

func TestWriter_RejectsInvalidInput(t *testing.T) {
	top, bottom := sampleTables(t)

	testCases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"empty title", func(in *Input) { in.Title = "" }},
		{"quoted title", func(in *Input) { in.Title = "Acoustic Calculation O'Hare_Rr2Km" }},
		{"multiline title", func(in *Input) { in.Title = "Acoustic\nCalculation" }},
		{"zero frequency", func(in *Input) { in.Frequency = 0 }},
		{"no media", func(in *Input) { in.SSP.Media = nil }},
		{"interface depth count", func(in *Input) { in.SSP.Depths = []float64{0} }},
		{"empty medium", func(in *Input) { in.SSP.Media[0].Points = nil }},
		{"empty bottom option", func(in *Input) { in.Bottom.Option = "" }},
		{"empty run type", func(in *Input) { in.Beam.RunType = "" }},
		{"no receivers", func(in *Input) { in.ReceiverDepths = nil }},
		{"ragged bathymetry", func(in *Input) { in.Bathymetry.Depth = in.Bathymetry.Depth[:2] }},
		{"missing ssp grid", func(in *Input) { in.RangeSSP.Speed = nil }},
		{"ssp grid columns", func(in *Input) { in.RangeSSP.Speed = mat.NewDense(2, 2, nil) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mfs := fsutil.NewMemoryFileSystem()
			in := sampleInput()
			tc.mutate(in)

			err := NewWriter(mfs).Write("/out/ENV_x", in, top, bottom)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
			assert.Empty(t, mfs.Files("/out"))
		})
	}
}

func TestWriter_RequiresTables(t *testing.T) {
	top, _ := sampleTables(t)
	err := NewWriter(fsutil.NewMemoryFileSystem()).Write("/out/ENV_x", sampleInput(), top, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWriter_OnDisk(t *testing.T) {
	dir := t.TempDir()
	top, bottom := sampleTables(t)
	base := filepath.Join(dir, "Deep", "G9", "Rr1", EnvFolder, "ENV_G9_Rr2Km")

	require.NoError(t, NewWriter(nil).Write(base, sampleInput(), top, bottom))

	osfs := fsutil.OSFileSystem{}
	for _, ext := range append([]string{ExtEnv}, AuxExtensions...) {
		assert.True(t, osfs.Exists(base+ext), "missing %s", ext)
	}
}

func TestInput_WithFrequency(t *testing.T) {
	in := sampleInput()
	out := in.WithFrequency(250)

	assert.Equal(t, 250.0, out.Frequency)
	assert.Equal(t, 100.0, in.Frequency)
	assert.Equal(t, in.Title, out.Title)
	assert.Same(t, in.RangeSSP.Speed, out.RangeSSP.Speed)
}

func TestLayout(t *testing.T) {
	dir, err := UnitDir("/out", "Transition", "G 7/../x", 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/out/Transition/G_7_.._x/Rr2/envfilefolder"), dir)

	_, err = UnitDir("/out", "Abyssal", "G1", 1)
	assert.Error(t, err)
	_, err = UnitDir("/out", "Deep", "G1", 0)
	assert.Error(t, err)

	assert.Equal(t, "ENV_G1_Rr5Km", BaseName("G1", 5))
	assert.Equal(t, "ENV_G1_Rr2.5Km", BaseName("G1", 2.5))
	assert.Equal(t, "Acoustic Calculation G1_Rr10Km", Title("G1", 10))
	assert.Equal(t, "Acoustic Calculation O_Hare_Rr10Km", Title("O'Hare", 10))
	assert.NotContains(t, Title("it's\n", 1), "'")
}
