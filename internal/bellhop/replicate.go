package bellhop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/seaenv/internal/fsutil"
	"github.com/banshee-data/seaenv/internal/units"
)

// Replication file names.
const (
	ManifestName  = "env_files_list.txt"
	ReplicaPrefix = "test_"
	templateGlob  = "ENV*" + ExtEnv
)

var (
	// ErrNoTemplate is returned when a folder holds no ENV*.env file.
	ErrNoTemplate = errors.New("no template .env file")
	// ErrNoFrequencies is returned for an empty frequency list.
	ErrNoFrequencies = errors.New("frequency list is empty")
)

// Replicate clones the folder's template .env once per frequency as
// test_<i>.env (i from 1), rewriting only the frequency line, copies the
// template's auxiliary files alongside each clone and writes the manifest.
// It returns the generated base names in manifest order.
func Replicate(fsys fsutil.FileSystem, folder string, freqs []float64) ([]string, error) {
	if err := validateFrequencies(freqs); err != nil {
		return nil, err
	}

	templates, err := fsys.Glob(filepath.Join(folder, templateGlob))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates in %s: %w", folder, err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTemplate, folder)
	}
	template := templates[0]
	if len(templates) > 1 {
		tracef("%s: %d templates, using %s", folder, len(templates), filepath.Base(template))
	}

	data, err := fsys.ReadFile(template)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) < 2 || lines[1] == "" {
		return nil, fmt.Errorf("template %s has no frequency line", template)
	}

	templateBase := strings.TrimSuffix(template, ExtEnv)
	var aux []string
	auxData := make(map[string][]byte)
	for _, ext := range AuxExtensions {
		if !fsys.Exists(templateBase + ext) {
			continue
		}
		b, err := fsys.ReadFile(templateBase + ext)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", templateBase+ext, err)
		}
		aux = append(aux, ext)
		auxData[ext] = b
	}

	names := make([]string, 0, len(freqs))
	for i, freq := range freqs {
		name := ReplicaName(i + 1)
		base := filepath.Join(folder, name)

		clone := make([]string, len(lines))
		copy(clone, lines)
		clone[1] = FrequencyLine(freq)
		if err := fsys.WriteFile(base+ExtEnv, []byte(strings.Join(clone, "")), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", base+ExtEnv, err)
		}
		for _, ext := range aux {
			if err := fsys.WriteFile(base+ext, auxData[ext], 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", base+ext, err)
			}
		}
		names = append(names, name)
	}

	if err := WriteManifest(fsys, folder, names); err != nil {
		return nil, err
	}

	diagf("%s: %d replicas from %s (%d auxiliary files each)", folder, len(names), filepath.Base(template), len(aux))
	return names, nil
}

// WriteManifest writes the replica base names, one per line, into folder.
func WriteManifest(fsys fsutil.FileSystem, folder string, names []string) error {
	var manifest strings.Builder
	for _, n := range names {
		manifest.WriteString(n)
		manifest.WriteByte('\n')
	}
	if err := fsys.WriteFile(filepath.Join(folder, ManifestName), []byte(manifest.String()), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReplicaName returns the base name of the i-th replica, counting from 1.
func ReplicaName(i int) string {
	return ReplicaPrefix + strconv.Itoa(i)
}

// ReplicaStats tallies a tree replication.
type ReplicaStats struct {
	Folders int
	Files   int
	Success int
	Failed  int
	Skipped int
}

// PathCheck rejects a discovered folder that must not be written. It receives
// the folder and the tree root.
type PathCheck func(path, root string) error

// ReplicateTree replicates every <root>/<zone>/*/Rr*/envfilefolder. A folder
// that fails is logged and counted against all of its frequencies; the walk
// continues. Folders without a template are skipped. ctx is checked between
// folders.
func ReplicateTree(ctx context.Context, fsys fsutil.FileSystem, root string, freqs []float64, check PathCheck) (ReplicaStats, error) {
	var stats ReplicaStats
	if err := validateFrequencies(freqs); err != nil {
		return stats, err
	}

	for _, zone := range units.ZoneTypes {
		folders, err := fsys.Glob(filepath.Join(root, zone, "*", "Rr*", EnvFolder))
		if err != nil {
			return stats, fmt.Errorf("failed to list %s units: %w", zone, err)
		}
		for _, folder := range folders {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if info, err := fsys.Stat(folder); err != nil || !info.IsDir() {
				continue
			}
			if check != nil {
				if err := check(folder, root); err != nil {
					opsf("refusing %s: %v", folder, err)
					stats.Failed += len(freqs)
					stats.Files += len(freqs)
					stats.Folders++
					continue
				}
			}

			stats.Folders++
			_, err := Replicate(fsys, folder, freqs)
			switch {
			case errors.Is(err, ErrNoTemplate):
				opsf("no template in %s, skipping", folder)
				stats.Skipped++
			case err != nil:
				opsf("replication failed for %s: %v", folder, err)
				stats.Failed += len(freqs)
				stats.Files += len(freqs)
			default:
				stats.Success += len(freqs)
				stats.Files += len(freqs)
			}
		}
	}

	diagf("replicated %d folders: %d files, %d ok, %d failed, %d skipped",
		stats.Folders, stats.Files, stats.Success, stats.Failed, stats.Skipped)
	return stats, nil
}

// ReadFrequencies reads a frequency list in Hz. The file is either a JSON
// array of numbers or whitespace and comma separated text. Order is kept and
// duplicates are allowed.
func ReadFrequencies(fsys fsutil.FileSystem, path string) ([]float64, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frequency list: %w", err)
	}
	freqs, err := ParseFrequencies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return freqs, nil
}

// ParseFrequencies parses the frequency list formats accepted by ReadFrequencies.
func ParseFrequencies(data []byte) ([]float64, error) {
	text := strings.TrimSpace(string(data))
	var freqs []float64
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &freqs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON frequency list: %w", err)
		}
	} else {
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid frequency %q: %w", f, err)
			}
			freqs = append(freqs, v)
		}
	}
	if err := validateFrequencies(freqs); err != nil {
		return nil, err
	}
	return freqs, nil
}

func validateFrequencies(freqs []float64) error {
	if len(freqs) == 0 {
		return ErrNoFrequencies
	}
	for _, f := range freqs {
		if !(f > 0) || math.IsInf(f, 0) {
			return fmt.Errorf("frequency must be positive and finite, got %v", f)
		}
	}
	return nil
}
