package configstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/calibright/internal/device"
)

// File is the parsed content of a display configuration file.
type File struct {
	Global   Section               `json:"global"`
	Displays map[device.ID]Section `json:"displays"`
}

// LoadFile reads a display configuration file. The format follows the
// extension: .toml, .yaml or .yml. A missing file yields an empty File,
// which resolves to the defaults.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from service configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{Displays: map[device.ID]Section{}}, nil
		}
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseTOML decodes a TOML configuration. Unknown keys are rejected.
func ParseTOML(data []byte) (File, error) {
	var tables map[string]Section
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&tables)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return File{}, fmt.Errorf("%w: unknown keys: %s", ErrParse, strings.Join(keys, ", "))
	}
	return split(tables), nil
}

// ParseYAML decodes a YAML configuration. Unknown keys are rejected.
func ParseYAML(data []byte) (File, error) {
	var tables map[string]Section
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return split(tables), nil
}

func split(tables map[string]Section) File {
	f := File{Displays: make(map[device.ID]Section, len(tables))}
	for name, sec := range tables {
		if name == GlobalSection {
			f.Global = sec
			continue
		}
		f.Displays[device.ID(name)] = sec
	}
	return f
}
