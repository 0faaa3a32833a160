// Package params holds the label to camera-code tables used when setting
// the aperture and shutter speed. The tables are firmware specific, so the
// embedded defaults can be replaced by a YAML file at startup.
package params

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// ErrUnknownLabel is matched by every LookupError.
var ErrUnknownLabel = errors.New("unknown label")

// LookupError reports a label missing from a table.
type LookupError struct {
	Table string
	Label string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: unknown label %q", e.Table, e.Label)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrUnknownLabel
}

type entry struct {
	Label string `yaml:"label"`
	Code  string `yaml:"code"`
}

type file struct {
	FStop   []entry `yaml:"fstop"`
	Shutter []entry `yaml:"shutter"`
}

// table is an ordered, read-only label to code mapping
type table struct {
	name   string
	labels []string
	codes  map[string]string
}

func newTable(name string, entries []entry) (table, error) {
	t := table{
		name:   name,
		labels: make([]string, 0, len(entries)),
		codes:  make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if e.Label == "" || e.Code == "" {
			return table{}, fmt.Errorf("%s: entry with empty label or code", name)
		}
		if _, dup := t.codes[e.Label]; dup {
			return table{}, fmt.Errorf("%s: duplicate label %q", name, e.Label)
		}
		t.labels = append(t.labels, e.Label)
		t.codes[e.Label] = e.Code
	}
	return t, nil
}

func (t table) lookup(label string) (string, error) {
	code, ok := t.codes[label]
	if !ok {
		return "", &LookupError{Table: t.name, Label: label}
	}
	return code, nil
}

func (t table) list() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Tables maps human labels to the codes the camera expects for the
// "focal" and "shtrspeed" settings. A Tables value is immutable.
type Tables struct {
	fstop   table
	shutter table
}

// Parse decodes tables from YAML.
func Parse(data []byte) (*Tables, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode tables: %w", err)
	}

	fstop, err := newTable("fstop", f.FStop)
	if err != nil {
		return nil, err
	}
	shutter, err := newTable("shutter", f.Shutter)
	if err != nil {
		return nil, err
	}
	return &Tables{fstop: fstop, shutter: shutter}, nil
}

// Load reads tables from a YAML file. An empty path returns the defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded tables.
func Default() *Tables {
	t, err := Parse(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("params: embedded tables are invalid: %v", err))
	}
	return t
}

// Aperture returns the code for an f-stop label such as "2.8".
func (t *Tables) Aperture(label string) (string, error) {
	return t.fstop.lookup(label)
}

// ShutterSpeed returns the code for a shutter label such as "1/250" or "2s".
func (t *Tables) ShutterSpeed(label string) (string, error) {
	return t.shutter.lookup(label)
}

func (t *Tables) ApertureLabels() []string { return t.fstop.list() }

func (t *Tables) ShutterLabels() []string { return t.shutter.list() }
