package memgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"machinerun.io/clearpart"
)

// Layout is the on-disk description of a device graph.
type Layout struct {
	// LabelType is the disklabel InitializeDisk creates. Defaults to gpt.
	LabelType string             `json:"labelType,omitempty"`
	Devices   []clearpart.Device `json:"devices"`
}

// ParseLayout reads a layout in json, or in yaml when isYAML is set.
func ParseLayout(data []byte, isYAML bool) (Layout, error) {
	layout := Layout{}

	if isYAML {
		var raw interface{}

		if err := yaml.Unmarshal(data, &raw); err != nil {
			return layout, fmt.Errorf("failed to parse yaml layout: %s", err)
		}

		// go through json so the enum and tag handling is shared.
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return layout, fmt.Errorf("failed to convert yaml layout: %s", err)
		}
	}

	if err := json.Unmarshal(data, &layout); err != nil {
		return layout, fmt.Errorf("failed to parse layout: %s", err)
	}

	return layout, nil
}

// ReadLayout reads the layout file at path. Files ending in .yaml or .yml
// are yaml, everything else json.
func ReadLayout(path string) (Layout, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))

	layout, err := ParseLayout(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return layout, fmt.Errorf("%s: %s", path, err)
	}

	return layout, nil
}

// FromLayout returns a graph holding the layout's devices.
func FromLayout(layout Layout) (*Graph, error) {
	g, err := New(layout.Devices...)
	if err != nil {
		return nil, err
	}

	if layout.LabelType != "" {
		g.LabelType = layout.LabelType
	}

	return g, nil
}

// Load returns a graph for the layout file at path. Populate re-reads the
// file.
func Load(path string) (*Graph, error) {
	layout, err := ReadLayout(path)
	if err != nil {
		return nil, err
	}

	g, err := FromLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", path, err)
	}

	g.reload = func() ([]clearpart.Device, error) {
		l, err := ReadLayout(path)
		return l.Devices, err
	}

	return g, nil
}

// Layout returns the current state of the graph as a Layout.
func (g *Graph) Layout() Layout {
	return Layout{LabelType: g.LabelType, Devices: g.Devices()}
}

// Scanned returns a graph holding what scan finds. Populate scans again.
func Scanned(scan func() ([]clearpart.Device, error)) (*Graph, error) {
	devs, err := scan()
	if err != nil {
		return nil, err
	}

	g, err := New(devs...)
	if err != nil {
		return nil, err
	}

	g.reload = scan

	return g, nil
}

// MarshalLayout encodes a layout as indented json, or as yaml when isYAML
// is set. ParseLayout reads both back.
func MarshalLayout(layout Layout, isYAML bool) ([]byte, error) {
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil || !isYAML {
		return data, err
	}

	var raw interface{}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return yaml.Marshal(integers(raw))
}

// integers replaces the json numbers in v by int64, so yaml does not write
// sizes in exponent notation.
func integers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = integers(e)
		}
	case []interface{}:
		for i, e := range t {
			t[i] = integers(e)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}

		f, _ := t.Float64()

		return f
	}

	return v
}

// WriteLayout writes layout to path, as yaml if path ends in .yaml or .yml.
func WriteLayout(path string, layout Layout) error {
	ext := strings.ToLower(filepath.Ext(path))

	data, err := MarshalLayout(layout, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, data, 0o644) //nolint:gosec
}
