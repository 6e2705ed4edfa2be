package preprocess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Manifest records the class list of every encoded column, in the order
// the columns were encoded.
type Manifest struct {
	Columns []string
	Classes map[string][]string
}

func NewManifest() Manifest {
	return Manifest{Classes: map[string][]string{}}
}

// Set records classes for col, appending col to the column order on first
// use.
func (m *Manifest) Set(col string, classes []string) {
	if m.Classes == nil {
		m.Classes = map[string][]string{}
	}
	if _, ok := m.Classes[col]; !ok {
		m.Columns = append(m.Columns, col)
	}
	m.Classes[col] = slices.Clone(classes)
}

// Encoder rebuilds the label encoder for col.
func (m Manifest) Encoder(col string) (*LabelEncoder, error) {
	classes, ok := m.Classes[col]
	if !ok {
		return nil, fmt.Errorf("no classes recorded for column %q", col)
	}
	return NewLabelEncoder(classes), nil
}

// isYAML reports whether name selects the YAML manifest format.
func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Encode serializes the manifest in the format implied by the extension of
// name: YAML for .yaml/.yml, JSON otherwise.
func (m Manifest) Encode(name string) ([]byte, error) {
	if isYAML(name) {
		return m.MarshalYAML()
	}
	return m.MarshalJSON()
}

// MarshalJSON writes a single-line object with ", " and ": " separators,
// keys in column order and no trailing newline.
func (m Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range m.Columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := writeJSONString(&buf, col); err != nil {
			return nil, err
		}
		buf.WriteString(": [")
		for j, class := range m.Classes[col] {
			if j > 0 {
				buf.WriteString(", ")
			}
			if err := writeJSONString(&buf, class); err != nil {
				return nil, err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding %q: %w", s, err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

func (m Manifest) MarshalYAML() ([]byte, error) {
	doc := make(yaml.MapSlice, 0, len(m.Columns))
	for _, col := range m.Columns {
		doc = append(doc, yaml.MapItem{Key: col, Value: m.Classes[col]})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf, yaml.Indent(2), yaml.IndentSequence(true))
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses a manifest written by Encode. Known categorical
// columns come first in the resulting order, any others follow sorted.
func DecodeManifest(name string, data []byte) (Manifest, error) {
	var raw map[string][]string
	var err error
	if isYAML(name) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest %s: %w", name, err)
	}

	m := NewManifest()
	for _, col := range CategoricalColumns {
		if classes, ok := raw[col]; ok {
			m.Set(col, classes)
			delete(raw, col)
		}
	}
	rest := make([]string, 0, len(raw))
	for col := range raw {
		rest = append(rest, col)
	}
	slices.Sort(rest)
	for _, col := range rest {
		m.Set(col, raw[col])
	}
	return m, nil
}
