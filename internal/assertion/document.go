package assertion

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document is the model-index artifact the agent is asked to produce.
type Document struct {
	ModelIndex []ModelEntry `yaml:"model-index"`
}

type ModelEntry struct {
	Name    string   `yaml:"name"`
	Results []Result `yaml:"results,omitempty"`
}

type Result struct {
	Task    Task     `yaml:"task"`
	Dataset *Dataset `yaml:"dataset,omitempty"`
	Metrics []Metric `yaml:"metrics,omitempty"`
	Source  *Source  `yaml:"source,omitempty"`
}

type Task struct {
	Type string `yaml:"type"`
	Name string `yaml:"name,omitempty"`
}

type Dataset struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Metric struct {
	Name  string       `yaml:"name"`
	Type  string       `yaml:"type,omitempty"`
	Value *MetricValue `yaml:"value,omitempty"`
}

type Source struct {
	Name string `yaml:"name,omitempty"`
	URL  string `yaml:"url,omitempty"`
}

// MetricValue keeps whether the YAML scalar was numeric, so that a quoted
// "48.5" is reported as non-numeric instead of being coerced.
type MetricValue struct {
	Number  float64
	Numeric bool
	Raw     string
}

// Num returns a numeric metric value.
func Num(v float64) *MetricValue {
	return &MetricValue{Number: v, Numeric: true}
}

func (v *MetricValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		v.Raw = fmt.Sprintf("<%s>", kindName(node.Kind))
		return nil
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			var decoded float64
			if derr := node.Decode(&decoded); derr != nil {
				v.Raw = node.Value
				return nil
			}
			f = decoded
		}
		v.Number = f
		v.Numeric = true
	default:
		v.Raw = node.Value
	}
	return nil
}

func (v MetricValue) MarshalYAML() (interface{}, error) {
	if v.Numeric {
		return v.Number, nil
	}
	return v.Raw, nil
}

func (v *MetricValue) String() string {
	if v == nil {
		return "<missing>"
	}
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return strconv.Quote(v.Raw)
}

// LoadDocument parses the artifact at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDocument serializes doc to path with the same encoder the checker reads back.
func WriteDocument(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "scalar"
	}
}
