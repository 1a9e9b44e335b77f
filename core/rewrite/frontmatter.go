package rewrite

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// listIndentPattern matches root-level list items in dumped YAML.
var listIndentPattern = regexp.MustCompile(`(?m)^( *)(- )`)

// Properties accumulates page properties destined for the YAML front matter
// block. Conversion populates it as a side effect (details macros, labels);
// insertion order is preserved for stable output.
type Properties struct {
	keys   []string
	values map[string]any
}

// NewProperties creates an empty accumulator.
func NewProperties() *Properties {
	return &Properties{values: map[string]any{}}
}

// Set records a property, skipping empty values. A key set twice keeps its
// original position and takes the newer value.
func (p *Properties) Set(key string, value any) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case []string:
		if len(v) == 0 {
			return
		}
	case nil:
		return
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Empty reports whether no properties were accumulated.
func (p *Properties) Empty() bool {
	return len(p.keys) == 0
}

// FrontMatter renders the accumulated properties as a YAML front matter
// block, or an empty string when there are none. List items under root keys
// get one extra indent level beyond the YAML encoder's default, which
// stricter downstream parsers require.
func (p *Properties) FrontMatter(indent int) (string, error) {
	if p.Empty() {
		return "", nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range p.keys {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			valueNode(p.values[key]),
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}

	yml := listIndentPattern.ReplaceAllString(buf.String(), "${1}"+strings.Repeat(" ", indent)+"${2}")
	return "---\n" + yml + "---\n", nil
}

func valueNode(v any) *yaml.Node {
	switch val := v.(type) {
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: val}
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range val {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
		}
		return seq
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)}
	}
}
