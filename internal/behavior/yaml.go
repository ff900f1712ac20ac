package behavior

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// yamlDocument mirrors the XML layout:
//
//	btcpp_format: "4"
//	main_tree_to_execute: MainTree
//	include: [other.yaml]
//	trees:
//	  - id: MainTree
//	    root:
//	      type: Sequence
//	      children:
//	        - type: CheckBattery
type yamlDocument struct {
	Format   string      `yaml:"btcpp_format"`
	MainTree string      `yaml:"main_tree_to_execute"`
	Include  []string    `yaml:"include"`
	Trees    []*yamlTree `yaml:"trees"`
}

type yamlTree struct {
	ID   string    `yaml:"id"`
	Root *yamlNode `yaml:"root"`
	line int
}

func (t *yamlTree) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlTree
	if err := value.Decode((*plain)(t)); err != nil {
		return err
	}
	t.line = value.Line
	return nil
}

type yamlNode struct {
	Type     string         `yaml:"type"`
	Name     string         `yaml:"name"`
	Ports    map[string]any `yaml:"ports"`
	Children []*yamlNode    `yaml:"children"`
	line     int
}

func (n *yamlNode) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlNode
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.line = value.Line
	return nil
}

func parseYAML(data []byte, source string) (*document, error) {
	var raw yamlDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DefinitionError{Source: source, Err: fmt.Errorf("%w: empty document", ErrMalformed)}
		}
		return nil, &DefinitionError{Source: source, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if raw.Format != "" && raw.Format != SupportedFormat {
		return nil, &DefinitionError{Source: source, Err: fmt.Errorf("%w: unsupported btcpp_format %q", ErrMalformed, raw.Format)}
	}

	doc := &document{
		source:   source,
		format:   raw.Format,
		mainTree: raw.MainTree,
	}
	for _, path := range raw.Include {
		inc := &element{tag: "include", source: source}
		inc.setAttr("path", path)
		doc.includes = append(doc.includes, inc)
	}
	for _, t := range raw.Trees {
		if t == nil {
			continue
		}
		if t.ID == "" {
			return nil, &DefinitionError{Source: source, Line: t.line, Err: fmt.Errorf("%w: tree without id", ErrMalformed)}
		}
		if t.Root == nil {
			return nil, &DefinitionError{Source: source, Line: t.line, Err: fmt.Errorf("%w: tree %q has no root", ErrMalformed, t.ID)}
		}
		root, err := t.Root.element(source)
		if err != nil {
			return nil, err
		}
		doc.trees = append(doc.trees, &treeDef{id: t.ID, root: root, source: source, line: t.line})
	}
	return doc, nil
}

func (n *yamlNode) element(source string) (*element, error) {
	if n.Type == "" {
		return nil, &DefinitionError{Source: source, Line: n.line, Err: fmt.Errorf("%w: node without type", ErrMalformed)}
	}
	el := &element{tag: n.Type, line: n.line, source: source}
	if n.Name != "" {
		el.setAttr("name", n.Name)
	}
	keys := make([]string, 0, len(n.Ports))
	for k := range n.Ports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := n.Ports[k].(type) {
		case map[string]any, []any:
			return nil, el.errorf(ErrMalformed, "port %q must be a scalar", k)
		default:
			el.setAttr(k, toString(v))
		}
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		child, err := c.element(source)
		if err != nil {
			return nil, err
		}
		el.children = append(el.children, child)
	}
	return el, nil
}
