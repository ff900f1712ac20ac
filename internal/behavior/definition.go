package behavior

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// element is the format-neutral form of one node of a definition.
type element struct {
	tag      string
	attrs    map[string]string
	keys     []string
	children []*element
	line     int
	source   string
}

func (el *element) attr(name string) (string, bool) {
	v, ok := el.attrs[name]
	return v, ok
}

func (el *element) setAttr(name, value string) {
	if el.attrs == nil {
		el.attrs = make(map[string]string)
	}
	if _, ok := el.attrs[name]; !ok {
		el.keys = append(el.keys, name)
	}
	el.attrs[name] = value
}

type treeDef struct {
	id     string
	root   *element
	source string
	line   int
}

// document is one parsed definition source.
type document struct {
	source   string
	dir      string
	format   string
	mainTree string
	includes []*element
	trees    []*treeDef
}

type defFormat int

const (
	formatXML defFormat = iota
	formatYAML
)

func sniffFormat(data []byte) defFormat {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '<' {
		return formatXML
	}
	return formatYAML
}

func fileFormat(path string) defFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatXML
	}
}

func parseDocument(data []byte, source string, format defFormat) (*document, error) {
	switch format {
	case formatYAML:
		return parseYAML(data, source)
	default:
		return parseXML(data, source)
	}
}

// RegisterTreeFromText adds the trees of an XML or YAML definition to the
// catalog. Includes are resolved against the working directory.
func (f *Factory) RegisterTreeFromText(text string) error {
	_, err := f.registerText(text)
	return err
}

// RegisterTreeFromFile adds the trees of a definition file to the catalog.
func (f *Factory) RegisterTreeFromFile(path string) error {
	_, err := f.loadFile(path, make(map[string]bool))
	return err
}

func (f *Factory) registerText(text string) (string, error) {
	data := []byte(text)
	doc, err := parseDocument(data, "", sniffFormat(data))
	if err != nil {
		return "", err
	}
	return f.addDocument(doc, make(map[string]bool))
}

// loadFile registers a file and returns the ID of its default tree.
func (f *Factory) loadFile(path string, visited map[string]bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if visited[abs] {
		return "", fmt.Errorf("%w: %s is included more than once", ErrMalformed, path)
	}
	visited[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading tree definition: %w", err)
	}
	doc, err := parseDocument(data, path, fileFormat(path))
	if err != nil {
		return "", err
	}
	doc.dir = filepath.Dir(path)
	f.logger.Debug("loaded tree definition", "path", path, "trees", len(doc.trees))
	return f.addDocument(doc, visited)
}

func (f *Factory) resolveInclude(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	candidate := filepath.Join(dir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	for _, sp := range f.searchPaths {
		p := filepath.Join(sp, path)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidate
}

func (f *Factory) addDocument(doc *document, visited map[string]bool) (string, error) {
	if doc.format == "" {
		f.logger.Warn("tree definition does not declare BTCPP_format, assuming 4", "source", doc.source)
	}
	for _, inc := range doc.includes {
		path, _ := inc.attr("path")
		if path == "" {
			return "", inc.errorf(ErrMalformed, "include without path")
		}
		if _, err := f.loadFile(f.resolveInclude(doc.dir, path), visited); err != nil {
			return "", &DefinitionError{Source: inc.source, Line: inc.line, Err: err}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range doc.trees {
		if _, exists := f.trees[t.id]; exists {
			return "", t.root.errorf(ErrMalformed, "tree %q is already registered", t.id)
		}
	}
	for _, t := range doc.trees {
		f.trees[t.id] = t
		f.treeOrder = append(f.treeOrder, t.id)
	}
	if doc.mainTree != "" {
		f.mainTree = doc.mainTree
	}

	switch {
	case doc.mainTree != "":
		return doc.mainTree, nil
	case len(f.trees) == 1:
		return f.treeOrder[0], nil
	case len(doc.trees) > 0:
		return doc.trees[0].id, nil
	case f.mainTree != "":
		return f.mainTree, nil
	default:
		return "", fmt.Errorf("%w: definition contains no trees", ErrUnknownTree)
	}
}

// TreeIDs returns the registered tree IDs in registration order.
func (f *Factory) TreeIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.treeOrder)
}

// MainTreeID returns the latest main_tree_to_execute seen, if any.
func (f *Factory) MainTreeID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mainTree
}

// ClearRegisteredTrees empties the tree catalog. Node registrations stay.
func (f *Factory) ClearRegisteredTrees() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees = make(map[string]*treeDef)
	f.treeOrder = nil
	f.mainTree = ""
}

// CreateTreeFromText registers a definition and instantiates its main tree.
// A nil bb gets a fresh blackboard.
func (f *Factory) CreateTreeFromText(text string, bb *Blackboard) (*Tree, error) {
	id, err := f.registerText(text)
	if err != nil {
		return nil, err
	}
	return f.CreateTree(id, bb)
}

// CreateTreeFromFile registers a definition file and instantiates its main
// tree.
func (f *Factory) CreateTreeFromFile(path string, bb *Blackboard) (*Tree, error) {
	id, err := f.loadFile(path, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	return f.CreateTree(id, bb)
}

func (f *Factory) lookupTree(id string) (*treeDef, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.trees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTree, id)
	}
	return t, nil
}

// IsDefinitionError reports whether err came from a malformed or unresolvable
// definition, as opposed to I/O.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrUnknownNode) ||
		errors.Is(err, ErrUnknownTree)
}
